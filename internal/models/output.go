package models

// Supported output extensions
const (
	ExtNII   = "nii"
	ExtNIIGZ = "nii.gz"
)

// OutputSpec describes where the engine writes and where the final file goes
type OutputSpec struct {
	// Dir is the output directory, "." when the path has none
	Dir string

	// Base is the file name without any extension
	Base string

	// Ext is everything after the first dot of the file name
	Ext string

	// IntermediateName is the uncompressed file name the engine writes
	IntermediateName string

	// IntermediatePath is IntermediateName inside Dir
	IntermediatePath string

	// FinalPath is the file the caller asked for
	FinalPath string
}

// NeedsCompression reports whether the intermediate must be gzipped into FinalPath
func (o OutputSpec) NeedsCompression() bool {
	return o.Ext == ExtNIIGZ
}
