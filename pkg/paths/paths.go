// Package paths splits the requested output path into the pieces the engine
// and the post-processor need.
package paths

import (
	"path/filepath"
	"strings"

	"nordic/internal/models"
)

// Split breaks path into its directory, its extension-free file name and
// everything after the first dot of the file name. A path without a directory
// yields ".".
func Split(path string) (dir, base, ext string) {
	dir, file := filepath.Split(path)
	if dir == "" {
		dir = "."
	} else {
		dir = filepath.Clean(dir)
	}
	if i := strings.IndexByte(file, '.'); i >= 0 {
		return dir, file[:i], file[i+1:]
	}
	return dir, file, ""
}

// Resolve derives the OutputSpec for path. It only looks at the structure of
// the path; use CheckFormat to reject extensions the wrapper cannot produce.
func Resolve(path string) models.OutputSpec {
	dir, base, ext := Split(path)
	intermediate := base + "." + models.ExtNII

	spec := models.OutputSpec{
		Dir:              dir,
		Base:             base,
		Ext:              ext,
		IntermediateName: intermediate,
		IntermediatePath: filepath.Join(dir, intermediate),
		FinalPath:        filepath.Join(dir, intermediate),
	}
	if ext != "" {
		spec.FinalPath = filepath.Join(dir, base+"."+ext)
	}
	return spec
}

// CheckFormat rejects output specs the post-processor cannot finalize
func CheckFormat(spec models.OutputSpec) error {
	if spec.Base == "" {
		return models.Errorf(models.ErrInvalidOutputPath, "output path %q has no file name", spec.FinalPath)
	}
	switch spec.Ext {
	case models.ExtNII, models.ExtNIIGZ:
		return nil
	default:
		return models.Errorf(models.ErrUnsupportedOutputFormat, "%q is not a supported image format", spec.Ext)
	}
}
