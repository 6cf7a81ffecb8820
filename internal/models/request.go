package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Modality selects the phase-handling parameters of the engine
type Modality string

const (
	// ModalityUnset leaves temporal_phase and phase_filter_width to the engine
	ModalityUnset Modality = ""
	ModalityFMRI  Modality = "fMRI"
	ModalityDMRI  Modality = "dMRI"
)

// ThresholdMethod selects the criterion used to separate signal from noise
// components during decomposition
type ThresholdMethod string

const (
	// ThresholdNORDIC is the default method
	ThresholdNORDIC ThresholdMethod = "NORDIC"

	// ThresholdMP is the Marchenko-Pastur threshold
	ThresholdMP ThresholdMethod = "MP"
)

// KernelSize is a 3D neighborhood window in voxels
type KernelSize [3]int

// DefaultKernelSizeGFactor is used when the caller does not choose a g-factor kernel
var DefaultKernelSizeGFactor = KernelSize{14, 14, 1}

// ParseKernelSize reads a kernel size written as "x,y,z", "x y z" or "[x,y,z]"
func ParseKernelSize(s string) (KernelSize, error) {
	var k KernelSize
	fields := splitNumbers(s)
	if len(fields) != 3 {
		return k, fmt.Errorf("kernel size %q must have 3 components", s)
	}
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return k, fmt.Errorf("kernel size %q: %w", s, err)
		}
		k[i] = v
	}
	return k, nil
}

// String returns the kernel size in the "x,y,z" form accepted by ParseKernelSize
func (k KernelSize) String() string {
	return fmt.Sprintf("%d,%d,%d", k[0], k[1], k[2])
}

// Floats converts the kernel size to the engine's numeric array representation
func (k KernelSize) Floats() []float64 {
	return []float64{float64(k[0]), float64(k[1]), float64(k[2])}
}

// splitNumbers breaks a bracketed or delimited list into its fields
func splitNumbers(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
}

// RunRequest is the set of caller inputs for one denoising invocation.
// It is built once and not modified afterwards.
type RunRequest struct {
	// MagnitudePath is the magnitude image, always required
	MagnitudePath string

	// PhasePath is the phase image; empty means the run is magnitude-only
	PhasePath string

	// OutputPath is the requested final output file (.nii or .nii.gz)
	OutputPath string

	// Modality is fMRI, dMRI or unset
	Modality Modality

	// ThresholdMethod defaults to NORDIC when empty
	ThresholdMethod ThresholdMethod

	// KernelSizeGFactor is the kernel used for g-factor estimation
	KernelSizeGFactor KernelSize

	// KernelSizePCA is the decomposition kernel; nil lets the engine choose
	KernelSizePCA *KernelSize

	// Overrides are free-form engine keys with their raw textual values
	Overrides map[string]string
}

// NewRunRequest returns a request with the default threshold method and
// g-factor kernel filled in
func NewRunRequest(magnitude, phase, output string) RunRequest {
	return RunRequest{
		MagnitudePath:     magnitude,
		PhasePath:         phase,
		OutputPath:        output,
		ThresholdMethod:   ThresholdNORDIC,
		KernelSizeGFactor: DefaultKernelSizeGFactor,
	}
}
