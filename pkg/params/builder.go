// Package params turns a RunRequest into the flat keyword configuration the
// NORDIC engine expects.
package params

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"nordic/internal/models"
)

// Result is the outcome of Build
type Result struct {
	// Config is the complete engine configuration
	Config models.EngineConfig

	// Discarded lists override keys that collided with a protected key and
	// were dropped, in sorted order
	Discarded []string
}

// modalityParams holds the values written for each supported modality
var modalityParams = map[models.Modality]struct {
	temporalPhase    int64
	phaseFilterWidth int64
}{
	models.ModalityFMRI: {temporalPhase: 1, phaseFilterWidth: 10},
	models.ModalityDMRI: {temporalPhase: 3, phaseFilterWidth: 3},
}

// Build produces the engine configuration for req, writing outputs to dir.
// magnitudeOnly comes from the input validator.
//
// The configuration is assembled in a fixed order:
//  1. Defaults: output directory and kernel sizes as numeric arrays
//  2. Modality parameters (temporal_phase, phase_filter_width)
//  3. Threshold method flags (NORDIC, MP)
//  4. Magnitude-only flags
//  5. Overrides, except those naming a protected key, which are discarded
//
// Build has no side effects; the same inputs always give an equal Result.
func Build(req models.RunRequest, dir string, magnitudeOnly bool) (*Result, error) {
	cfg := models.EngineConfig{}

	// Step 1: defaults
	if err := checkKernel("g-factor", req.KernelSizeGFactor); err != nil {
		return nil, err
	}
	cfg[KeyDirOut] = models.String(dir)
	cfg[KeyKernelGFactor] = models.Array(req.KernelSizeGFactor.Floats())
	if req.KernelSizePCA != nil {
		if err := checkKernel("PCA", *req.KernelSizePCA); err != nil {
			return nil, err
		}
		cfg[KeyKernelPCA] = models.Array(req.KernelSizePCA.Floats())
	} else {
		cfg[KeyKernelPCA] = models.Array(nil)
	}

	// Step 2: modality
	if req.Modality != models.ModalityUnset {
		p, ok := modalityParams[req.Modality]
		if !ok {
			return nil, models.Errorf(models.ErrInvalidModality, "%s is not supported modality", req.Modality)
		}
		cfg[KeyTemporalPhase] = models.Int(p.temporalPhase)
		cfg[KeyPhaseFilterWidth] = models.Int(p.phaseFilterWidth)
	}

	// Step 3: threshold method
	switch req.ThresholdMethod {
	case models.ThresholdNORDIC, "":
		cfg[KeyNORDIC] = models.Int(1)
		cfg[KeyMP] = models.Int(0)
	case models.ThresholdMP:
		cfg[KeyNORDIC] = models.Int(0)
		cfg[KeyMP] = models.Int(1)
	default:
		return nil, models.Errorf(models.ErrInvalidThresholdMethod, "%s is not supported threshold method", req.ThresholdMethod)
	}

	// Step 4: magnitude-only
	if magnitudeOnly {
		cfg[KeyMagnitudeOnly] = models.Int(1)
		cfg[KeyUseMagnForGFactor] = models.Int(1)
	}

	// Step 5: overrides
	keys := make([]string, 0, len(req.Overrides))
	for k := range req.Overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var discarded []string
	for _, k := range keys {
		if IsProtected(k) {
			discarded = append(discarded, k)
			continue
		}
		v, err := Coerce(k, req.Overrides[k])
		if err != nil {
			return nil, err
		}
		cfg[k] = v
	}

	return &Result{Config: cfg, Discarded: discarded}, nil
}

func checkKernel(name string, k models.KernelSize) error {
	if floats.Min(k.Floats()) < 0 {
		return models.Errorf(models.ErrInvalidKernelSize, "%s kernel size %s has a negative component", name, k)
	}
	return nil
}
