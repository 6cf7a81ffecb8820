package params

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"nordic/internal/models"
)

// Engine configuration keys set by the builder
const (
	KeyDirOut            = "DIROUT"
	KeyKernelGFactor     = "kernel_size_gfactor"
	KeyKernelPCA         = "kernel_size_PCA"
	KeyTemporalPhase     = "temporal_phase"
	KeyPhaseFilterWidth  = "phase_filter_width"
	KeyNORDIC            = "NORDIC"
	KeyMP                = "MP"
	KeyMagnitudeOnly     = "magnitude_only"
	KeyUseMagnForGFactor = "use_magn_for_gfactor"
)

// Schema is the allow-list of engine keys accepted as overrides, with the
// kind each value is coerced to. It mirrors the options documented by
// NIFTI_NORDIC.
var Schema = map[string]models.Kind{
	KeyDirOut:            models.KindString,
	KeyKernelGFactor:     models.KindArray,
	KeyKernelPCA:         models.KindArray,
	KeyTemporalPhase:     models.KindInt,
	KeyPhaseFilterWidth:  models.KindInt,
	KeyNORDIC:            models.KindInt,
	KeyMP:                models.KindInt,
	KeyMagnitudeOnly:     models.KindInt,
	KeyUseMagnForGFactor: models.KindInt,

	"noise_volume_last":                        models.KindInt,
	"factor_error":                             models.KindFloat,
	"full_dynamic_range":                       models.KindInt,
	"gfactor_patch_overlap":                    models.KindInt,
	"NORDIC_patch_overlap":                     models.KindInt,
	"save_gfactor_map":                         models.KindInt,
	"save_add_info":                            models.KindInt,
	"save_residual_matlab":                     models.KindInt,
	"make_complex_nii":                         models.KindInt,
	"phase_slice_average_for_kspace_centering": models.KindInt,
	"data_has_zero_elements":                   models.KindInt,
	"soft_thrs":                                models.KindFloat,
	"speed_factor":                             models.KindInt,
	"use_generic_NII_read":                     models.KindInt,
}

// protected keys are computed from structured parameters and never taken
// from overrides
var protected = map[string]bool{
	KeyDirOut:        true,
	KeyKernelGFactor: true,
	KeyKernelPCA:     true,
}

// IsProtected reports whether an override for key is discarded
func IsProtected(key string) bool {
	return protected[key]
}

// KnownKeys returns the accepted override keys in sorted order
func KnownKeys() []string {
	keys := make([]string, 0, len(Schema))
	for k := range Schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Coerce converts the raw text of an override to the kind declared for key
func Coerce(key, raw string) (models.Value, error) {
	kind, ok := Schema[key]
	if !ok {
		return models.Value{}, models.Errorf(models.ErrUnknownOverride, "%q is not an engine option", key)
	}
	raw = strings.TrimSpace(raw)

	switch kind {
	case models.KindInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			return models.Int(v), nil
		}
		if errors.Is(err, strconv.ErrRange) {
			return models.Value{}, models.Errorf(models.ErrInvalidOverride, "%s=%q: integer out of range", key, raw)
		}
		// integral floats such as "1.0" are accepted
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return models.Value{}, models.Errorf(models.ErrInvalidOverride, "%s=%q: expected an integer", key, raw)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which does not fit
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return models.Value{}, models.Errorf(models.ErrInvalidOverride, "%s=%q: integer out of range", key, raw)
		}
		return models.Int(int64(f)), nil

	case models.KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) {
			return models.Value{}, models.Errorf(models.ErrInvalidOverride, "%s=%q: expected a number", key, raw)
		}
		return models.Float(f), nil

	case models.KindArray:
		a, err := parseArray(raw)
		if err != nil {
			return models.Value{}, models.Errorf(models.ErrInvalidOverride, "%s=%q: %v", key, raw, err)
		}
		return models.Array(a), nil

	default:
		return models.String(raw), nil
	}
}

// parseArray reads "1,2,3", "1 2 3" or "[1, 2, 3]". "[]" is the empty array.
func parseArray(raw string) ([]float64, error) {
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})

	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if floats.HasNaN(out) {
		return nil, strconv.ErrSyntax
	}
	return out, nil
}
