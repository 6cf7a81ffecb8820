package params

import (
	"errors"
	"math"
	"testing"

	"nordic/internal/models"
)

func TestCoerce(t *testing.T) {
	testCases := []struct {
		key  string
		raw  string
		want models.Value
	}{
		{"noise_volume_last", "1", models.Int(1)},
		{"noise_volume_last", " 2.0 ", models.Int(2)},
		{"speed_factor", "9223372036854775807", models.Int(math.MaxInt64)},
		{"speed_factor", "-9223372036854775808", models.Int(math.MinInt64)},
		{"speed_factor", "-9.223372036854775808e18", models.Int(math.MinInt64)},
		{"factor_error", "1", models.Float(1)},
		{"factor_error", "1.25", models.Float(1.25)},
		{KeyKernelPCA, "5,5,5", models.Array([]float64{5, 5, 5})},
		{KeyKernelPCA, "[3 3 1]", models.Array([]float64{3, 3, 1})},
		{KeyKernelPCA, "[]", models.Array(nil)},
		{KeyDirOut, "derivatives", models.String("derivatives")},
	}

	for _, tc := range testCases {
		got, err := Coerce(tc.key, tc.raw)
		if err != nil {
			t.Errorf("Coerce(%q, %q): unexpected error %v", tc.key, tc.raw, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("Coerce(%q, %q) = %v (%s), want %v (%s)",
				tc.key, tc.raw, got, got.Kind(), tc.want, tc.want.Kind())
		}
	}
}

func TestCoerceErrors(t *testing.T) {
	testCases := []struct {
		key  string
		raw  string
		want error
	}{
		{"unknown_key", "1", models.ErrUnknownOverride},
		{"noise_volume_last", "1.5", models.ErrInvalidOverride},
		{"noise_volume_last", "yes", models.ErrInvalidOverride},
		{"noise_volume_last", "1e30", models.ErrInvalidOverride},
		{"noise_volume_last", "9223372036854775808", models.ErrInvalidOverride},
		{"noise_volume_last", "-9223372036854775809", models.ErrInvalidOverride},
		{"noise_volume_last", "-1e19", models.ErrInvalidOverride},
		{"noise_volume_last", "9.223372036854775807e18", models.ErrInvalidOverride},
		{"factor_error", "NaN", models.ErrInvalidOverride},
		{KeyKernelPCA, "5,x,5", models.ErrInvalidOverride},
		{KeyKernelPCA, "1,NaN", models.ErrInvalidOverride},
	}

	for _, tc := range testCases {
		_, err := Coerce(tc.key, tc.raw)
		if !errors.Is(err, tc.want) {
			t.Errorf("Coerce(%q, %q) = %v, want %v", tc.key, tc.raw, err, tc.want)
		}
	}
}

func TestKnownKeysSorted(t *testing.T) {
	keys := KnownKeys()
	if len(keys) != len(Schema) {
		t.Fatalf("expected %d keys, got %d", len(Schema), len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys not sorted at %d: %q >= %q", i, keys[i-1], keys[i])
		}
	}
	for _, k := range []string{KeyDirOut, KeyKernelGFactor, KeyKernelPCA} {
		if !IsProtected(k) {
			t.Errorf("%s should be protected", k)
		}
	}
	if IsProtected(KeyNORDIC) {
		t.Error("NORDIC should not be protected")
	}
}
