package dataset

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		width int
		want  string
	}{
		{"json number padded", json.Number("1001"), 5, "01001"},
		{"json number integral float", json.Number("1001.0"), 5, "01001"},
		{"int padded", 1001, 5, "01001"},
		{"int64", int64(53033), 5, "53033"},
		{"float64", 6037.0, 5, "06037"},
		{"padded string kept", "01001", 5, "01001"},
		{"short string padded", "1001", 5, "01001"},
		{"string trimmed", "  02013 ", 5, "02013"},
		{"non-numeric not padded", "AK", 5, "AK"},
		{"no width", 7, 0, "7"},
		{"longer than width", "1234567", 5, "1234567"},
		{"bytes", []byte("42"), 2, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeKey(tt.in, tt.width)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeKey_Errors(t *testing.T) {
	_, err := NormalizeKey(nil, 5)
	assert.True(t, eris.Is(err, ErrEmptyKey))

	_, err = NormalizeKey("   ", 5)
	assert.True(t, eris.Is(err, ErrEmptyKey))

	_, err = NormalizeKey(10.5, 5)
	assert.Error(t, err)

	_, err = NormalizeKey(math.NaN(), 5)
	assert.Error(t, err)

	_, err = NormalizeKey(true, 5)
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"json number", json.Number("24.6"), 24.6, true},
		{"float", 12.5, 12.5, true},
		{"int", 7, 7, true},
		{"int64", int64(3), 3, true},
		{"string", " 18.4 ", 18.4, true},
		{"percent", "31.2%", 31.2, true},
		{"thousands", "1,234.5", 1234.5, true},
		{"zero", "0", 0, true},
		{"blank", "", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := ParseValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseValue_Errors(t *testing.T) {
	for _, in := range []any{"n/a", math.Inf(1), "NaN", struct{}{}} {
		_, ok, err := ParseValue(in)
		assert.Error(t, err, "%v", in)
		assert.False(t, ok)
	}
}
