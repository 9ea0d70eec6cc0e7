// Package dataset loads region statistics and region geometries from the
// configured sources and normalises their join keys.
package dataset

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrEmptyKey is returned for a missing or blank region key.
var ErrEmptyKey = eris.New("dataset: empty region key")

// NormalizeKey converts a raw key (number or string) to its canonical string
// form. Purely numeric keys are left zero-padded to width, so the county
// FIPS 1001 and "01001" both become "01001" at width 5.
func NormalizeKey(v any, width int) (string, error) {
	var s string
	switch k := v.(type) {
	case nil:
		return "", ErrEmptyKey
	case string:
		s = strings.TrimSpace(k)
	case json.Number:
		s = k.String()
		if f, err := k.Float64(); err == nil && strings.ContainsAny(s, ".eE") {
			return floatKey(f, width)
		}
	case int:
		s = strconv.Itoa(k)
	case int32:
		s = strconv.FormatInt(int64(k), 10)
	case int64:
		s = strconv.FormatInt(k, 10)
	case float32:
		return floatKey(float64(k), width)
	case float64:
		return floatKey(k, width)
	case []byte:
		s = strings.TrimSpace(string(k))
	default:
		return "", eris.Errorf("dataset: unsupported key type %T", v)
	}

	if s == "" {
		return "", ErrEmptyKey
	}
	return pad(s, width), nil
}

func floatKey(f float64, width int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return "", eris.Errorf("dataset: key %v is not an integer", f)
	}
	return pad(strconv.FormatInt(int64(f), 10), width), nil
}

func pad(s string, width int) string {
	if width <= 0 || len(s) >= width || !digits(s) {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseValue converts a raw statistic cell to a finite number. ok is false
// for missing or blank cells; a trailing percent sign is ignored.
func ParseValue(v any) (value float64, ok bool, err error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case json.Number:
		value, err = x.Float64()
		if err != nil {
			return 0, false, eris.Wrapf(err, "dataset: parse value %q", x.String())
		}
	case float64:
		value = x
	case float32:
		value = float64(x)
	case int:
		value = float64(x)
	case int64:
		value = float64(x)
	case int32:
		value = float64(x)
	case []byte:
		return ParseValue(string(x))
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(x), "%")
		s = strings.ReplaceAll(s, ",", "")
		if s == "" {
			return 0, false, nil
		}
		value, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, eris.Wrapf(err, "dataset: parse value %q", x)
		}
	default:
		return 0, false, eris.Errorf("dataset: unsupported value type %T", v)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false, eris.Errorf("dataset: value %v is not finite", value)
	}
	return value, true, nil
}

// text renders an optional attribute cell as a trimmed string.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(string(x))
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}
