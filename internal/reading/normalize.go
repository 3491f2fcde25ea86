package reading

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotObject is returned when a raw record is not a key-value object.
	ErrNotObject = errors.New("record is not an object")

	// ErrInvalidField is returned when a recognized field holds a value that
	// cannot be read as a number.
	ErrInvalidField = errors.New("invalid field value")
)

// Field aliases, lower-cased. The device firmware and the database use
// French and abbreviated names for some fields.
var (
	temperatureKeys = []string{"temperature", "temp"}
	humidityKeys    = []string{"humidity", "humidite"}
	flameKeys       = []string{"flame"}
	lightKeys       = []string{"light", "ldr"}
)

const timestampKey = "timestamp"

// maxMillis bounds the timestamp field to about ±285,000 years, the range
// float64 represents exactly.
const maxMillis = 1 << 53

// Options controls how FromFields treats a record.
type Options struct {
	// UseTimestamp reads the "timestamp" field (ms since epoch) when present.
	// The push feed carries no timestamp, so it leaves this off.
	UseTimestamp bool
}

// FromFields normalizes a decoded record into a Reading. fallback is used as
// the timestamp when the record does not provide one (or opts forbids it).
func FromFields(fields map[string]any, fallback time.Time, opts Options) (Reading, error) {
	if fields == nil {
		return Reading{}, ErrNotObject
	}
	lower := make(map[string]any, len(fields))
	for k, v := range fields {
		lower[strings.ToLower(k)] = v
	}

	temp, err := lookupFloat(lower, temperatureKeys)
	if err != nil {
		return Reading{}, err
	}
	hum, err := lookupFloat(lower, humidityKeys)
	if err != nil {
		return Reading{}, err
	}
	flame, err := lookupCount(lower, flameKeys)
	if err != nil {
		return Reading{}, err
	}
	light, err := lookupCount(lower, lightKeys)
	if err != nil {
		return Reading{}, err
	}

	ts := fallback
	if opts.UseTimestamp {
		if v, ok := lower[timestampKey]; ok && v != nil {
			ms, err := toFloat(v)
			if err == nil && math.Abs(ms) > maxMillis {
				err = fmt.Errorf("%v out of range", ms)
			}
			if err != nil {
				return Reading{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, timestampKey, err)
			}
			ts = FromMillis(int64(ms))
		}
	}

	return New(ts, temp, hum, flame, light), nil
}

// FromJSON decodes raw as a JSON object and normalizes it with FromFields.
// Anything other than a JSON object yields an error wrapping ErrNotObject.
func FromJSON(raw []byte, fallback time.Time, opts Options) (Reading, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	return FromFields(fields, fallback, opts)
}

// FromMillis converts a millisecond Unix epoch to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// lookupCount is lookupFloat for the integer ADC fields. Values are rounded
// to the nearest integer and must fit in 32 bits.
func lookupCount(fields map[string]any, keys []string) (int, error) {
	f, err := lookupFloat(fields, keys)
	if err != nil {
		return 0, err
	}
	f = math.Round(f)
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s: %v out of range", ErrInvalidField, keys[0], f)
	}
	return int(f), nil
}

// lookupFloat returns the first alias present in fields, or 0 when none is.
func lookupFloat(fields map[string]any, keys []string) (float64, error) {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		f, err := toFloat(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrInvalidField, k, err)
		}
		return f, nil
	}
	return 0, nil
}

// toFloat converts a decoded JSON value to a finite float64.
func toFloat(v any) (float64, error) {
	f, err := parseNumber(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%v is not a finite number", f)
	}
	return f, nil
}

func parseNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
