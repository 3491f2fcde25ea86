// Package trend derives first-order deltas between the two most recent
// readings of a window.
package trend

import "github.com/obsidianstack/envwatch/internal/reading"

// Delta is latest minus previous for the continuous signals.
// A nil field means the delta is undefined (fewer than two readings), which
// is different from a zero change.
type Delta struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

// Compute returns the signed delta between the last two entries of readings,
// which must be ordered oldest to newest. No smoothing is applied.
func Compute(readings []reading.Reading) Delta {
	n := len(readings)
	if n < 2 {
		return Delta{}
	}
	latest, prev := readings[n-1], readings[n-2]
	dt := latest.Temperature - prev.Temperature
	dh := latest.Humidity - prev.Humidity
	return Delta{Temperature: &dt, Humidity: &dh}
}

// Defined reports whether the delta could be computed.
func (d Delta) Defined() bool {
	return d.Temperature != nil && d.Humidity != nil
}
