package reading

import (
	"fmt"
	"time"
)

// Reading is one normalized sensor sample.
// Build it with New or FromFields and treat it as immutable afterwards.
type Reading struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Flame       int       `json:"flame"`
	Light       int       `json:"light"`
}

// New returns a Reading with all fields set.
func New(ts time.Time, temperature, humidity float64, flame, light int) Reading {
	return Reading{
		Timestamp:   ts,
		Temperature: temperature,
		Humidity:    humidity,
		Flame:       flame,
		Light:       light,
	}
}

// String formats the reading for logs.
func (r Reading) String() string {
	return fmt.Sprintf("%s temp=%.1f°C hum=%.1f%% flame=%d light=%d",
		r.Timestamp.Format(time.RFC3339), r.Temperature, r.Humidity, r.Flame, r.Light)
}
