package pipeline

import (
	"time"

	"github.com/obsidianstack/envwatch/internal/alerts"
	"github.com/obsidianstack/envwatch/internal/reading"
	"github.com/obsidianstack/envwatch/internal/trend"
)

// Snapshot is a point-in-time view of the window with everything derived
// from it. Latest, Previous and Alerts are nil when the window holds too
// few readings.
type Snapshot struct {
	Latest      *reading.Reading  `json:"latest"`
	Previous    *reading.Reading  `json:"previous"`
	Delta       trend.Delta       `json:"delta"`
	Alerts      *alerts.Alerts    `json:"alerts"`
	Window      []reading.Reading `json:"window"`
	Thresholds  alerts.Thresholds `json:"thresholds"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Len is the number of readings in the snapshot.
func (s Snapshot) Len() int { return len(s.Window) }

func buildSnapshot(readings []reading.Reading, th alerts.Thresholds, now time.Time) Snapshot {
	s := Snapshot{
		Delta:       trend.Compute(readings),
		Window:      readings,
		Thresholds:  th,
		GeneratedAt: now,
	}
	if n := len(readings); n > 0 {
		latest := readings[n-1]
		s.Latest = &latest
		a := alerts.Evaluate(latest, th)
		s.Alerts = &a
		if n > 1 {
			prev := readings[n-2]
			s.Previous = &prev
		}
	}
	return s
}
