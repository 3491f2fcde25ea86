package console

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/obsidianstack/envwatch/internal/alerts"
	"github.com/obsidianstack/envwatch/internal/pipeline"
	"github.com/obsidianstack/envwatch/internal/reading"
)

func TestRender_Waiting(t *testing.T) {
	out := Render(pipeline.Snapshot{}, 60)
	if !strings.Contains(out, "waiting for data") {
		t.Errorf("expected waiting message, got:\n%s", out)
	}
}

func TestRender_WithReadings(t *testing.T) {
	now := time.Date(2026, 2, 1, 14, 30, 0, 0, time.UTC)
	prev := reading.New(now.Add(-time.Second), 20, 50, 3000, 100)
	latest := reading.New(now, 22.5, 85, 1500, 90)
	a := alerts.Evaluate(latest, alerts.DefaultThresholds())
	d1, d2 := 2.5, 35.0
	snap := pipeline.Snapshot{
		Latest:      &latest,
		Previous:    &prev,
		Alerts:      &a,
		Window:      []reading.Reading{prev, latest},
		Thresholds:  alerts.DefaultThresholds(),
		GeneratedAt: now,
	}
	snap.Delta.Temperature = &d1
	snap.Delta.Humidity = &d2

	out := Render(snap, 60)
	for _, want := range []string{"Temperature", "22.5 °C", "+2.5°C", "CRITICAL", "INFO", "2 readings", "14:30:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	t.Logf("\n%s", out)
}

func TestSparkline_Width(t *testing.T) {
	var rs []reading.Reading
	for i := 0; i < 50; i++ {
		rs = append(rs, reading.New(time.Now(), float64(20+i%7), 50, 0, 0))
	}
	out := Sparkline(rs, 30, 50)
	if w := lipgloss.Width(out); w != 30 {
		t.Errorf("width: got %d, want 30", w)
	}

	short := Sparkline(rs[:5], 30, 50)
	if w := lipgloss.Width(short); w != 30 {
		t.Errorf("padded width: got %d, want 30", w)
	}
}

func TestSparkline_Empty(t *testing.T) {
	if out := Sparkline(nil, 10, 50); lipgloss.Width(out) != 10 {
		t.Errorf("empty sparkline width: got %d", lipgloss.Width(out))
	}
	if out := Sparkline(nil, 0, 50); out != "" {
		t.Errorf("zero width: got %q", out)
	}
}

func TestBadge(t *testing.T) {
	if got := Badge(alerts.StateWarning); !strings.Contains(got, "WARNING") {
		t.Errorf("Badge(warning) = %q", got)
	}
}
