// Package console renders a pipeline snapshot as styled terminal text with
// a temperature sparkline over the window.
package console

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/obsidianstack/envwatch/internal/alerts"
	"github.com/obsidianstack/envwatch/internal/pipeline"
	"github.com/obsidianstack/envwatch/internal/reading"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

const (
	colorTitle = lipgloss.Color("51")
	colorLabel = lipgloss.Color("252")
	colorDim   = lipgloss.Color("240")
	colorOk    = lipgloss.Color("78")
	colorInfo  = lipgloss.Color("39")
	colorWarn  = lipgloss.Color("208")
	colorCrit  = lipgloss.Color("196")
	colorUp    = lipgloss.Color("209")
	colorDown  = lipgloss.Color("117")
)

const minWidth = 20

// Render formats snap for a terminal that is width columns wide.
func Render(snap pipeline.Snapshot, width int) string {
	if width < minWidth {
		width = minWidth
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(colorTitle).
		Render(fmt.Sprintf("envwatch  %d readings", snap.Len()))
	if !snap.GeneratedAt.IsZero() {
		title += lipgloss.NewStyle().Foreground(colorDim).Render("  " + snap.GeneratedAt.Format("15:04:05"))
	}

	if snap.Latest == nil {
		waiting := lipgloss.NewStyle().Foreground(colorDim).Italic(true).Render("waiting for data...")
		return lipgloss.JoinVertical(lipgloss.Left, title, waiting)
	}

	r := *snap.Latest
	a := alerts.Alerts{}
	if snap.Alerts != nil {
		a = *snap.Alerts
	}

	lines := []string{
		title,
		metricLine("Temperature", fmt.Sprintf("%.1f °C", r.Temperature), snap.Delta.Temperature, "°C", a.Temperature),
		metricLine("Humidity", fmt.Sprintf("%.1f %%", r.Humidity), snap.Delta.Humidity, "%", a.Humidity),
		metricLine("Flame", fmt.Sprintf("%d", r.Flame), nil, "", a.Flame),
		metricLine("Light", fmt.Sprintf("%d", r.Light), nil, "", ""),
		Sparkline(snap.Window, width, snap.Thresholds.TemperatureMax),
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func metricLine(label, value string, delta *float64, unit string, st alerts.State) string {
	labelS := lipgloss.NewStyle().Foreground(colorLabel).Width(12)
	valueS := lipgloss.NewStyle().Bold(true).Width(10)

	line := labelS.Render(label) + valueS.Render(value)
	line += " " + deltaText(delta, unit)
	if st != "" {
		line += " " + Badge(st)
	}
	return line
}

func deltaText(d *float64, unit string) string {
	if d == nil {
		return lipgloss.NewStyle().Foreground(colorDim).Width(10).Render("")
	}
	style := lipgloss.NewStyle().Width(10)
	switch {
	case *d > 0:
		style = style.Foreground(colorUp)
	case *d < 0:
		style = style.Foreground(colorDown)
	default:
		style = style.Foreground(colorDim)
	}
	return style.Render(fmt.Sprintf("%+.1f%s", *d, unit))
}

// Badge renders an alert state as a short colored tag.
func Badge(st alerts.State) string {
	style := lipgloss.NewStyle().Bold(true)
	switch st {
	case alerts.StateCritical:
		style = style.Foreground(colorCrit)
	case alerts.StateWarning:
		style = style.Foreground(colorWarn)
	case alerts.StateInfo:
		style = style.Foreground(colorInfo)
	default:
		style = style.Foreground(colorOk)
	}
	return style.Render(strings.ToUpper(string(st)))
}

// Sparkline renders the temperatures of readings, newest on the right,
// scaled to their own min and max. Blocks at or above limit are drawn in
// the warning color.
func Sparkline(readings []reading.Reading, width int, limit float64) string {
	if width <= 0 {
		return ""
	}
	dim := lipgloss.NewStyle().Foreground(colorDim)
	if len(readings) == 0 {
		return dim.Render(strings.Repeat("╌", width))
	}
	if len(readings) > width {
		readings = readings[len(readings)-width:]
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range readings {
		lo = math.Min(lo, r.Temperature)
		hi = math.Max(hi, r.Temperature)
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	for i := 0; i < width-len(readings); i++ {
		sb.WriteString(dim.Render("╌"))
	}
	ok := lipgloss.NewStyle().Foreground(colorOk)
	warn := lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	for _, r := range readings {
		idx := int((r.Temperature - lo) / span * 7)
		idx = max(0, min(7, idx))
		style := ok
		if r.Temperature >= limit {
			style = warn
		}
		sb.WriteString(style.Render(string(sparkBlocks[idx])))
	}
	return sb.String()
}
