// Package metrics renders a pipeline snapshot in the Prometheus text
// exposition format.
package metrics

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/envwatch/internal/alerts"
	"github.com/obsidianstack/envwatch/internal/pipeline"
)

// ContentType is the Content-Type of the text exposition.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

// Counter is a monotonically increasing total owned by the caller.
type Counter struct {
	Name  string
	Help  string
	Value uint64
}

var states = []alerts.State{alerts.StateOK, alerts.StateInfo, alerts.StateWarning, alerts.StateCritical}

// Write renders snap and counters to w. Sensor gauges are omitted while the
// window is empty.
func Write(w io.Writer, snap pipeline.Snapshot, counters ...Counter) error {
	var families []*dto.MetricFamily

	if r := snap.Latest; r != nil {
		families = append(families,
			gauge("envwatch_temperature_celsius", "Latest temperature reading in degrees Celsius.", r.Temperature),
			gauge("envwatch_humidity_percent", "Latest relative humidity reading in percent.", r.Humidity),
			gauge("envwatch_flame_adc", "Latest raw flame sensor ADC value; lower means stronger flame.", float64(r.Flame)),
			gauge("envwatch_light_adc", "Latest raw light sensor ADC value.", float64(r.Light)),
		)
	}

	families = append(families, gauge("envwatch_window_readings", "Readings currently held in the history window.", float64(snap.Len())))

	if snap.Alerts != nil {
		families = append(families, alertStates(*snap.Alerts))
	}

	for _, c := range counters {
		families = append(families, counter(c))
	}

	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func alertStates(a alerts.Alerts) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: ptr("envwatch_alert_state"),
		Help: ptr("Current alert state per signal; 1 for the active state, 0 otherwise."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, signal := range []string{alerts.SignalFlame, alerts.SignalTemperature, alerts.SignalHumidity} {
		current := a.BySignal()[signal]
		for _, st := range states {
			v := 0.0
			if st == current {
				v = 1
			}
			mf.Metric = append(mf.Metric, &dto.Metric{
				Label: []*dto.LabelPair{
					{Name: ptr("signal"), Value: ptr(signal)},
					{Name: ptr("state"), Value: ptr(string(st))},
				},
				Gauge: &dto.Gauge{Value: ptr(v)},
			})
		}
	}
	return mf
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(name),
		Help:   ptr(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: ptr(v)}}},
	}
}

func counter(c Counter) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(c.Name),
		Help:   ptr(c.Help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: ptr(float64(c.Value))}}},
	}
}

func ptr[T any](v T) *T { return &v }
