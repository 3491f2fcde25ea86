package alerts

import (
	"testing"
	"time"

	"github.com/obsidianstack/envwatch/internal/reading"
)

func at(temp, hum float64, flame int) reading.Reading {
	return reading.New(time.Now(), temp, hum, flame, 0)
}

func TestEvaluate_Flame(t *testing.T) {
	th := Thresholds{TemperatureMax: 50, FlameThreshold: 2000}
	tests := []struct {
		flame int
		want  State
	}{
		{1999, StateCritical},
		{2000, StateOK},
		{4095, StateOK},
		{0, StateCritical},
	}
	for _, tc := range tests {
		if got := Evaluate(at(20, 50, tc.flame), th).Flame; got != tc.want {
			t.Errorf("flame=%d: got %s, want %s", tc.flame, got, tc.want)
		}
	}
}

func TestEvaluate_Temperature(t *testing.T) {
	th := Thresholds{TemperatureMax: 50, FlameThreshold: 2000}
	tests := []struct {
		temp float64
		want State
	}{
		{50.0, StateWarning},
		{49.9, StateOK},
		{85.0, StateWarning},
		{-10, StateOK},
	}
	for _, tc := range tests {
		if got := Evaluate(at(tc.temp, 50, 3000), th).Temperature; got != tc.want {
			t.Errorf("temperature=%v: got %s, want %s", tc.temp, got, tc.want)
		}
	}
}

func TestEvaluate_Humidity(t *testing.T) {
	tests := []struct {
		hum  float64
		want State
	}{
		{29.9, StateWarning},
		{30.0, StateOK},
		{55, StateOK},
		{80.0, StateOK},
		{80.1, StateInfo},
	}
	for _, tc := range tests {
		if got := Evaluate(at(20, tc.hum, 3000), DefaultThresholds()).Humidity; got != tc.want {
			t.Errorf("humidity=%v: got %s, want %s", tc.hum, got, tc.want)
		}
	}
}

func TestEvaluate_DegenerateThresholds(t *testing.T) {
	// Negative thresholds are accepted as-is.
	a := Evaluate(at(-100, 50, 0), Thresholds{TemperatureMax: -200, FlameThreshold: -1})
	if a.Temperature != StateWarning {
		t.Errorf("Temperature: got %s, want warning", a.Temperature)
	}
	if a.Flame != StateOK {
		t.Errorf("Flame: got %s, want ok", a.Flame)
	}
}

func TestEvaluate_DoesNotMutateReading(t *testing.T) {
	r := at(45, 90, 100)
	before := r
	Evaluate(r, DefaultThresholds())
	if r != before {
		t.Errorf("reading mutated: %+v -> %+v", before, r)
	}
}

func TestAlerts_BySignal(t *testing.T) {
	a := Alerts{Flame: StateCritical, Temperature: StateOK, Humidity: StateInfo}
	m := a.BySignal()
	if len(m) != 3 || m[SignalFlame] != StateCritical || m[SignalHumidity] != StateInfo {
		t.Errorf("BySignal() = %v", m)
	}
}
