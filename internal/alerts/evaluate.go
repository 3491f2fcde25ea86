package alerts

import "github.com/obsidianstack/envwatch/internal/reading"

// State is the alert classification of one signal.
type State string

const (
	StateOK       State = "ok"
	StateInfo     State = "info"
	StateWarning  State = "warning"
	StateCritical State = "critical"
)

// Fixed humidity comfort band, in percent.
const (
	HumidityLow  = 30.0
	HumidityHigh = 80.0
)

// Default threshold values.
const (
	DefaultTemperatureMax = 50.0
	DefaultFlameThreshold = 2000
)

// Signal names used as keys in logs, metrics and notifications.
const (
	SignalFlame       = "flame"
	SignalTemperature = "temperature"
	SignalHumidity    = "humidity"
)

// Thresholds are supplied by the caller on every evaluation. Values are not
// validated; nonsensical thresholds simply produce degenerate alerts.
type Thresholds struct {
	// TemperatureMax raises a warning at or above this temperature (°C).
	TemperatureMax float64 `json:"temperature_max"`

	// FlameThreshold raises a critical alert when the raw flame reading is
	// strictly below it. The reference sensor reads lower the stronger the
	// flame.
	FlameThreshold int `json:"flame_threshold"`
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TemperatureMax: DefaultTemperatureMax,
		FlameThreshold: DefaultFlameThreshold,
	}
}

// Alerts holds one State per monitored signal.
type Alerts struct {
	Flame       State `json:"flame"`
	Temperature State `json:"temperature"`
	Humidity    State `json:"humidity"`
}

// Evaluate classifies r against th. It never mutates its inputs.
func Evaluate(r reading.Reading, th Thresholds) Alerts {
	return Alerts{
		Flame:       flameState(r.Flame, th.FlameThreshold),
		Temperature: temperatureState(r.Temperature, th.TemperatureMax),
		Humidity:    humidityState(r.Humidity),
	}
}

// BySignal returns the states keyed by signal name.
func (a Alerts) BySignal() map[string]State {
	return map[string]State{
		SignalFlame:       a.Flame,
		SignalTemperature: a.Temperature,
		SignalHumidity:    a.Humidity,
	}
}

func flameState(v, threshold int) State {
	if v < threshold {
		return StateCritical
	}
	return StateOK
}

func temperatureState(v, limit float64) State {
	if v >= limit {
		return StateWarning
	}
	return StateOK
}

func humidityState(v float64) State {
	switch {
	case v < HumidityLow:
		return StateWarning
	case v > HumidityHigh:
		return StateInfo
	default:
		return StateOK
	}
}
