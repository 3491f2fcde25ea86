package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/obsidianstack/envwatch/internal/config"
	"github.com/obsidianstack/envwatch/internal/reading"
)

const (
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert is one state transition of a signal.
type Alert struct {
	ID         string     `json:"id"`
	Signal     string     `json:"signal"`
	Severity   State      `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Notifier tracks per-signal alert state across evaluations and delivers
// webhook notifications when a signal leaves or returns to StateOK.
//
// Notifier is safe for concurrent use.
type Notifier struct {
	webhooks []config.WebhookConfig
	client   *http.Client
	now      func() time.Time

	mu      sync.Mutex
	last    map[string]State
	active  map[string]*Alert // key: signal
	history []*Alert          // recently resolved alerts
}

// NewNotifier creates a Notifier delivering to the configured webhooks.
// A Notifier without webhooks still tracks and logs transitions.
func NewNotifier(cfg config.AlertsConfig) *Notifier {
	return &Notifier{
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		last:     make(map[string]State),
		active:   make(map[string]*Alert),
	}
}

// Observe records the alert states computed for r. Transitions from ok to a
// non-ok state fire; transitions back to ok resolve. A change of severity
// while firing (e.g. info to warning on humidity) resolves the previous alert
// and fires a new one.
func (n *Notifier) Observe(r reading.Reading, a Alerts) {
	now := n.now()
	values := map[string]float64{
		SignalFlame:       float64(r.Flame),
		SignalTemperature: r.Temperature,
		SignalHumidity:    r.Humidity,
	}

	var deliveries []Alert

	n.mu.Lock()
	for signal, st := range a.BySignal() {
		prev, seen := n.last[signal]
		n.last[signal] = st
		if seen && prev == st {
			continue
		}
		if !seen && st == StateOK {
			continue
		}

		if st == StateOK {
			if al := n.resolveLocked(signal, now); al != nil {
				deliveries = append(deliveries, *al)
				slog.Info("alert resolved", "signal", signal, "value", values[signal])
			}
			continue
		}

		// Severity changed while firing: the previous alert resolves first.
		n.resolveLocked(signal, now)

		al := &Alert{
			ID:       fmt.Sprintf("%s:%d", signal, now.UnixNano()),
			Signal:   signal,
			Severity: st,
			Value:    values[signal],
			Message:  fmt.Sprintf("[%s] %s is %s (value %.2f)", st, signal, st, values[signal]),
			FiredAt:  now,
			State:    "firing",
		}
		n.active[signal] = al
		deliveries = append(deliveries, *al)
		slog.Warn("alert fired", "signal", signal, "severity", st, "value", values[signal])
	}
	n.mu.Unlock()

	for i := range deliveries {
		go n.deliver(&deliveries[i])
	}
}

// resolveLocked moves the active alert of signal, if any, to the history.
// n.mu must be held.
func (n *Notifier) resolveLocked(signal string, now time.Time) *Alert {
	al, ok := n.active[signal]
	if !ok {
		return nil
	}
	resolved := now
	al.State = "resolved"
	al.ResolvedAt = &resolved
	delete(n.active, signal)
	n.history = append(n.history, al)
	if len(n.history) > maxHistoryLen {
		n.history = n.history[len(n.history)-maxHistoryLen:]
	}
	return al
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, newest first.
func (n *Notifier) Active() []*Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	cutoff := n.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(n.active))
	for _, a := range n.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range n.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Reset forgets all per-signal state, e.g. after the history is cleared.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.last = make(map[string]State)
	n.active = make(map[string]*Alert)
	n.history = nil
}
