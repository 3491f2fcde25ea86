package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const deliveryTimeout = 10 * time.Second

// payloadFunc renders an alert as the JSON body a webhook type expects.
type payloadFunc func(a *Alert) any

var payloads = map[string]payloadFunc{
	"slack": func(a *Alert) any {
		return map[string]string{
			"text": fmt.Sprintf("*%s* %s (%s)", badge(a.Severity), a.Message, a.State),
		}
	},
	"teams": func(a *Alert) any {
		return map[string]string{
			"@type":      "MessageCard",
			"@context":   "http://schema.org/extensions",
			"themeColor": cardColor(a.Severity),
			"summary":    a.Signal,
			"title":      fmt.Sprintf("envwatch alert: %s %s", a.Signal, a.State),
			"text":       a.Message,
		}
	},
	"http": func(a *Alert) any {
		return struct {
			Alert *Alert `json:"alert"`
		}{a}
	},
}

// deliver posts a to every configured webhook whose URL resolves. Failures
// are logged and never reach the caller.
func (n *Notifier) deliver(a *Alert) {
	for _, wh := range n.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		render, ok := payloads[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err := n.post(ctx, url, render(a))
		cancel()
		if err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "signal", a.Signal, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "signal", a.Signal, "state", a.State)
	}
}

func (n *Notifier) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook answered %s", resp.Status)
	}
	return nil
}

func badge(s State) string {
	switch s {
	case StateCritical:
		return "[CRITICAL]"
	case StateWarning:
		return "[WARNING]"
	case StateOK:
		return "[OK]"
	}
	return "[INFO]"
}

// cardColor is the MessageCard theme color for s.
func cardColor(s State) string {
	switch s {
	case StateCritical:
		return "E5484D"
	case StateWarning:
		return "F5A524"
	}
	return "3E9BF0"
}
