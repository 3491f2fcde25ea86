package api

import (
	"fmt"

	"github.com/obsidianstack/envwatch/internal/config"
	"github.com/obsidianstack/envwatch/internal/security"
	"github.com/obsidianstack/envwatch/internal/source"
)

// DiagnosticHint is one human-readable insight about the feed.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type healthInput struct {
	source     string
	connection source.ConnState
	windowLen  int
	lastErr    string
	received   uint64
	malformed  uint64
	cert       *security.CertStatus
}

// computeDiagnostics derives hints from the current feed state, most severe
// first.
func computeDiagnostics(in healthInput) []DiagnosticHint {
	var hints []DiagnosticHint

	if in.source == config.SourceMQTT && in.connection != source.StateConnected {
		hints = append(hints, DiagnosticHint{
			Key:   "broker_disconnected",
			Level: "critical",
			Title: "Broker unreachable",
			Detail: fmt.Sprintf(
				"The MQTT client is %s. No new readings arrive until it reconnects. "+
					"Check that the broker is running and reachable, then POST /api/v1/reconnect. "+
					"envwatch does not retry on its own.",
				in.connection,
			),
		})
	}

	if in.lastErr != "" {
		hints = append(hints, DiagnosticHint{
			Key:   "fetch_failed",
			Level: "critical",
			Title: "Can't reach database",
			Detail: fmt.Sprintf(
				"The last refresh failed with: %q. The window still shows the previous batch. "+
					"Check the database URL, the credentials and that the database rules allow reads.",
				in.lastErr,
			),
		})
	}

	if h, ok := certHint(in.cert); ok {
		hints = append(hints, h)
	}

	if in.malformed > 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "malformed_payloads",
			Level: "warning",
			Title: fmt.Sprintf("%d malformed payloads", in.malformed),
			Detail: fmt.Sprintf(
				"%d of %d messages on the topic could not be decoded and were dropped. "+
					"The device must publish a flat JSON object with numeric fields.",
				in.malformed, in.received,
			),
		})
	}

	if in.windowLen == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "waiting_for_data",
			Level:  "info",
			Title:  "Waiting for data",
			Detail: waitingDetail(in.source),
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: fmt.Sprintf("Readings are flowing; the window holds %d of them.", in.windowLen),
		})
	}
	return hints
}

func certHint(cs *security.CertStatus) (DiagnosticHint, bool) {
	if cs == nil {
		return DiagnosticHint{}, false
	}
	switch cs.Status {
	case security.StatusExpired:
		return DiagnosticHint{
			Key:    "cert_expired",
			Level:  "critical",
			Title:  "Database certificate expired",
			Detail: fmt.Sprintf("The certificate of %s expired on %s.", cs.Endpoint, cs.NotAfter.Format("2006-01-02")),
		}, true
	case security.StatusExpiring:
		return DiagnosticHint{
			Key:    "cert_expiring",
			Level:  "warning",
			Title:  fmt.Sprintf("Database certificate expires in %d days", cs.DaysLeft),
			Detail: fmt.Sprintf("The certificate of %s, issued by %s, is valid until %s.", cs.Endpoint, cs.Issuer, cs.NotAfter.Format("2006-01-02")),
		}, true
	case security.StatusUntrusted:
		return DiagnosticHint{
			Key:    "cert_untrusted",
			Level:  "warning",
			Title:  "Database certificate not trusted",
			Detail: fmt.Sprintf("The certificate of %s failed verification: %s.", cs.Endpoint, cs.Error),
		}, true
	case security.StatusUnreachable:
		return DiagnosticHint{
			Key:    "tls_unreachable",
			Level:  "warning",
			Title:  "TLS handshake failed",
			Detail: fmt.Sprintf("Could not complete a TLS handshake with %s: %s.", cs.Endpoint, cs.Error),
		}, true
	}
	return DiagnosticHint{}, false
}

func waitingDetail(kind string) string {
	if kind == config.SourceFirebase {
		return "No readings in the database yet. Check that the ESP32 is writing to the configured path, " +
			"that the credentials are present, that the database URL is correct, " +
			"and that the database rules allow reads."
	}
	return "No readings received yet. Check that the ESP32 is powered and on the network, " +
		"and that it publishes to the configured topic on this broker."
}

// overallState summarizes hints into the health state string.
func overallState(hints []DiagnosticHint) string {
	state := "ok"
	for _, h := range hints {
		switch h.Level {
		case "critical":
			return "degraded"
		case "info":
			if h.Key == "waiting_for_data" {
				state = "waiting"
			}
		}
	}
	return state
}
