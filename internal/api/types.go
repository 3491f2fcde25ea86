package api

import (
	"github.com/obsidianstack/envwatch/internal/pipeline"
	"github.com/obsidianstack/envwatch/internal/reading"
	"github.com/obsidianstack/envwatch/internal/security"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "ok" when data is flowing, "waiting" while the window is empty
	// and "degraded" when the source is failing.
	State          string               `json:"state"`
	Source         string               `json:"source"`
	Connection     string               `json:"connection,omitempty"`
	WindowLen      int                  `json:"window_len"`
	WindowCap      int                  `json:"window_cap"`
	LastFetchError string               `json:"last_fetch_error,omitempty"`
	Stats          pipeline.Stats       `json:"stats"`
	PushReceived   uint64               `json:"push_received"`
	PushMalformed  uint64               `json:"push_malformed"`
	AlertCount     int                  `json:"alert_count"`
	Certificate    *security.CertStatus `json:"certificate,omitempty"`
	Diagnostics    []DiagnosticHint     `json:"diagnostics"`
}

// ReadingsResponse is the payload for GET /api/v1/readings.
type ReadingsResponse struct {
	Order    string            `json:"order"`
	Count    int               `json:"count"`
	Total    int               `json:"total"`
	Readings []reading.Reading `json:"readings"`
}

// ActionResponse is returned by the POST routes.
type ActionResponse struct {
	Status     string `json:"status"`
	WindowLen  int    `json:"window_len"`
	Connection string `json:"connection,omitempty"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
