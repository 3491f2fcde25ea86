// Package api implements the HTTP API served by envwatch.
//
// New(ctrl, opts) returns an http.Handler that serves:
//
//	GET  /api/v1/snapshot    latest, previous, delta, alerts and the window
//	GET  /api/v1/readings    table view; ?limit=20&order=desc by default
//	GET  /api/v1/health      source, connection, counters and diagnostics
//	GET  /api/v1/alerts      firing alerts and those resolved in the last hour
//	GET  /api/v1/export.csv  the window as a CSV attachment
//	POST /api/v1/reset       clear the history
//	POST /api/v1/refresh     pull now; 502 when the fetch fails
//	POST /api/v1/reconnect   reconnect the push source; 409 without one
//	GET  /metrics            Prometheus text exposition
//
// Thresholds default to the configured values; the snapshot, health and
// metrics routes accept temperature_max and flame_threshold query parameters
// to override them for one request.
//
// JSON types are defined in types.go. Errors are returned as {"error": "..."}.
package api
