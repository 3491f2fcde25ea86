package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/obsidianstack/envwatch/internal/alerts"
	"github.com/obsidianstack/envwatch/internal/config"
	"github.com/obsidianstack/envwatch/internal/export"
	"github.com/obsidianstack/envwatch/internal/metrics"
	"github.com/obsidianstack/envwatch/internal/pipeline"
	"github.com/obsidianstack/envwatch/internal/reading"
	"github.com/obsidianstack/envwatch/internal/security"
	"github.com/obsidianstack/envwatch/internal/source"
)

const defaultReadingsLimit = 20

// Options wires the handler to the rest of the process.
type Options struct {
	// Source is config.SourceMQTT or config.SourceFirebase.
	Source string

	// Thresholds returns the configured defaults. It is called per request so
	// that a reloaded config takes effect. Nil means alerts.DefaultThresholds.
	Thresholds func() alerts.Thresholds

	// Push is the push source, nil when Source is not mqtt.
	Push source.Subscriber

	// Notifier supplies /api/v1/alerts and is reset with the history. Optional.
	Notifier *alerts.Notifier

	// Certificate returns the latest TLS check of the pull endpoint. Optional.
	Certificate func() *security.CertStatus
}

// pushCounters is implemented by push sources that count their traffic.
type pushCounters interface {
	Received() uint64
	Malformed() uint64
}

// Handler is the HTTP handler for the /api/v1/* and /metrics endpoints.
type Handler struct {
	ctrl *pipeline.Controller
	opts Options
	mux  *http.ServeMux
}

// New creates a Handler reading from ctrl and registers all routes.
func New(ctrl *pipeline.Controller, opts Options) http.Handler {
	if opts.Thresholds == nil {
		opts.Thresholds = alerts.DefaultThresholds
	}
	h := &Handler{ctrl: ctrl, opts: opts, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/readings", h.readings)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/export.csv", h.exportCSV)
	h.mux.HandleFunc("/api/v1/reset", h.reset)
	h.mux.HandleFunc("/api/v1/refresh", h.refresh)
	h.mux.HandleFunc("/api/v1/reconnect", h.reconnect)
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- read routes ------------------------------------------------------------

// snapshot returns GET /api/v1/snapshot.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	th, err := h.thresholds(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, h.ctrl.Snapshot(th))
}

// readings returns GET /api/v1/readings, newest first unless order=asc.
func (h *Handler) readings(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	limit := defaultReadingsLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	order := q.Get("order")
	switch order {
	case "":
		order = "desc"
	case "asc", "desc":
	default:
		jsonErr(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}

	all := h.ctrl.Snapshot(h.opts.Thresholds()).Window
	rows := all
	if limit > 0 && limit < len(rows) {
		rows = rows[len(rows)-limit:]
	}
	out := make([]reading.Reading, len(rows))
	copy(out, rows)
	if order == "desc" {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	jsonResp(w, http.StatusOK, ReadingsResponse{
		Order:    order,
		Count:    len(out),
		Total:    len(all),
		Readings: out,
	})
}

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	st := h.ctrl.Stats()
	in := healthInput{
		source:    h.opts.Source,
		windowLen: h.ctrl.Len(),
		lastErr:   st.LastFetchError,
	}
	resp := HealthResponse{
		Source:         h.opts.Source,
		WindowLen:      in.windowLen,
		WindowCap:      h.ctrl.Cap(),
		LastFetchError: st.LastFetchError,
		Stats:          st,
	}
	if h.opts.Push != nil {
		in.connection = h.opts.Push.State()
		resp.Connection = string(in.connection)
		if pc, ok := h.opts.Push.(pushCounters); ok {
			in.received, in.malformed = pc.Received(), pc.Malformed()
			resp.PushReceived, resp.PushMalformed = in.received, in.malformed
		}
	}
	if h.opts.Notifier != nil {
		resp.AlertCount = len(h.opts.Notifier.Active())
	}
	if h.opts.Certificate != nil {
		in.cert = h.opts.Certificate()
		resp.Certificate = in.cert
	}

	resp.Diagnostics = computeDiagnostics(in)
	resp.State = overallState(resp.Diagnostics)
	jsonResp(w, http.StatusOK, resp)
}

// alerts returns GET /api/v1/alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.opts.Notifier == nil {
		jsonResp(w, http.StatusOK, []struct{}{})
		return
	}
	jsonResp(w, http.StatusOK, h.opts.Notifier.Active())
}

// exportCSV returns GET /api/v1/export.csv as an attachment.
func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	snap := h.ctrl.Snapshot(h.opts.Thresholds())
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, snap.Window); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(snap.GeneratedAt)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// metrics returns GET /metrics.
func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	th, err := h.thresholds(r)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := metrics.Write(&buf, h.ctrl.Snapshot(th), h.counters()...); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", metrics.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// --- actions ----------------------------------------------------------------

// reset handles POST /api/v1/reset.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := h.ctrl.Reset(r.Context()); err != nil {
		jsonErr(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if h.opts.Notifier != nil {
		h.opts.Notifier.Reset()
	}
	jsonResp(w, http.StatusOK, ActionResponse{Status: "cleared", WindowLen: h.ctrl.Len()})
}

// refresh handles POST /api/v1/refresh.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	err := h.ctrl.RefreshPull(r.Context())
	switch {
	case errors.Is(err, pipeline.ErrNoFetcher):
		jsonErr(w, http.StatusConflict, "source is not a pull source")
	case errors.Is(err, source.ErrFetchFailed):
		jsonErr(w, http.StatusBadGateway, err.Error())
	case err != nil:
		jsonErr(w, http.StatusServiceUnavailable, err.Error())
	default:
		jsonResp(w, http.StatusOK, ActionResponse{Status: "refreshed", WindowLen: h.ctrl.Len()})
	}
}

// reconnect handles POST /api/v1/reconnect.
func (h *Handler) reconnect(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if h.opts.Push == nil || h.opts.Source != config.SourceMQTT {
		jsonErr(w, http.StatusConflict, "source is not mqtt")
		return
	}
	if err := h.opts.Push.Reconnect(r.Context()); err != nil {
		slog.Warn("api: reconnect failed", "err", err)
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, ActionResponse{
		Status:     "reconnected",
		WindowLen:  h.ctrl.Len(),
		Connection: string(h.opts.Push.State()),
	})
}

// --- helpers ----------------------------------------------------------------

// thresholds returns the configured thresholds with any query overrides.
func (h *Handler) thresholds(r *http.Request) (alerts.Thresholds, error) {
	th := h.opts.Thresholds()
	q := r.URL.Query()
	if s := q.Get("temperature_max"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return th, fmt.Errorf("temperature_max: %q is not a number", s)
		}
		th.TemperatureMax = v
	}
	if s := q.Get("flame_threshold"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return th, fmt.Errorf("flame_threshold: %q is not an integer", s)
		}
		th.FlameThreshold = v
	}
	return th, nil
}

func (h *Handler) counters() []metrics.Counter {
	st := h.ctrl.Stats()
	out := []metrics.Counter{
		{Name: "envwatch_ingested_total", Help: "Pushed readings appended to the window.", Value: st.Ingested},
		{Name: "envwatch_refreshes_total", Help: "Successful pull refreshes.", Value: st.Refreshes},
		{Name: "envwatch_fetch_failures_total", Help: "Failed pull refreshes.", Value: st.FetchFailures},
		{Name: "envwatch_resets_total", Help: "History resets.", Value: st.Resets},
	}
	if pc, ok := h.opts.Push.(pushCounters); ok {
		out = append(out,
			metrics.Counter{Name: "envwatch_mqtt_received_total", Help: "MQTT messages received on the topic.", Value: pc.Received()},
			metrics.Counter{Name: "envwatch_mqtt_malformed_total", Help: "MQTT messages dropped as malformed.", Value: pc.Malformed()},
		)
	}
	return out
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
