package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/obsidianstack/envwatch/internal/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func call(h http.Handler, method, header, key string) int {
	req := httptest.NewRequest(method, "/api/v1/reset", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestRequireAPIKey_ModeNonePassesThrough(t *testing.T) {
	t.Setenv("ENVWATCH_TEST_API_KEY", "secret")
	h := RequireAPIKey(config.APIAuthConfig{Mode: "none", KeyEnv: "ENVWATCH_TEST_API_KEY"}, okHandler)
	if got := call(h, http.MethodPost, "", ""); got != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", got)
	}
}

func TestRequireAPIKey_EmptyKeyPassesThrough(t *testing.T) {
	h := RequireAPIKey(config.APIAuthConfig{Mode: "apikey", KeyEnv: "ENVWATCH_TEST_UNSET_KEY"}, okHandler)
	if got := call(h, http.MethodPost, "", ""); got != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", got)
	}
}

func TestRequireAPIKey(t *testing.T) {
	t.Setenv("ENVWATCH_TEST_API_KEY", "secret")
	cfg := config.APIAuthConfig{Mode: "apikey", Header: "X-Envwatch-Key", KeyEnv: "ENVWATCH_TEST_API_KEY"}
	h := RequireAPIKey(cfg, okHandler)

	tests := []struct {
		name   string
		method string
		header string
		key    string
		want   int
	}{
		{"get is open", http.MethodGet, "", "", http.StatusNoContent},
		{"post without key", http.MethodPost, "", "", http.StatusUnauthorized},
		{"post with wrong key", http.MethodPost, "X-Envwatch-Key", "nope", http.StatusUnauthorized},
		{"post with key in other header", http.MethodPost, "X-API-Key", "secret", http.StatusUnauthorized},
		{"post with key", http.MethodPost, "X-Envwatch-Key", "secret", http.StatusNoContent},
		{"header match is case-insensitive", http.MethodPost, "x-envwatch-key", "secret", http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := call(h, tc.method, tc.header, tc.key); got != tc.want {
				t.Errorf("status: got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRequireAPIKey_DefaultHeader(t *testing.T) {
	t.Setenv("ENVWATCH_TEST_API_KEY", "secret")
	h := RequireAPIKey(config.APIAuthConfig{Mode: "apikey", KeyEnv: "ENVWATCH_TEST_API_KEY"}, okHandler)
	if got := call(h, http.MethodPost, config.DefaultAPIKeyHeader, "secret"); got != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", got)
	}
}
