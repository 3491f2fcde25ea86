package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/obsidianstack/envwatch/internal/config"
)

// RequireAPIKey wraps next so that every request other than GET, HEAD and
// OPTIONS must carry the configured key in the configured header.
//
// When cfg.Mode is not "apikey" or the key resolves to an empty string, next
// is returned unchanged.
func RequireAPIKey(cfg config.APIAuthConfig, next http.Handler) http.Handler {
	key := cfg.Key()
	if cfg.Mode != "apikey" || key == "" {
		return next
	}
	header := cfg.Header
	if header == "" {
		header = config.DefaultAPIKeyHeader
	}
	want := []byte(key)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		got := r.Header.Get(header)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
			return
		}
		next.ServeHTTP(w, r)
	})
}
