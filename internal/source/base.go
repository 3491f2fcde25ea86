package source

import (
	"net/http"
	"net/url"
	"time"

	"github.com/obsidianstack/envwatch/internal/config"
)

const defaultFetchTimeout = 10 * time.Second

// authRoundTripper injects Realtime Database credentials into every request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "token":
		req = req.Clone(req.Context())
		q := req.URL.Query()
		q.Set("auth", t.auth.Token())
		req.URL.RawQuery = q.Encode()
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs the shared http.Client for the pull source.
// timeout bounds the whole exchange, body included.
func buildHTTPClient(auth config.AuthConfig, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &http.Client{
		Transport: &authRoundTripper{
			base: http.DefaultTransport,
			auth: auth,
		},
		Timeout: timeout,
	}
}

// redactURL strips the query string so tokens never reach the logs.
func redactURL(u *url.URL) string {
	cp := *u
	cp.RawQuery = ""
	return cp.String()
}
