package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/obsidianstack/envwatch/internal/config"
)

func newTestFirebase(t *testing.T, srv *httptest.Server, auth config.AuthConfig) *Firebase {
	t.Helper()
	fb, err := NewFirebase(config.FirebaseConfig{
		DatabaseURL: srv.URL,
		Path:        "sensors",
		Limit:       100,
		Timeout:     2 * time.Second,
		Auth:        auth,
	})
	if err != nil {
		t.Fatalf("NewFirebase: %v", err)
	}
	return fb
}

func TestFirebase_FetchOrdersByKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sensors.json" {
			t.Errorf("path: got %q, want /sensors.json", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("orderBy"); got != `"$key"` {
			t.Errorf("orderBy: got %q", got)
		}
		if got := q.Get("limitToLast"); got != "100" {
			t.Errorf("limitToLast: got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"-Nb3": {"temperature": 22.5, "humidite": 41, "flame": 4000, "Ldr": 120, "timestamp": 1700000002000},
			"-Na1": {"temperature": 20.0, "humidite": 40, "flame": 4095, "Ldr": 100, "timestamp": 1700000000000},
			"-Na2": {"temperature": 21.0, "humidite": 40.5, "flame": 3990, "Ldr": 110, "timestamp": 1700000001000}
		}`))
	}))
	defer srv.Close()

	got, err := newTestFirebase(t, srv, config.AuthConfig{}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len: got %d, want 3", len(got))
	}
	wantTemps := []float64{20.0, 21.0, 22.5}
	for i, r := range got {
		if r.Temperature != wantTemps[i] {
			t.Errorf("[%d] temperature: got %v, want %v", i, r.Temperature, wantTemps[i])
		}
	}
	if got[0].Light != 100 || got[0].Humidity != 40 {
		t.Errorf("[0] aliases not applied: %+v", got[0])
	}
	if want := time.UnixMilli(1700000000000).UTC(); !got[0].Timestamp.Equal(want) {
		t.Errorf("[0] timestamp: got %v, want %v", got[0].Timestamp, want)
	}
}

func TestFirebase_IntegerKeysOrderNumerically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"10": {"temperature": 10},
			"-Na1": {"temperature": 100},
			"9": {"temperature": 9},
			"11": {"temperature": 11},
			"007": {"temperature": 7},
			"-2": {"temperature": -2}
		}`))
	}))
	defer srv.Close()

	got, err := newTestFirebase(t, srv, config.AuthConfig{}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	// Integers first, numerically; then the rest lexically: "-Na1" < "007".
	want := []float64{-2, 9, 10, 11, 100, 7}
	if len(got) != len(want) {
		t.Fatalf("len: got %d, want %d", len(got), len(want))
	}
	for i, r := range got {
		if r.Temperature != want[i] {
			t.Errorf("[%d] temperature: got %v, want %v", i, r.Temperature, want[i])
		}
	}
}

func TestKeyLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"9", "10", true},
		{"10", "9", false},
		{"2147483647", "-Na1", true},
		{"2147483648", "300", false}, // beyond 32 bits: compared as a string
		{"-Na1", "-Na2", true},
		{"01", "1", false},
	}
	for _, tc := range tests {
		if got := keyLess(tc.a, tc.b); got != tc.want {
			t.Errorf("keyLess(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestFirebase_MissingTimestampUsesFetchTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"-a": {"temperature": 19}}`))
	}))
	defer srv.Close()

	fb := newTestFirebase(t, srv, config.AuthConfig{})
	fixed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	fb.now = func() time.Time { return fixed }

	got, err := fb.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || !got[0].Timestamp.Equal(fixed) {
		t.Errorf("got %+v, want one reading stamped %v", got, fixed)
	}
}

func TestFirebase_SkipsBadDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"-a": {"temperature": 20},
			"-b": "not an object",
			"-c": {"temperature": "hot"},
			"-d": {"temperature": 21}
		}`))
	}))
	defer srv.Close()

	got, err := newTestFirebase(t, srv, config.AuthConfig{}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 || got[0].Temperature != 20 || got[1].Temperature != 21 {
		t.Errorf("got %+v, want the two valid documents in order", got)
	}
}

func TestFirebase_NullCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	}))
	defer srv.Close()

	got, err := newTestFirebase(t, srv, config.AuthConfig{}).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}

func TestFirebase_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"Permission denied"}`, http.StatusUnauthorized)
		}},
		{"bad envelope", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[1,2,3]`))
		}},
		{"truncated", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"-a": {"temperature"`))
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := newTestFirebase(t, srv, config.AuthConfig{}).Fetch(context.Background())
			if !errors.Is(err, ErrFetchFailed) {
				t.Errorf("err: got %v, want ErrFetchFailed", err)
			}
		})
	}
}

func TestFirebase_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	fb := newTestFirebase(t, srv, config.AuthConfig{})
	srv.Close()

	if _, err := fb.Fetch(context.Background()); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("err: got %v, want ErrFetchFailed", err)
	}
}

func TestFirebase_TokenAuth(t *testing.T) {
	t.Setenv("ENVWATCH_TEST_FB_TOKEN", "db-secret")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("auth"); got != "db-secret" {
			t.Errorf("auth param: got %q", got)
		}
		if got := r.URL.Query().Get("orderBy"); got != `"$key"` {
			t.Errorf("orderBy lost after auth injection: %q", got)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	fb := newTestFirebase(t, srv, config.AuthConfig{Mode: "token", TokenEnv: "ENVWATCH_TEST_FB_TOKEN"})
	if _, err := fb.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}

func TestFirebase_BearerAuth(t *testing.T) {
	t.Setenv("ENVWATCH_TEST_FB_BEARER", "ya29.token")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ya29.token" {
			t.Errorf("Authorization: got %q", got)
		}
		if r.URL.Query().Has("auth") {
			t.Error("bearer mode must not send auth param")
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	fb := newTestFirebase(t, srv, config.AuthConfig{Mode: "bearer", TokenEnv: "ENVWATCH_TEST_FB_BEARER"})
	if _, err := fb.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}

func TestNewFirebase_RejectsRelativeURL(t *testing.T) {
	if _, err := NewFirebase(config.FirebaseConfig{DatabaseURL: "my-db.firebaseio.com"}); err == nil {
		t.Fatal("expected error for URL without scheme")
	}
}
