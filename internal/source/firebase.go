package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/obsidianstack/envwatch/internal/config"
	"github.com/obsidianstack/envwatch/internal/reading"
)

// maxBodyBytes caps the response size of one fetch.
const maxBodyBytes = 8 << 20

// Firebase pulls readings from a Realtime Database path over REST.
type Firebase struct {
	endpoint *url.URL
	client   *http.Client
	now      func() time.Time
}

// NewFirebase builds a pull source from cfg. It fails only when the database
// URL cannot be parsed.
func NewFirebase(cfg config.FirebaseConfig) (*Firebase, error) {
	base, err := url.Parse(strings.TrimRight(cfg.DatabaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("firebase: parse database_url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("firebase: database_url %q must be absolute", cfg.DatabaseURL)
	}

	path := strings.Trim(cfg.Path, "/")
	endpoint := base.JoinPath(path + ".json")

	q := url.Values{}
	q.Set("orderBy", `"$key"`)
	if cfg.Limit > 0 {
		q.Set("limitToLast", strconv.Itoa(cfg.Limit))
	}
	endpoint.RawQuery = q.Encode()

	return &Firebase{
		endpoint: endpoint,
		client:   buildHTTPClient(cfg.Auth, cfg.Timeout),
		now:      time.Now,
	}, nil
}

// Fetch returns the most recent documents as readings, ordered by key.
// Documents that cannot be normalized are skipped and logged; the rest of
// the batch is still returned. An empty or null collection yields an empty
// slice and no error.
func (f *Firebase) Fetch(ctx context.Context) ([]reading.Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http get: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrFetchFailed, redactURL(f.endpoint), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrFetchFailed, err)
	}

	var docs map[string]json.RawMessage
	if err := json.Unmarshal(body, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %w", ErrFetchFailed, err)
	}

	return f.normalize(docs), nil
}

func (f *Firebase) normalize(docs map[string]json.RawMessage) []reading.Reading {
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	fetchedAt := f.now().UTC()
	out := make([]reading.Reading, 0, len(keys))
	for _, k := range keys {
		r, err := reading.FromJSON(docs[k], fetchedAt, reading.Options{UseTimestamp: true})
		if err != nil {
			slog.Warn("firebase: skipping document", "key", k, "err", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// keyLess orders keys the way the database's orderBy="$key" does: keys that
// are 32-bit integers come first in numeric order, then every other key in
// lexical order.
func keyLess(a, b string) bool {
	ai, aInt := intKey(a)
	bi, bInt := intKey(b)
	switch {
	case aInt && bInt:
		return ai < bi
	case aInt != bInt:
		return aInt
	}
	return a < b
}

// intKey reports whether k is the canonical decimal form of a 32-bit integer.
func intKey(k string) (int64, bool) {
	n, err := strconv.ParseInt(k, 10, 32)
	if err != nil || strconv.FormatInt(n, 10) != k {
		return 0, false
	}
	return n, true
}
