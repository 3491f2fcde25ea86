package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/obsidianstack/envwatch/internal/alerts"
	"github.com/obsidianstack/envwatch/internal/reading"
	"github.com/obsidianstack/envwatch/internal/source"
	"github.com/obsidianstack/envwatch/internal/window"
)

// ErrNoFetcher is returned by RefreshPull when no pull source is configured.
var ErrNoFetcher = errors.New("pipeline: no fetcher configured")

// Option configures a Controller.
type Option func(*Controller)

// WithFetcher sets the pull source used by RefreshPull.
func WithFetcher(f source.Fetcher) Option {
	return func(c *Controller) { c.fetcher = f }
}

// WithClock overrides the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

type op struct {
	apply func()
	done  chan struct{}
}

// Controller serializes all writes to a window through one goroutine.
type Controller struct {
	win     *window.Window
	fetcher source.Fetcher
	now     func() time.Time
	ops     chan op

	ingested      atomic.Uint64
	refreshes     atomic.Uint64
	fetchFailures atomic.Uint64
	resets        atomic.Uint64

	mu           sync.Mutex
	lastFetchErr string
}

// Stats are the controller's running counters.
type Stats struct {
	Ingested       uint64 `json:"ingested"`
	Refreshes      uint64 `json:"refreshes"`
	FetchFailures  uint64 `json:"fetch_failures"`
	Resets         uint64 `json:"resets"`
	LastFetchError string `json:"last_fetch_error,omitempty"`
}

// New returns a Controller writing to win. Call Run before any mutating call.
func New(win *window.Window, opts ...Option) *Controller {
	c := &Controller{
		win: win,
		now: time.Now,
		ops: make(chan op),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run applies queued operations until ctx is cancelled. It must be called
// exactly once.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-c.ops:
			o.apply()
			close(o.done)
		}
	}
}

// submit hands fn to the writer and waits for it to be applied. Once
// accepted, an operation always completes.
func (c *Controller) submit(ctx context.Context, fn func()) error {
	o := op{apply: fn, done: make(chan struct{})}
	select {
	case c.ops <- o:
	case <-ctx.Done():
		return ctx.Err()
	}
	<-o.done
	return nil
}

// IngestPush appends one pushed reading.
func (c *Controller) IngestPush(ctx context.Context, r reading.Reading) error {
	err := c.submit(ctx, func() { c.win.Append(r) })
	if err == nil {
		c.ingested.Add(1)
	}
	return err
}

// RefreshPull fetches the latest batch and replaces the window with it.
// The fetch runs on the caller's goroutine; only the replace goes through the
// writer. On fetch failure, or when the batch is empty, the window is left as
// it was.
func (c *Controller) RefreshPull(ctx context.Context) error {
	if c.fetcher == nil {
		return ErrNoFetcher
	}

	batch, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.fetchFailures.Add(1)
		c.setLastFetchError(err.Error())
		slog.Warn("pipeline: refresh failed, keeping previous window", "err", err)
		if !errors.Is(err, source.ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", source.ErrFetchFailed, err)
		}
		return err
	}

	if len(batch) == 0 {
		c.refreshes.Add(1)
		c.setLastFetchError("")
		slog.Debug("pipeline: empty batch, keeping previous window", "readings", c.win.Len())
		return nil
	}

	if err := c.submit(ctx, func() { c.win.ReplaceAll(batch) }); err != nil {
		return err
	}
	c.refreshes.Add(1)
	c.setLastFetchError("")
	slog.Debug("pipeline: window refreshed", "readings", len(batch))
	return nil
}

// Reset clears the window.
func (c *Controller) Reset(ctx context.Context) error {
	err := c.submit(ctx, c.win.Clear)
	if err == nil {
		c.resets.Add(1)
		slog.Info("pipeline: history cleared")
	}
	return err
}

// Snapshot returns a consistent view of the window evaluated against th.
func (c *Controller) Snapshot(th alerts.Thresholds) Snapshot {
	return buildSnapshot(c.win.Snapshot(), th, c.now().UTC())
}

// Len is the current number of readings in the window.
func (c *Controller) Len() int { return c.win.Len() }

// Cap is the window capacity.
func (c *Controller) Cap() int { return c.win.Cap() }

// HasFetcher reports whether RefreshPull can run.
func (c *Controller) HasFetcher() bool { return c.fetcher != nil }

// Stats returns a copy of the running counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	last := c.lastFetchErr
	c.mu.Unlock()
	return Stats{
		Ingested:       c.ingested.Load(),
		Refreshes:      c.refreshes.Load(),
		FetchFailures:  c.fetchFailures.Load(),
		Resets:         c.resets.Load(),
		LastFetchError: last,
	}
}

func (c *Controller) setLastFetchError(s string) {
	c.mu.Lock()
	c.lastFetchErr = s
	c.mu.Unlock()
}
