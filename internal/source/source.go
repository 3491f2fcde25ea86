package source

import (
	"context"
	"errors"

	"github.com/obsidianstack/envwatch/internal/reading"
)

var (
	// ErrMalformed wraps any push payload that cannot be normalized.
	ErrMalformed = errors.New("malformed payload")

	// ErrFetchFailed wraps transport, auth and envelope decoding failures of a pull.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrDisconnected is returned when the push source cannot reach the broker.
	ErrDisconnected = errors.New("disconnected")
)

// Handler receives every reading decoded from the push feed.
type Handler func(reading.Reading)

// Fetcher pulls the current batch of readings, oldest first.
type Fetcher interface {
	Fetch(ctx context.Context) ([]reading.Reading, error)
}

// Subscriber delivers readings as they are published.
type Subscriber interface {
	Connect(ctx context.Context, h Handler) error
	Reconnect(ctx context.Context) error
	Disconnect() error
	State() ConnState
}

// ConnState is the connection state of a Subscriber.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)
