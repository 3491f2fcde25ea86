package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/obsidianstack/envwatch/internal/config"
	"github.com/obsidianstack/envwatch/internal/reading"
)

// Decode normalizes one push payload. The feed carries no timestamp, so the
// reading is stamped with now. Any failure wraps ErrMalformed.
func Decode(raw []byte, now time.Time) (reading.Reading, error) {
	r, err := reading.FromJSON(raw, now, reading.Options{})
	if err != nil {
		return reading.Reading{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return r, nil
}

// MQTT is a push source subscribed to a single broker topic.
type MQTT struct {
	cfg      config.MQTTConfig
	clientID string
	now      func() time.Time

	received  atomic.Uint64
	malformed atomic.Uint64

	mu      sync.Mutex
	state   ConnState
	gen     uint64 // bumped on every dial; stale callbacks compare against it
	client  *paho.Client
	handler Handler
}

// NewMQTT returns a disconnected push source for cfg. When cfg.ClientID is
// empty a random envwatch-<uuid> id is used.
func NewMQTT(cfg config.MQTTConfig) *MQTT {
	id := cfg.ClientID
	if id == "" {
		id = "envwatch-" + uuid.NewString()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = config.DefaultConnectTimeout
	}
	return &MQTT{
		cfg:      cfg,
		clientID: id,
		now:      time.Now,
		state:    StateDisconnected,
	}
}

// ClientID returns the id sent in CONNECT.
func (m *MQTT) ClientID() string { return m.clientID }

// State returns the current connection state.
func (m *MQTT) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Received is the number of PUBLISH packets received on the topic.
func (m *MQTT) Received() uint64 { return m.received.Load() }

// Malformed is the number of payloads dropped because they failed to decode.
func (m *MQTT) Malformed() uint64 { return m.malformed.Load() }

// Connect dials the broker, sends CONNECT and subscribes to the configured
// topic. h is called on the client's delivery goroutine for every decoded
// reading. On failure the state stays StateDisconnected and the error wraps
// ErrDisconnected.
func (m *MQTT) Connect(ctx context.Context, h Handler) error {
	if h == nil {
		return errors.New("mqtt: nil handler")
	}
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return fmt.Errorf("mqtt: connect while %s", m.state)
	}
	m.handler = h
	m.mu.Unlock()

	return m.dial(ctx)
}

// Reconnect drops any current session and connects again with the handler
// given to Connect. It is never called automatically.
func (m *MQTT) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	if m.handler == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: reconnect before connect", ErrDisconnected)
	}
	m.mu.Unlock()

	if err := m.Disconnect(); err != nil {
		slog.Debug("mqtt: disconnect before reconnect", "err", err)
	}
	return m.dial(ctx)
}

// Disconnect sends DISCONNECT and closes the connection. It is a no-op when
// there is no client.
func (m *MQTT) Disconnect() error {
	m.mu.Lock()
	c := m.client
	m.client = nil
	m.gen++
	m.state = StateDisconnected
	m.mu.Unlock()

	if c == nil {
		return nil
	}
	return c.Disconnect(&paho.Disconnect{ReasonCode: 0})
}

func (m *MQTT) dial(ctx context.Context) error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	h := m.handler
	m.state = StateConnecting
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	defer cancel()

	addr := brokerAddr(m.cfg.Broker)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		m.fail(gen)
		return fmt.Errorf("%w: dial %s: %w", ErrDisconnected, addr, err)
	}

	c := paho.NewClient(paho.ClientConfig{
		ClientID: m.clientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				m.onPublish(pr.Packet, h)
				return true, nil
			},
		},
		OnClientError: func(err error) {
			if m.lost(gen) {
				slog.Warn("mqtt: connection lost", "broker", addr, "err", err)
			}
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			if m.lost(gen) {
				slog.Warn("mqtt: server sent disconnect", "broker", addr, "reason_code", d.ReasonCode)
			}
		},
	})

	cp := &paho.Connect{
		ClientID:   m.clientID,
		KeepAlive:  keepAliveSeconds(m.cfg.KeepAlive),
		CleanStart: true,
	}
	if m.cfg.Username != "" {
		cp.Username = m.cfg.Username
		cp.UsernameFlag = true
	}
	if pw := m.cfg.Password(); pw != "" {
		cp.Password = []byte(pw)
		cp.PasswordFlag = true
	}

	if _, err := c.Connect(ctx, cp); err != nil {
		_ = conn.Close()
		m.fail(gen)
		return fmt.Errorf("%w: connect %s: %w", ErrDisconnected, addr, err)
	}

	if _, err := c.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{
			Topic: m.cfg.Topic,
			QoS:   m.cfg.QoS,
		}},
	}); err != nil {
		_ = c.Disconnect(&paho.Disconnect{ReasonCode: 0})
		m.fail(gen)
		return fmt.Errorf("%w: subscribe %q: %w", ErrDisconnected, m.cfg.Topic, err)
	}

	m.mu.Lock()
	if m.gen != gen || m.state != StateConnecting {
		// Disconnect or a transport error raced the handshake.
		m.mu.Unlock()
		_ = c.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return fmt.Errorf("%w: disconnected during connect", ErrDisconnected)
	}
	m.client = c
	m.state = StateConnected
	m.mu.Unlock()

	slog.Info("mqtt: connected", "broker", addr, "topic", m.cfg.Topic, "client_id", m.clientID)
	return nil
}

func (m *MQTT) onPublish(p *paho.Publish, h Handler) {
	m.received.Add(1)
	r, err := Decode(p.Payload, m.now().UTC())
	if err != nil {
		m.malformed.Add(1)
		slog.Warn("mqtt: dropping malformed payload", "topic", p.Topic, "bytes", len(p.Payload), "err", err)
		return
	}
	h(r)
}

// fail resets the state after a failed dial of generation gen.
func (m *MQTT) fail(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == gen {
		m.state = StateDisconnected
	}
}

// lost marks the connection of generation gen as dropped. It reports false
// when the generation is stale or already disconnected.
func (m *MQTT) lost(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.state == StateDisconnected {
		return false
	}
	m.state = StateDisconnected
	m.client = nil
	return true
}

// keepAliveSeconds converts d to the CONNECT keep-alive field, clamped to
// the range it can carry.
func keepAliveSeconds(d time.Duration) uint16 {
	return uint16(min(max(d/time.Second, 0), math.MaxUint16))
}

// brokerAddr strips an optional tcp:// or mqtt:// scheme.
func brokerAddr(broker string) string {
	for _, prefix := range []string{"tcp://", "mqtt://"} {
		if strings.HasPrefix(broker, prefix) {
			return strings.TrimPrefix(broker, prefix)
		}
	}
	return broker
}
