package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/screenwise/screenwise/types"
)

// envelope is the wire frame the extension bridge consumes. The ID exists
// purely for log correlation; the bridge never acknowledges it.
type envelope struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Actions []Action `json:"actions"`
	SentAt  int64    `json:"sent_at_ms"`
}

// RelayConfig configures the websocket relay client.
type RelayConfig struct {
	URL          string        `yaml:"url"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultRelayConfig returns sensible defaults.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		URL:          "ws://127.0.0.1:8765/bridge",
		DialTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Relay sends action sequences to the browser-extension bridge over a
// websocket. The connection is dialed lazily on first dispatch and redialed
// after a write failure; there is no receive path.
type Relay struct {
	config RelayConfig
	logger *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewRelay creates a relay client. No connection is made until Dispatch.
func NewRelay(config RelayConfig, logger *zap.Logger) *Relay {
	if config.DialTimeout == 0 {
		config.DialTimeout = 3 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 3 * time.Second
	}
	return &Relay{
		config: config,
		logger: logger.With(zap.String("component", "action_relay")),
	}
}

// Dispatch sends one action sequence. The returned error covers handoff
// only (dial or write failure); a nil return says nothing about whether the
// bridge executed anything.
func (r *Relay) Dispatch(ctx context.Context, sequence []Action) error {
	if len(sequence) == 0 {
		return nil
	}

	env := envelope{
		ID:      uuid.NewString(),
		Kind:    "action_sequence",
		Actions: sequence,
		SentAt:  time.Now().UnixMilli(),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal action envelope: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return types.NewError(types.ErrRelayUnavailable, "relay is closed")
	}

	writeErr := r.writeLocked(ctx, body)
	if writeErr == nil {
		r.logger.Debug("action sequence dispatched",
			zap.String("id", env.ID),
			zap.Int("actions", len(sequence)),
		)
		return nil
	}
	r.logger.Warn("relay write failed, redialing", zap.Error(writeErr))

	// One redial, one retry. Anything past that is the verification loop's
	// problem: a lost sequence just shows up as a failed verification.
	r.dropConnLocked()
	if err := r.writeLocked(ctx, body); err != nil {
		return types.NewError(types.ErrRelayUnavailable, "dispatch to extension bridge failed").WithCause(err)
	}

	r.logger.Debug("action sequence dispatched after redial",
		zap.String("id", env.ID),
		zap.Int("actions", len(sequence)),
	)
	return nil
}

// writeLocked ensures a connection and writes one text frame.
// Caller holds r.mu.
func (r *Relay) writeLocked(ctx context.Context, body []byte) error {
	if r.conn == nil {
		dialCtx, cancel := context.WithTimeout(ctx, r.config.DialTimeout)
		conn, _, err := websocket.Dial(dialCtx, r.config.URL, nil)
		cancel()
		if err != nil {
			return fmt.Errorf("dial bridge %s: %w", r.config.URL, err)
		}
		r.conn = conn
	}

	writeCtx, cancel := context.WithTimeout(ctx, r.config.WriteTimeout)
	defer cancel()
	return r.conn.Write(writeCtx, websocket.MessageText, body)
}

// dropConnLocked discards the current connection. Caller holds r.mu.
func (r *Relay) dropConnLocked() {
	if r.conn != nil {
		_ = r.conn.Close(websocket.StatusNormalClosure, "redial")
		r.conn = nil
	}
}

// Close shuts the relay down. Further dispatches fail fast.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.conn != nil {
		err := r.conn.Close(websocket.StatusNormalClosure, "closing")
		r.conn = nil
		return err
	}
	return nil
}

var _ Executor = (*Relay)(nil)
