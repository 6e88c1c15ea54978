package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Bus wraps a NATS JetStream connection for publishing and consuming events.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a Bus connected to the provided NATS endpoint.
func New(url string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &Bus{conn: nc, js: js}, nil
}

// Close drains and shuts down the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// StreamConfig describes the JetStream stream that retains events.
type StreamConfig struct {
	Name     string
	Subjects []string
	MaxAge   time.Duration
}

// EnsureStream creates the stream if missing and updates its subjects otherwise.
func (b *Bus) EnsureStream(ctx context.Context, cfg StreamConfig) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if cfg.Name == "" || len(cfg.Subjects) == 0 {
		return errors.New("stream name and subjects are required")
	}

	sc := &nats.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    cfg.MaxAge,
		// Duplicate window lets relays retry with the same message id.
		Duplicates: 10 * time.Minute,
	}

	_, err := b.js.StreamInfo(cfg.Name, nats.Context(ctx))
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		_, err = b.js.AddStream(sc, nats.Context(ctx))
	case err == nil:
		_, err = b.js.UpdateStream(sc, nats.Context(ctx))
	}
	if err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
	}
	return nil
}

// Publish encodes v as JSON and publishes it to the given subject. When v carries an
// "entry_id" the value doubles as the JetStream message id so redelivered events
// are deduplicated by the server.
func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil {
		return errors.New("nil bus")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	opts := []nats.PubOpt{nats.Context(ctx)}
	if id := messageID(v); id != "" {
		opts = append(opts, nats.MsgId(id))
	}
	_, err = b.js.Publish(subj, data, opts...)
	return err
}

func messageID(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := m["entry_id"].(string)
	return id
}

type subscription struct {
	sub    *nats.Subscription
	mu     sync.Mutex
	closed bool
}

func (s *subscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.sub.Drain()
}

// Subscribe invokes fn for each message on subj. A durable name resumes where the
// consumer left off; an empty durable creates an ephemeral consumer that only sees
// new messages. Handler errors nak the message for redelivery.
func (b *Bus) Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error) {
	if b == nil {
		return nil, errors.New("nil bus")
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	logger := zerolog.Ctx(ctx)
	handler := func(msg *nats.Msg) {
		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		if err := fn(handlerCtx, msg.Data); err != nil {
			logger.Warn().Err(err).Str("subject", msg.Subject).Msg("event handler failed")
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}

	opts := []nats.SubOpt{nats.ManualAck(), nats.AckExplicit()}
	if durable != "" {
		opts = append(opts, nats.Durable(durable))
	} else {
		opts = append(opts, nats.DeliverNew())
	}

	sub, err := b.js.Subscribe(subj, handler, opts...)
	if err != nil {
		return nil, err
	}

	s := &subscription{sub: sub}

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	return s, nil
}
