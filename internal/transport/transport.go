package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	KindZMQ      = "zmq"
	KindNATS     = "nats"
	KindLoopback = "loopback"
)

var (
	// ErrNoData is returned by Recv when the timeout elapsed without a frame.
	ErrNoData = errors.New("transport: no data")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport: closed")

	ErrUnknownKind = errors.New("transport: unknown kind")
)

type Publisher interface {
	Send(ctx context.Context, frame string) error
	Close() error
}

type Subscriber interface {
	Recv(timeout time.Duration) (string, error)
	Close() error
}

// DropCounter is implemented by subscribers that discard frames when their
// receive buffer is full.
type DropCounter interface {
	Dropped() uint64
}

// Error is a bind, connect, send or receive failure.
type Error struct {
	Op       string
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Config struct {
	Kind        string        `yaml:"kind"`
	Bind        string        `yaml:"bind"`
	Connect     string        `yaml:"connect"`
	NATSURL     string        `yaml:"nats_url"`
	DialRetry   time.Duration `yaml:"dial_retry"`
	DialRetries int           `yaml:"dial_retries"`
	Buffer      int           `yaml:"buffer"`

	// Bus is the shared bus for the loopback kind.
	Bus *Loopback `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Kind:        KindZMQ,
		Bind:        "tcp://*:5555",
		Connect:     "tcp://localhost:5555",
		NATSURL:     "nats://localhost:4222",
		DialRetry:   250 * time.Millisecond,
		DialRetries: 20,
		Buffer:      64,
	}
}

func (c Config) Validate() error {
	switch c.Kind {
	case KindZMQ:
		if c.Bind == "" && c.Connect == "" {
			return fmt.Errorf("transport: zmq needs a bind or connect endpoint")
		}
	case KindNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("transport: nats needs a server url")
		}
	case KindLoopback:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	if c.Buffer < 0 {
		return fmt.Errorf("transport: buffer must be non-negative, got %d", c.Buffer)
	}
	return nil
}

// OpenPublisher binds (zmq) or connects (nats) a publisher for topic.
func OpenPublisher(ctx context.Context, cfg Config, topic string, log *slog.Logger) (Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Kind {
	case KindZMQ:
		return NewZMQPublisher(ctx, cfg.Bind, log)
	case KindNATS:
		return NewNATSPublisher(cfg.NATSURL, topic, log)
	case KindLoopback:
		if cfg.Bus == nil {
			return nil, fmt.Errorf("transport: loopback kind without a bus")
		}
		return cfg.Bus.Publisher(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// OpenSubscriber connects a subscriber filtered on topic.
func OpenSubscriber(ctx context.Context, cfg Config, topic string, log *slog.Logger) (Subscriber, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Kind {
	case KindZMQ:
		return NewZMQSubscriber(ctx, cfg.Connect, topic, ZMQOptions{
			DialRetry:   cfg.DialRetry,
			DialRetries: cfg.DialRetries,
			Buffer:      cfg.Buffer,
		}, log)
	case KindNATS:
		return NewNATSSubscriber(cfg.NATSURL, topic, cfg.Buffer, log)
	case KindLoopback:
		if cfg.Bus == nil {
			return nil, fmt.Errorf("transport: loopback kind without a bus")
		}
		return cfg.Bus.Subscribe(topic, cfg.Buffer), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}
