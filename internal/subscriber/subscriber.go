package subscriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/jointlink/internal/metrics"
	"github.com/san-kum/jointlink/internal/registry"
	"github.com/san-kum/jointlink/internal/telemetry"
	"github.com/san-kum/jointlink/internal/transport"
)

const DefaultRecvTimeout = 10 * time.Millisecond

// ErrStale marks a snapshot whose timestamp is not newer than the last
// accepted one.
var ErrStale = errors.New("subscriber: stale snapshot")

// Sink receives accepted joint writes. Only the first degree of freedom of
// a joint is addressed.
type Sink interface {
	JointID(name string) (int, bool)
	ApplyJoint(id int, angle, velocity float64)
}

// Observer sees every accepted snapshot after it was applied.
type Observer interface {
	Observe(state telemetry.RobotState)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(state telemetry.RobotState)

func (f ObserverFunc) Observe(state telemetry.RobotState) { f(state) }

// Host is the loop the subscriber is embedded in, usually a simulation.
type Host interface {
	Running() bool
	Step() error
}

type Outcome int

const (
	NoData Outcome = iota
	Accepted
	Stale
	Malformed
	TopicMismatch
)

func (o Outcome) String() string {
	switch o {
	case NoData:
		return "no_data"
	case Accepted:
		return "accepted"
	case Stale:
		return "stale"
	case Malformed:
		return "malformed"
	case TopicMismatch:
		return "topic_mismatch"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Config struct {
	Topic       string
	RecvTimeout time.Duration
}

type Loop struct {
	cfg     Config
	sub     transport.Subscriber
	reg     *registry.Registry
	sink    Sink
	routes  []int
	log     *slog.Logger
	metrics *metrics.LinkMetrics
	obs     []Observer

	lastAccepted uint64
	latest       *telemetry.RobotState
	dropped      uint64
	closed       bool
}

// New wires a subscriber. Registry names are resolved against the sink once
// here; entries the sink does not know are updated in the registry only.
func New(cfg Config, sub transport.Subscriber, reg *registry.Registry, sink Sink, log *slog.Logger, m *metrics.LinkMetrics) (*Loop, error) {
	if err := telemetry.ValidateTopic(cfg.Topic); err != nil {
		return nil, err
	}
	if cfg.RecvTimeout < 0 {
		return nil, fmt.Errorf("subscriber: negative receive timeout %s", cfg.RecvTimeout)
	}
	if log == nil {
		log = slog.Default()
	}

	routes := make([]int, reg.Len())
	for i, name := range reg.Names() {
		routes[i] = -1
		if sink == nil {
			continue
		}
		if id, ok := sink.JointID(name); ok {
			routes[i] = id
		} else {
			log.Warn("registry joint has no sink joint", "joint", name)
		}
	}

	return &Loop{
		cfg:     cfg,
		sub:     sub,
		reg:     reg,
		sink:    sink,
		routes:  routes,
		log:     log,
		metrics: m,
	}, nil
}

func (l *Loop) AddObserver(o Observer) {
	l.obs = append(l.obs, o)
}

// LastAccepted is the timestamp of the newest accepted snapshot, 0 before
// the first.
func (l *Loop) LastAccepted() uint64 { return l.lastAccepted }

// Latest returns the most recent accepted snapshot.
func (l *Loop) Latest() (telemetry.RobotState, bool) {
	if l.latest == nil {
		return telemetry.RobotState{}, false
	}
	return *l.latest, true
}

// Poll receives at most one frame, waiting up to the receive timeout.
// Receive errors are logged and reported as NoData. A closed transport is
// logged once.
func (l *Loop) Poll() Outcome {
	timeout := l.cfg.RecvTimeout
	frame, err := l.sub.Recv(timeout)
	l.countDropped()
	if err != nil {
		switch {
		case errors.Is(err, transport.ErrNoData):
		case errors.Is(err, transport.ErrClosed):
			if !l.closed {
				l.closed = true
				l.log.Warn("transport closed")
			}
		default:
			l.log.Warn("receive failed", "error", err)
		}
		return NoData
	}
	l.metrics.FrameReceived()
	return l.Handle(frame)
}

// countDropped reports frames the transport discarded since the last poll.
func (l *Loop) countDropped() {
	dc, ok := l.sub.(transport.DropCounter)
	if !ok {
		return
	}
	if n := dc.Dropped(); n > l.dropped {
		l.metrics.FramesDropped(n - l.dropped)
		l.dropped = n
	}
}

// Handle runs one received frame through decode, topic, staleness and apply.
func (l *Loop) Handle(frame string) Outcome {
	topic, state, err := telemetry.Decode(frame)
	if err != nil {
		l.metrics.DecodeError()
		l.log.Warn("discarding malformed frame", "error", err)
		return Malformed
	}
	if topic != l.cfg.Topic {
		l.metrics.TopicMismatch()
		l.log.Debug("discarding frame for other topic", "topic", topic, "want", l.cfg.Topic)
		return TopicMismatch
	}
	if err := l.accept(state); err != nil {
		l.metrics.Stale()
		l.log.Debug("discarding stale snapshot", "timestamp", state.Timestamp, "last_accepted", l.lastAccepted)
		return Stale
	}
	return Accepted
}

func (l *Loop) accept(state telemetry.RobotState) error {
	if state.Timestamp <= l.lastAccepted {
		return fmt.Errorf("%w: %d <= %d", ErrStale, state.Timestamp, l.lastAccepted)
	}
	l.lastAccepted = state.Timestamp
	l.latest = &state

	start := time.Now()
	unknown := 0
	for _, r := range state.Joints {
		i, angle, ok := l.reg.Apply(r)
		if !ok {
			unknown++
			continue
		}
		if id := l.routes[i]; id >= 0 {
			l.sink.ApplyJoint(id, angle, r.Velocity)
		}
	}
	l.metrics.Accepted(state.Timestamp, time.Since(start))
	l.metrics.UnknownJoints(unknown)
	for _, o := range l.obs {
		o.Observe(state)
	}
	l.log.Info("snapshot accepted", "timestamp", state.Timestamp, "source", state.SourceID,
		"joints", len(state.Joints), "unknown", unknown)
	return nil
}

// Run polls once and steps the host once per iteration, until ctx is done or
// the host stops running. A host step error ends the loop.
func (l *Loop) Run(ctx context.Context, host Host) error {
	for host.Running() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		l.Poll()
		if err := host.Step(); err != nil {
			return fmt.Errorf("subscriber: host step: %w", err)
		}
	}
	return nil
}
