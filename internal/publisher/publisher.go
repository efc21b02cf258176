package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/san-kum/jointlink/internal/metrics"
	"github.com/san-kum/jointlink/internal/telemetry"
	"github.com/san-kum/jointlink/internal/transport"
)

var ErrBadInterval = errors.New("publisher: interval must be positive")

type Config struct {
	Topic    string
	Interval time.Duration
	// SourceID overrides the source's own identifier when set.
	SourceID    string
	SettleDelay time.Duration
}

// IntervalFromRate converts a rate to an interval. Rates below 1 Hz are
// raised to 1 Hz.
func IntervalFromRate(hz int) time.Duration {
	if hz < 1 {
		hz = 1
	}
	return time.Second / time.Duration(hz)
}

type Loop struct {
	cfg     Config
	pub     transport.Publisher
	src     Source
	log     *slog.Logger
	metrics *metrics.LinkMetrics

	mu   sync.Mutex
	tick uint64
	last time.Time
}

func New(cfg Config, pub transport.Publisher, src Source, log *slog.Logger, m *metrics.LinkMetrics) (*Loop, error) {
	if err := telemetry.ValidateTopic(cfg.Topic); err != nil {
		return nil, err
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrBadInterval, cfg.Interval)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		cfg:     cfg,
		pub:     pub,
		src:     src,
		log:     log,
		metrics: m,
	}, nil
}

// Tick is the timestamp of the last published snapshot.
func (l *Loop) Tick() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tick
}

func (l *Loop) sourceID() string {
	if l.cfg.SourceID != "" {
		return l.cfg.SourceID
	}
	return l.src.ID()
}

// Publish performs one tick synchronously. A snapshot that fails
// RobotState.Validate is counted as a publish error and never sent.
func (l *Loop) Publish(ctx context.Context) error {
	l.mu.Lock()
	l.tick++
	tick := l.tick
	now := time.Now()
	elapsed := l.cfg.Interval
	if !l.last.IsZero() {
		elapsed = now.Sub(l.last)
	}
	l.last = now
	l.mu.Unlock()

	state := telemetry.RobotState{
		Timestamp: tick,
		SourceID:  l.sourceID(),
		Joints:    l.src.Sample(tick, elapsed),
	}
	if err := state.Validate(); err != nil {
		l.metrics.PublishError()
		return fmt.Errorf("publisher: snapshot %d: %w", tick, err)
	}
	frame, err := telemetry.Encode(l.cfg.Topic, state)
	if err != nil {
		l.metrics.PublishError()
		return err
	}
	if err := l.pub.Send(ctx, frame); err != nil {
		l.metrics.PublishError()
		return err
	}
	l.metrics.FramePublished()
	l.log.Debug("published", "topic", l.cfg.Topic, "timestamp", tick, "joints", len(state.Joints))
	return nil
}

// Run waits out the settle delay, then publishes every interval until ctx is
// done or a send fails. Cancellation returns nil; a send failure is returned.
func (l *Loop) Run(ctx context.Context) error {
	if l.cfg.SettleDelay > 0 {
		l.log.Info("waiting for subscribers", "delay", l.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.cfg.SettleDelay):
		}
	}
	l.log.Info("publishing", "topic", l.cfg.Topic, "interval", l.cfg.Interval, "source", l.sourceID())

	timer := time.NewTimer(l.cfg.Interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		if err := l.Publish(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.log.Error("publish failed", "error", err, "timestamp", l.Tick())
			return err
		}
		timer.Reset(l.cfg.Interval)
	}
}
