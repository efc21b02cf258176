// Package metrics exposes link counters on a private Prometheus registry.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jointlink"

// LinkMetrics counts what the publisher and subscriber loops do. A nil
// *LinkMetrics is valid and records nothing.
type LinkMetrics struct {
	registry *prometheus.Registry

	framesPublished   prometheus.Counter
	publishErrors     prometheus.Counter
	framesReceived    prometheus.Counter
	framesDropped     prometheus.Counter
	snapshotsAccepted prometheus.Counter
	snapshotsStale    prometheus.Counter
	decodeErrors      prometheus.Counter
	topicMismatch     prometheus.Counter
	unknownJoints     prometheus.Counter
	lastAccepted      prometheus.Gauge
	applySeconds      prometheus.Histogram
}

func New() *LinkMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}
	m := &LinkMetrics{
		registry:          prometheus.NewRegistry(),
		framesPublished:   counter("frames_published_total", "Frames sent by the publisher loop."),
		publishErrors:     counter("publish_errors_total", "Snapshots that could not be encoded or sent."),
		framesReceived:    counter("frames_received_total", "Frames taken off the subscriber socket."),
		framesDropped:     counter("frames_dropped_total", "Frames the subscriber transport discarded before they were read."),
		snapshotsAccepted: counter("snapshots_accepted_total", "Snapshots applied to the sink."),
		snapshotsStale:    counter("snapshots_stale_total", "Snapshots dropped for a non-increasing timestamp."),
		decodeErrors:      counter("decode_errors_total", "Frames that failed to decode."),
		topicMismatch:     counter("topic_mismatch_total", "Frames whose topic was not an exact match."),
		unknownJoints:     counter("unknown_joints_total", "Joint readings with no matching registry entry."),
		lastAccepted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_accepted_timestamp",
			Help:      "Timestamp of the newest accepted snapshot.",
		}),
		applySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_seconds",
			Help:      "Time spent writing one snapshot into the sink.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
	m.registry.MustRegister(
		m.framesPublished, m.publishErrors, m.framesReceived, m.framesDropped,
		m.snapshotsAccepted, m.snapshotsStale, m.decodeErrors,
		m.topicMismatch, m.unknownJoints, m.lastAccepted, m.applySeconds,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *LinkMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *LinkMetrics) FramePublished() {
	if m != nil {
		m.framesPublished.Inc()
	}
}

func (m *LinkMetrics) PublishError() {
	if m != nil {
		m.publishErrors.Inc()
	}
}

func (m *LinkMetrics) FrameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *LinkMetrics) FramesDropped(n uint64) {
	if m != nil && n > 0 {
		m.framesDropped.Add(float64(n))
	}
}

func (m *LinkMetrics) Accepted(timestamp uint64, apply time.Duration) {
	if m == nil {
		return
	}
	m.snapshotsAccepted.Inc()
	m.lastAccepted.Set(float64(timestamp))
	m.applySeconds.Observe(apply.Seconds())
}

func (m *LinkMetrics) Stale() {
	if m != nil {
		m.snapshotsStale.Inc()
	}
}

func (m *LinkMetrics) DecodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *LinkMetrics) TopicMismatch() {
	if m != nil {
		m.topicMismatch.Inc()
	}
}

func (m *LinkMetrics) UnknownJoints(n int) {
	if m != nil && n > 0 {
		m.unknownJoints.Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *LinkMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve exposes /metrics and /health on addr until ctx is done. An empty
// addr disables the endpoint and returns immediately.
func (m *LinkMetrics) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	if m == nil || addr == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics endpoint listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
