package subscriber_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/jointlink/internal/logging"
	"github.com/san-kum/jointlink/internal/metrics"
	"github.com/san-kum/jointlink/internal/registry"
	"github.com/san-kum/jointlink/internal/subscriber"
	"github.com/san-kum/jointlink/internal/telemetry"
	"github.com/san-kum/jointlink/internal/transport"
)

type write struct {
	id       int
	angle    float64
	velocity float64
}

// recordingSink knows a fixed list of joints and records every write.
type recordingSink struct {
	ids    map[string]int
	writes []write
}

func newRecordingSink(names ...string) *recordingSink {
	s := &recordingSink{ids: make(map[string]int)}
	for i, n := range names {
		s.ids[n] = i
	}
	return s
}

func (s *recordingSink) JointID(name string) (int, bool) {
	id, ok := s.ids[name]
	return id, ok
}

func (s *recordingSink) ApplyJoint(id int, angle, velocity float64) {
	s.writes = append(s.writes, write{id, angle, velocity})
}

type countingHost struct {
	limit int
	steps int
	err   error
}

func (h *countingHost) Running() bool { return h.steps < h.limit }

func (h *countingHost) Step() error {
	h.steps++
	return h.err
}

func frame(topic string, ts uint64, joints ...telemetry.JointReading) string {
	f, err := telemetry.Encode(topic, telemetry.RobotState{Timestamp: ts, SourceID: "r1", Joints: joints})
	Expect(err).NotTo(HaveOccurred())
	return f
}

func reading(name string, angle float64) telemetry.JointReading {
	return telemetry.JointReading{Timestamp: 1, Name: name, Angle: angle}
}

var _ = Describe("Loop", func() {
	var (
		bus  *transport.Loopback
		pub  transport.Publisher
		reg  *registry.Registry
		sink *recordingSink
		loop *subscriber.Loop
		m    *metrics.LinkMetrics
	)

	send := func(f string) {
		Expect(pub.Send(context.Background(), f)).To(Succeed())
	}

	BeforeEach(func() {
		bus = transport.NewLoopback()
		DeferCleanup(bus.Close)
		pub = bus.Publisher()

		var err error
		reg, err = registry.New([]registry.Entry{
			{Name: "elbow", Min: -1.57, Max: 1.57},
			{Name: "wrist_1", Min: -1, Max: 1},
		})
		Expect(err).NotTo(HaveOccurred())
		sink = newRecordingSink("elbow", "wrist_1")
		m = metrics.New()

		sub := bus.Subscribe("robot_joints", 64)
		loop, err = subscriber.New(subscriber.Config{Topic: "robot_joints", RecvTimeout: time.Millisecond},
			sub, reg, sink, logging.Discard(), m)
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports NoData when nothing arrives", func() {
		Expect(loop.Poll()).To(Equal(subscriber.NoData))
		_, ok := loop.Latest()
		Expect(ok).To(BeFalse())
	})

	It("applies the elbow snapshot end to end", func() {
		send(`robot_joints {"timestamp":1,"source_id":"r1","joints":[{"timestamp":1,"joint_name":"elbow","angle_rad":0.5,"velocity":0.0,"torque":0.0}]}`)

		Expect(loop.Poll()).To(Equal(subscriber.Accepted))
		e, ok := reg.Get("elbow")
		Expect(ok).To(BeTrue())
		Expect(e.Value).To(Equal(0.5))
		Expect(sink.writes).To(ConsistOf(write{id: 0, angle: 0.5, velocity: 0}))

		latest, ok := loop.Latest()
		Expect(ok).To(BeTrue())
		Expect(latest.SourceID).To(Equal("r1"))
		Expect(loop.LastAccepted()).To(Equal(uint64(1)))
	})

	It("accepts only strictly increasing timestamps", func() {
		var outcomes []subscriber.Outcome
		for _, ts := range []uint64{5, 3, 7, 7, 10} {
			send(frame("robot_joints", ts, reading("elbow", float64(ts)/10)))
			outcomes = append(outcomes, loop.Poll())
		}

		Expect(outcomes).To(Equal([]subscriber.Outcome{
			subscriber.Accepted, subscriber.Stale, subscriber.Accepted, subscriber.Stale, subscriber.Accepted,
		}))
		Expect(loop.LastAccepted()).To(Equal(uint64(10)))
		Expect(sink.writes).To(HaveLen(3))
		Expect(sink.writes[2].angle).To(BeNumerically("~", 1.0, 1e-12))
	})

	It("rejects a zero timestamp before anything was accepted", func() {
		send(frame("robot_joints", 0, reading("elbow", 0.2)))
		Expect(loop.Poll()).To(Equal(subscriber.Stale))
	})

	It("discards frames whose topic only shares a prefix", func() {
		wide := bus.Subscribe("robot", 8)
		wl, err := subscriber.New(subscriber.Config{Topic: "robot_joints"}, wide, reg, sink, logging.Discard(), nil)
		Expect(err).NotTo(HaveOccurred())

		send(frame("robot_joints_debug", 1, reading("elbow", 0.3)))
		Expect(wl.Poll()).To(Equal(subscriber.TopicMismatch))
		Expect(sink.writes).To(BeEmpty())
	})

	It("ignores other topics entirely", func() {
		Expect(loop.Handle(frame("other_topic", 1, reading("elbow", 0.3)))).To(Equal(subscriber.TopicMismatch))
		Expect(loop.LastAccepted()).To(BeZero())
	})

	It("skips unknown joints without failing the snapshot", func() {
		send(frame("robot_joints", 1,
			reading("nonexistent_joint", 0.9),
			reading("wrist_1", 0.4),
		))

		Expect(loop.Poll()).To(Equal(subscriber.Accepted))
		Expect(sink.writes).To(ConsistOf(write{id: 1, angle: 0.4}))
	})

	It("clamps angles into the joint range", func() {
		send(frame("robot_joints", 1, reading("wrist_1", 5), reading("elbow", -5)))

		Expect(loop.Poll()).To(Equal(subscriber.Accepted))
		w, _ := reg.Get("wrist_1")
		e, _ := reg.Get("elbow")
		Expect(w.Value).To(Equal(1.0))
		Expect(e.Value).To(Equal(-1.57))
	})

	DescribeTable("malformed frames are discarded",
		func(raw string) {
			Expect(loop.Handle(raw)).To(Equal(subscriber.Malformed))
			Expect(loop.LastAccepted()).To(BeZero())
		},
		Entry("no separator", "robot_joints"),
		Entry("invalid json", "robot_joints {not json"),
		Entry("wrong type", `robot_joints {"timestamp":"one"}`),
		Entry("empty joint name", `robot_joints {"timestamp":1,"joints":[{"joint_name":""}]}`),
	)

	It("does not move lastAccepted on a malformed frame", func() {
		send(frame("robot_joints", 4, reading("elbow", 0.1)))
		Expect(loop.Poll()).To(Equal(subscriber.Accepted))
		send("robot_joints {broken")
		Expect(loop.Poll()).To(Equal(subscriber.Malformed))
		send(frame("robot_joints", 5, reading("elbow", 0.2)))
		Expect(loop.Poll()).To(Equal(subscriber.Accepted))
	})

	It("forwards only to joints the sink resolves", func() {
		partial := newRecordingSink("elbow")
		sub := bus.Subscribe("robot_joints", 8)
		pl, err := subscriber.New(subscriber.Config{Topic: "robot_joints"}, sub, reg, partial, logging.Discard(), nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(pl.Handle(frame("robot_joints", 1, reading("wrist_1", 0.4)))).To(Equal(subscriber.Accepted))
		Expect(partial.writes).To(BeEmpty())
		w, _ := reg.Get("wrist_1")
		Expect(w.Value).To(Equal(0.4))
	})

	Describe("Run", func() {
		It("polls and steps until the host stops", func() {
			send(frame("robot_joints", 1, reading("elbow", 0.5)))
			send(frame("robot_joints", 2, reading("elbow", 0.6)))

			host := &countingHost{limit: 3}
			Expect(loop.Run(context.Background(), host)).To(Succeed())
			Expect(host.steps).To(Equal(3))
			Expect(loop.LastAccepted()).To(Equal(uint64(2)))
		})

		It("returns when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			host := &countingHost{limit: 1000}
			Expect(loop.Run(ctx, host)).To(Succeed())
			Expect(host.steps).To(BeZero())
		})

		It("stops on a host step error", func() {
			boom := errors.New("diverged")
			host := &countingHost{limit: 10, err: boom}
			err := loop.Run(context.Background(), host)
			Expect(err).To(MatchError(boom))
			Expect(host.steps).To(Equal(1))
		})
	})

	It("survives a closed transport as NoData", func() {
		Expect(bus.Close()).To(Succeed())
		Expect(loop.Poll()).To(Equal(subscriber.NoData))
	})

	It("logs a closed transport once", func() {
		var buf bytes.Buffer
		log, err := logging.New("debug", "text", &buf)
		Expect(err).NotTo(HaveOccurred())
		cl, err := subscriber.New(subscriber.Config{Topic: "robot_joints"}, bus.Subscribe("robot_joints", 4), reg, nil, log, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(bus.Close()).To(Succeed())
		for i := 0; i < 50; i++ {
			Expect(cl.Poll()).To(Equal(subscriber.NoData))
		}
		Expect(strings.Count(buf.String(), "transport closed")).To(Equal(1))
		Expect(buf.String()).NotTo(ContainSubstring("receive failed"))
	})

	It("counts frames the transport dropped", func() {
		small := bus.Subscribe("robot_joints", 1)
		sl, err := subscriber.New(subscriber.Config{Topic: "robot_joints"}, small, reg, sink, logging.Discard(), m)
		Expect(err).NotTo(HaveOccurred())

		for ts := uint64(1); ts <= 3; ts++ {
			send(frame("robot_joints", ts, reading("elbow", 0.1)))
		}
		Expect(sl.Poll()).To(Equal(subscriber.Accepted))
		Expect(sl.LastAccepted()).To(Equal(uint64(3)))
		Expect(sl.Poll()).To(Equal(subscriber.NoData))

		expected := `
# HELP jointlink_frames_dropped_total Frames the subscriber transport discarded before they were read.
# TYPE jointlink_frames_dropped_total counter
jointlink_frames_dropped_total 2
`
		Expect(testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "jointlink_frames_dropped_total")).To(Succeed())
	})

	It("names its outcomes", func() {
		names := make([]string, 0, 5)
		for o := subscriber.NoData; o <= subscriber.TopicMismatch; o++ {
			names = append(names, o.String())
		}
		Expect(names).To(Equal([]string{"no_data", "accepted", "stale", "malformed", "topic_mismatch"}))
		Expect(fmt.Sprint(subscriber.Outcome(42))).To(Equal("outcome(42)"))
	})
})

var _ = Describe("New", func() {
	It("rejects topics with whitespace", func() {
		reg, err := registry.New(nil)
		Expect(err).NotTo(HaveOccurred())
		bus := transport.NewLoopback()
		defer bus.Close()

		_, err = subscriber.New(subscriber.Config{Topic: "robot joints"}, bus.Subscribe("robot", 1), reg, nil, nil, nil)
		Expect(err).To(MatchError(telemetry.ErrInvalidTopic))
	})
})

type collector struct{ seen []uint64 }

func (c *collector) Observe(state telemetry.RobotState) { c.seen = append(c.seen, state.Timestamp) }

var _ = Describe("Observers", func() {
	It("see accepted snapshots only", func() {
		reg, err := registry.New([]registry.Entry{{Name: "elbow", Min: -1.57, Max: 1.57}})
		Expect(err).NotTo(HaveOccurred())
		bus := transport.NewLoopback()
		DeferCleanup(bus.Close)

		loop, err := subscriber.New(subscriber.Config{Topic: "robot_joints"}, bus.Subscribe("robot_joints", 4),
			reg, nil, logging.Discard(), nil)
		Expect(err).NotTo(HaveOccurred())
		c := &collector{}
		loop.AddObserver(c)

		for _, ts := range []uint64{2, 1, 4} {
			loop.Handle(frame("robot_joints", ts, reading("elbow", 0.1)))
		}
		loop.Handle("robot_joints {bad")
		Expect(c.seen).To(Equal([]uint64{2, 4}))
	})

	It("accepts plain functions", func() {
		reg, err := registry.New([]registry.Entry{{Name: "elbow", Min: -1.57, Max: 1.57}})
		Expect(err).NotTo(HaveOccurred())
		bus := transport.NewLoopback()
		DeferCleanup(bus.Close)

		loop, err := subscriber.New(subscriber.Config{Topic: "robot_joints"}, bus.Subscribe("robot_joints", 4),
			reg, nil, logging.Discard(), nil)
		Expect(err).NotTo(HaveOccurred())
		var angles []float64
		loop.AddObserver(subscriber.ObserverFunc(func(st telemetry.RobotState) {
			angles = append(angles, st.Joints[0].Angle)
		}))

		loop.Handle(frame("robot_joints", 1, reading("elbow", 0.25)))
		Expect(angles).To(Equal([]float64{0.25}))
	})
})
