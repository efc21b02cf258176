package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/jointlink/internal/models"
	"github.com/san-kum/jointlink/internal/publisher"
	"github.com/san-kum/jointlink/internal/registry"
	"github.com/san-kum/jointlink/internal/sim"
	"github.com/san-kum/jointlink/internal/subscriber"
	"github.com/san-kum/jointlink/internal/telemetry"
	"github.com/san-kum/jointlink/internal/transport"
)

// runDemo wires a publisher and a headless subscriber through one in-process
// loopback bus, so the link can be tried without any network setup.
func runDemo(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	cfg := s.cfg

	src, ok := publisher.NewTrajectory(cfg.Publish.Trajectory)
	if !ok {
		return fmt.Errorf("unknown trajectory: %s", cfg.Publish.Trajectory)
	}
	model := models.NewArm6()
	if cfg.Publish.Trajectory == "ball" {
		model = models.NewBall()
	}

	bus := transport.NewLoopback()
	defer bus.Close()
	tcfg := cfg.Transport
	tcfg.Kind = transport.KindLoopback
	tcfg.Bus = bus

	ctx, cancel := context.WithTimeout(s.ctx, demoFor)
	defer cancel()

	sub, err := transport.OpenSubscriber(ctx, tcfg, cfg.Topic, s.log)
	if err != nil {
		return err
	}
	defer sub.Close()
	pub, err := transport.OpenPublisher(ctx, tcfg, cfg.Topic, s.log)
	if err != nil {
		return err
	}
	defer pub.Close()

	engine, err := sim.New(model, sim.Config{Dt: cfg.Sim.Dt, Damping: cfg.Sim.Damping, Integrator: cfg.Sim.Integrator})
	if err != nil {
		return err
	}
	reg, err := registry.New(model.Entries(nil))
	if err != nil {
		return err
	}
	sloop, err := subscriber.New(subscriber.Config{Topic: cfg.Topic, RecvTimeout: cfg.Subscribe.RecvTimeout},
		sub, reg, engine, s.log, s.metrics)
	if err != nil {
		return err
	}
	ploop, err := publisher.New(publisher.Config{Topic: cfg.Topic, Interval: cfg.Publish.Interval, SourceID: cfg.SourceID},
		pub, src, s.log, s.metrics)
	if err != nil {
		return err
	}

	var accepted, readings int
	sloop.AddObserver(subscriber.ObserverFunc(func(st telemetry.RobotState) {
		accepted++
		readings += len(st.Joints)
	}))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ploop.Run(gctx) })
	g.Go(func() error { return sloop.Run(gctx, sim.NewPaced(engine)) })
	if err := g.Wait(); err != nil {
		return err
	}

	latest, _ := sloop.Latest()
	fmt.Fprintf(cmd.OutOrStdout(), "published %d, accepted %d (%d readings), last accepted %d from %q in %s, sim time %.2fs\n",
		ploop.Tick(), accepted, readings, sloop.LastAccepted(), latest.SourceID, time.Since(start).Round(time.Millisecond), engine.Time())
	return nil
}
