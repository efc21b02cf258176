package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/jointlink/internal/logging"
	"github.com/san-kum/jointlink/internal/registry"
	"github.com/san-kum/jointlink/internal/sim"
	"github.com/san-kum/jointlink/internal/subscriber"
	"github.com/san-kum/jointlink/internal/transport"
	"github.com/san-kum/jointlink/internal/tui"
)

func runSubscribe(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	cfg := s.cfg

	model, err := loadModel(cfg)
	if err != nil {
		return err
	}
	engine, err := sim.New(model, sim.Config{Dt: cfg.Sim.Dt, Damping: cfg.Sim.Damping, Integrator: cfg.Sim.Integrator})
	if err != nil {
		return err
	}
	reg, err := registry.New(model.Entries(cfg.Model.FilterPrefix))
	if err != nil {
		return err
	}

	sub, err := transport.OpenSubscriber(s.ctx, cfg.Transport, cfg.Topic, s.log)
	if err != nil {
		return err
	}
	defer sub.Close()

	log := s.log
	if useTUI {
		log = logging.Discard()
	}
	loop, err := subscriber.New(subscriber.Config{Topic: cfg.Topic, RecvTimeout: cfg.Subscribe.RecvTimeout},
		sub, reg, engine, log, s.metrics)
	if err != nil {
		return err
	}
	s.log.Info("subscriber ready", "topic", cfg.Topic, "model", model.Name, "joints", reg.Len())

	if useTUI {
		final, err := tea.NewProgram(tui.NewMonitorModel(loop, engine), tea.WithAltScreen(), tea.WithContext(s.ctx)).Run()
		if err != nil && s.ctx.Err() == nil {
			return err
		}
		if mm, ok := final.(tui.MonitorModel); ok && mm.Err() != nil {
			return fmt.Errorf("simulation stopped: %w", mm.Err())
		}
		return nil
	}

	if err := loop.Run(s.ctx, sim.NewPaced(engine)); err != nil {
		return err
	}
	s.log.Info("subscriber stopped", "last_accepted", loop.LastAccepted(), "sim_time", engine.Time())
	return nil
}
