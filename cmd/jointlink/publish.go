package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/jointlink/internal/config"
	"github.com/san-kum/jointlink/internal/logging"
	"github.com/san-kum/jointlink/internal/publisher"
	"github.com/san-kum/jointlink/internal/registry"
	"github.com/san-kum/jointlink/internal/storage"
	"github.com/san-kum/jointlink/internal/transport"
	"github.com/san-kum/jointlink/internal/tui"
)

const defaultControlID = "pro_hand"

func runPublish(cmd *cobra.Command, args []string) error {
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
	pub, err := transport.OpenPublisher(s.ctx, cfg.Transport, cfg.Topic, s.log)
	if err != nil {
		return err
	}
	defer pub.Close()

	loop, err := publisher.New(publisher.Config{
		Topic:       cfg.Topic,
		Interval:    cfg.Publish.Interval,
		SourceID:    cfg.SourceID,
		SettleDelay: cfg.Publish.SettleDelay,
	}, pub, src, s.log, s.metrics)
	if err != nil {
		return err
	}
	if err := loop.Run(s.ctx); err != nil {
		return err
	}
	s.log.Info("publisher stopped", "published", loop.Tick())
	return nil
}

// handRegistry loads the configured model into a registry of controllable
// joints.
func handRegistry(cfg *config.Config) (*registry.Registry, string, error) {
	model, err := loadModel(cfg)
	if err != nil {
		return nil, "", err
	}
	entries := model.Entries(cfg.Model.FilterPrefix)
	if len(entries) == 0 {
		return nil, "", fmt.Errorf("no joints in model %s match %v", model.Name, cfg.Model.FilterPrefix)
	}
	reg, err := registry.New(entries)
	if err != nil {
		return nil, "", err
	}
	return reg, model.Name, nil
}

func controlID(cfg *config.Config) string {
	if cfg.SourceID == "" {
		return defaultControlID
	}
	return cfg.SourceID
}

func runControl(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	cfg := s.cfg

	reg, modelName, err := handRegistry(cfg)
	if err != nil {
		return err
	}

	pub, err := transport.OpenPublisher(s.ctx, cfg.Transport, cfg.Topic, s.log)
	if err != nil {
		return err
	}
	defer pub.Close()

	period := publisher.IntervalFromRate(cfg.Publish.RateHz)
	// the panel owns the terminal from here on
	loop, err := publisher.New(publisher.Config{Topic: cfg.Topic, Interval: period},
		pub, publisher.NewRegistrySource(reg, controlID(cfg)), logging.Discard(), s.metrics)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	saved, err := st.Presets(modelName)
	if err != nil {
		s.log.Warn("saved poses unavailable", "dir", dataDir, "error", err)
	}
	presets := append(append([]registry.Preset(nil), config.Presets...), saved...)

	s.log.Info("control panel starting", "model", modelName, "joints", reg.Len(), "rate", period, "saved_poses", len(saved))
	m := tui.NewControlModel(s.ctx, reg, loop, presets, period).
		WithPoseSaver(poseSaver(st, modelName))
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(s.ctx)).Run()
	if err != nil && s.ctx.Err() == nil {
		return err
	}
	if cm, ok := final.(tui.ControlModel); ok && cm.Err() != nil {
		return cm.Err()
	}
	return nil
}
