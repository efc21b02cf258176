package main

import (
	"fmt"
	"os"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/jointlink/internal/automation"
	"github.com/san-kum/jointlink/internal/export"
	"github.com/san-kum/jointlink/internal/publisher"
	"github.com/san-kum/jointlink/internal/storage"
	"github.com/san-kum/jointlink/internal/transport"
)

func runScript(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if previewJoint != "" {
		return previewScript(cmd, scenario)
	}

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
	loop, err := publisher.New(publisher.Config{Topic: cfg.Topic, Interval: period},
		pub, publisher.NewRegistrySource(reg, controlID(cfg)), s.log, s.metrics)
	if err != nil {
		return err
	}

	if d := cfg.Publish.SettleDelay; d > 0 {
		select {
		case <-s.ctx.Done():
			return nil
		case <-time.After(d):
		}
	}

	runner := &automation.Runner{
		Registry: reg,
		Pub:      loop,
		Presets:  presetLookup(storage.New(dataDir)),
		Interval: period,
		Log:      s.log,
	}
	s.log.Info("playing scenario", "scenario", scenario.Name, "model", modelName, "steps", len(scenario.Steps))
	n, err := runner.RunScenario(s.ctx, scenario)
	if err != nil && s.ctx.Err() == nil {
		return err
	}
	s.log.Info("scenario finished", "scenario", scenario.Name, "published", n)
	return nil
}

// previewScript plots one joint over the frames the scenario would publish,
// without opening a transport.
func previewScript(cmd *cobra.Command, scenario *automation.Scenario) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, _, err := handRegistry(cfg)
	if err != nil {
		return err
	}
	runner := &automation.Runner{
		Registry: reg,
		Presets:  presetLookup(storage.New(dataDir)),
		Interval: publisher.IntervalFromRate(cfg.Publish.RateHz),
	}
	frames, values, err := runner.Preview(scenario, previewJoint)
	if err != nil {
		return err
	}

	if svgOut != "" {
		f, err := os.Create(svgOut)
		if err != nil {
			return err
		}
		tr := export.Trace{Joint: previewJoint, Times: frames, Angles: values}
		if err := export.TraceToSVG(f, tr, export.DefaultOptions()); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", svgOut)
		return nil
	}

	if len(values) == 1 {
		values = append(values, values[0])
	}
	graph := asciigraph.Plot(values,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("%s angle (rad) over %d frames", previewJoint, len(frames))))
	fmt.Fprintln(cmd.OutOrStdout(), graph)
	return nil
}
