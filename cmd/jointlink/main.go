package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/jointlink/internal/config"
	"github.com/san-kum/jointlink/internal/logging"
	"github.com/san-kum/jointlink/internal/metrics"
	"github.com/san-kum/jointlink/internal/models"
)

var (
	configFile   string
	logLevel     string
	logFormat    string
	metricsAddr  string
	kind         string
	topic        string
	sourceID     string
	bind         string
	connect      string
	natsURL      string
	interval     time.Duration
	rateHz       int
	settle       time.Duration
	trajectory   string
	modelPath    string
	filters      []string
	recvTimeout  time.Duration
	useTUI       bool
	demoFor      time.Duration
	dataDir      string
	previewJoint string
	svgOut       string
)

// main registers the jointlink commands and runs the selected one. Any error
// is printed as "jointlink <cmd>: <err>" and exits with status 1.
func main() {
	rootCmd := &cobra.Command{
		Use:           "jointlink",
		Short:         "robot joint telemetry over pub/sub",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", "text", "text or json")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	pf.StringVar(&kind, "transport", "zmq", "zmq or nats")
	pf.StringVar(&topic, "topic", config.DefaultTopic, "topic")
	pf.StringVar(&natsURL, "nats-url", "nats://localhost:4222", "nats server url")
	pf.StringVar(&dataDir, "data", ".jointlink", "saved poses directory")

	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "publish a simulated trajectory",
		Args:  cobra.NoArgs,
		RunE:  runPublish,
	}
	publishCmd.Flags().StringVarP(&bind, "bind", "b", "tcp://*:5555", "bind address")
	publishCmd.Flags().DurationVarP(&interval, "interval", "i", config.DefaultInterval, "publish interval")
	publishCmd.Flags().DurationVar(&settle, "settle", config.DefaultSettleDelay, "wait before the first publish")
	publishCmd.Flags().StringVar(&trajectory, "trajectory", config.DefaultTrajectory, "arm or ball")
	publishCmd.Flags().StringVar(&sourceID, "source-id", "", "robot id override")

	controlCmd := &cobra.Command{
		Use:   "control",
		Short: "manual joint control panel",
		Args:  cobra.NoArgs,
		RunE:  runControl,
	}
	controlCmd.Flags().StringVarP(&bind, "bind", "b", "tcp://*:5555", "bind address")
	controlCmd.Flags().IntVar(&rateHz, "rate", config.DefaultRateHz, "publish rate in Hz")
	controlCmd.Flags().StringVar(&sourceID, "source-id", "", "robot id (default "+defaultControlID+")")
	addModelFlags(controlCmd, "hand")

	scriptCmd := &cobra.Command{
		Use:   "script [file]",
		Short: "play a yaml pose scenario",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}
	scriptCmd.Flags().StringVarP(&bind, "bind", "b", "tcp://*:5555", "bind address")
	scriptCmd.Flags().IntVar(&rateHz, "rate", config.DefaultRateHz, "publish rate in Hz while holding a pose")
	scriptCmd.Flags().DurationVar(&settle, "settle", config.DefaultSettleDelay, "wait before the first publish")
	scriptCmd.Flags().StringVar(&sourceID, "source-id", "", "robot id (default "+defaultControlID+")")
	scriptCmd.Flags().StringVar(&previewJoint, "preview", "", "plot this joint over the scenario instead of publishing")
	scriptCmd.Flags().StringVar(&svgOut, "svg", "", "with --preview, write the plot as svg to this file")
	addModelFlags(scriptCmd, "hand")

	subscribeCmd := &cobra.Command{
		Use:   "subscribe",
		Short: "receive snapshots and drive the simulation",
		Args:  cobra.NoArgs,
		RunE:  runSubscribe,
	}
	subscribeCmd.Flags().StringVarP(&connect, "connect", "c", "tcp://localhost:5555", "connect address")
	subscribeCmd.Flags().DurationVar(&recvTimeout, "recv-timeout", config.DefaultRecvTimeout, "receive timeout per poll")
	subscribeCmd.Flags().BoolVar(&useTUI, "tui", false, "show the live monitor")
	addModelFlags(subscribeCmd, config.DefaultModel)

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "run publisher and subscriber in-process over a loopback bus",
		Args:  cobra.NoArgs,
		RunE:  runDemo,
	}
	demoCmd.Flags().DurationVar(&demoFor, "for", 3*time.Second, "how long to run")
	demoCmd.Flags().DurationVarP(&interval, "interval", "i", config.DefaultInterval, "publish interval")
	demoCmd.Flags().StringVar(&trajectory, "trajectory", config.DefaultTrajectory, "arm or ball")

	modelsCmd := &cobra.Command{
		Use:   "models [name]",
		Short: "list built-in joint models, or the joints of one",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listModels,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list hand pose presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	posesCmd := &cobra.Command{
		Use:   "poses",
		Short: "list poses saved from the control panel",
		Args:  cobra.NoArgs,
		RunE:  listPoses,
	}
	posesCmd.AddCommand(&cobra.Command{
		Use:   "rm [name]",
		Short: "delete a saved pose",
		Args:  cobra.ExactArgs(1),
		RunE:  deletePose,
	})

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  printConfig,
	}

	rootCmd.AddCommand(publishCmd, controlCmd, scriptCmd, subscribeCmd, demoCmd, modelsCmd, presetsCmd, posesCmd, configCmd)

	if cmd, err := rootCmd.ExecuteC(); err != nil {
		fmt.Fprintf(os.Stderr, "jointlink %s: %v\n", cmd.Name(), err)
		os.Exit(1)
	}
}

func addModelFlags(cmd *cobra.Command, def string) {
	cmd.Flags().StringP("model", "m", def, "built-in model: "+fmt.Sprint(models.List()))
	cmd.Flags().StringVar(&modelPath, "model-path", "", "model yaml file, overrides --model")
	cmd.Flags().StringSliceVar(&filters, "filter-prefix", nil, "only joints with these name prefixes (repeatable or comma-separated)")
}

// loadConfig reads the config file, if any, then applies flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if changed("transport") {
		cfg.Transport.Kind = kind
	}
	if changed("topic") {
		cfg.Topic = topic
	}
	if changed("nats-url") {
		cfg.Transport.NATSURL = natsURL
	}
	if changed("source-id") {
		cfg.SourceID = sourceID
	}
	if changed("bind") {
		cfg.Transport.Bind = bind
	}
	if changed("connect") {
		cfg.Transport.Connect = connect
	}
	if changed("interval") {
		cfg.Publish.Interval = interval
	}
	if changed("rate") {
		cfg.Publish.RateHz = rateHz
	}
	if changed("settle") {
		cfg.Publish.SettleDelay = settle
	}
	if changed("trajectory") {
		cfg.Publish.Trajectory = trajectory
	}
	if changed("recv-timeout") {
		cfg.Subscribe.RecvTimeout = recvTimeout
	}
	// each command registers its own model flag with its own default
	if f := cmd.Flags().Lookup("model"); f != nil && (f.Changed || configFile == "") {
		cfg.Model.Name = f.Value.String()
	}
	if changed("model-path") {
		cfg.Model.Path = modelPath
	}
	if changed("filter-prefix") {
		cfg.Model.FilterPrefix = filters
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is what every long-running command needs: a logger, metrics and a
// context cancelled on SIGINT/SIGTERM.
type session struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.LinkMetrics
	ctx     context.Context
	stop    context.CancelFunc
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	s := &session{cfg: cfg, log: log, metrics: metrics.New(), ctx: ctx, stop: stop}

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := s.metrics.Serve(ctx, cfg.Metrics.Addr, log); err != nil {
				log.Error("metrics endpoint failed", "error", err)
			}
		}()
	}
	return s, nil
}

func (s *session) Close() {
	s.stop()
}

// loadModel resolves the configured model: a yaml path wins over a name.
func loadModel(cfg *config.Config) (*models.Model, error) {
	if cfg.Model.Path != "" {
		return models.Load(cfg.Model.Path)
	}
	return models.Get(cfg.Model.Name)
}
