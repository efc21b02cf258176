package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/jointlink/internal/integrators"
	"github.com/san-kum/jointlink/internal/telemetry"
	"github.com/san-kum/jointlink/internal/transport"
)

const (
	DefaultTopic       = "robot_joints"
	DefaultInterval    = 100 * time.Millisecond
	DefaultRateHz      = 50
	DefaultSettleDelay = 500 * time.Millisecond
	DefaultRecvTimeout = 10 * time.Millisecond
	DefaultTrajectory  = "arm"
	DefaultModel       = "arm6"
)

type Config struct {
	Transport transport.Config `yaml:"transport"`
	Topic     string           `yaml:"topic"`
	SourceID  string           `yaml:"source_id"`
	Publish   PublishConfig    `yaml:"publish"`
	Subscribe SubscribeConfig  `yaml:"subscribe"`
	Model     ModelConfig      `yaml:"model"`
	Sim       SimConfig        `yaml:"sim"`
	Log       LogConfig        `yaml:"log"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

type PublishConfig struct {
	// Interval paces the headless trajectory publisher.
	Interval time.Duration `yaml:"interval"`
	// RateHz paces the manual control panel.
	RateHz      int           `yaml:"rate_hz"`
	SettleDelay time.Duration `yaml:"settle_delay"`
	Trajectory  string        `yaml:"trajectory"`
}

type SubscribeConfig struct {
	RecvTimeout time.Duration `yaml:"recv_timeout"`
}

type ModelConfig struct {
	Name         string   `yaml:"name"`
	Path         string   `yaml:"path"`
	FilterPrefix []string `yaml:"filter_prefix"`
}

type SimConfig struct {
	Dt         float64 `yaml:"dt"`
	Damping    float64 `yaml:"damping"`
	Integrator string  `yaml:"integrator"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		Transport: transport.DefaultConfig(),
		Topic:     DefaultTopic,
		Publish: PublishConfig{
			Interval:    DefaultInterval,
			RateHz:      DefaultRateHz,
			SettleDelay: DefaultSettleDelay,
			Trajectory:  DefaultTrajectory,
		},
		Subscribe: SubscribeConfig{RecvTimeout: DefaultRecvTimeout},
		Model:     ModelConfig{Name: DefaultModel},
		Sim: SimConfig{
			Dt:         0.002,
			Damping:    2.0,
			Integrator: "rk4",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults, so missing keys keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := telemetry.ValidateTopic(c.Topic); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Publish.Interval <= 0 {
		return fmt.Errorf("config: publish.interval must be positive, got %s", c.Publish.Interval)
	}
	if c.Publish.SettleDelay < 0 {
		return fmt.Errorf("config: publish.settle_delay must not be negative")
	}
	switch c.Publish.Trajectory {
	case "arm", "ball":
	default:
		return fmt.Errorf("config: unknown trajectory %q (want arm or ball)", c.Publish.Trajectory)
	}
	if c.Subscribe.RecvTimeout < 0 {
		return fmt.Errorf("config: subscribe.recv_timeout must not be negative")
	}
	if c.Model.Name == "" && c.Model.Path == "" {
		return fmt.Errorf("config: model needs a name or a path")
	}
	if c.Sim.Dt <= 0 {
		return fmt.Errorf("config: sim.dt must be positive, got %g", c.Sim.Dt)
	}
	if c.Sim.Damping < 0 {
		return fmt.Errorf("config: sim.damping must not be negative")
	}
	if _, err := integrators.New(c.Sim.Integrator); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
