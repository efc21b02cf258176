package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/san-kum/jointlink/internal/registry"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted pose sequence played into a joint registry.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Repeat      int            `yaml:"repeat"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep sets a pose and holds it. Zero runs first, then Preset, then
// Joints. Joint keys use the same suffix matching as presets.
type ScenarioStep struct {
	Preset string             `yaml:"preset"`
	Zero   bool               `yaml:"zero"`
	Joints map[string]float64 `yaml:"joints"`
	Hold   time.Duration      `yaml:"hold"`
}

// Publisher emits the registry's current pose.
type Publisher interface {
	Publish(ctx context.Context) error
}

// PresetLookup resolves a preset by name.
type PresetLookup func(name string) (registry.Preset, error)

var ErrEmptyScenario = errors.New("scenario has no steps")

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return ErrEmptyScenario
	}
	if s.Repeat < 0 {
		return fmt.Errorf("repeat must be >= 0, got %d", s.Repeat)
	}
	for i, step := range s.Steps {
		if step.Hold < 0 {
			return fmt.Errorf("step %d: negative hold %s", i+1, step.Hold)
		}
		if step.Preset == "" && !step.Zero && len(step.Joints) == 0 {
			return fmt.Errorf("step %d: sets nothing", i+1)
		}
	}
	return nil
}

// Runner plays scenarios. Each step is published immediately and then
// republished every Interval until its hold expires.
type Runner struct {
	Registry *registry.Registry
	Pub      Publisher
	Presets  PresetLookup
	Interval time.Duration
	Log      *slog.Logger
}

// RunScenario plays every step Repeat+1 times and returns the number of
// frames published. Cancellation stops playback and returns ctx.Err().
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) (int, error) {
	if err := scenario.Validate(); err != nil {
		return 0, err
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	published := 0
	for pass := 0; pass <= scenario.Repeat; pass++ {
		for i, step := range scenario.Steps {
			log.Info("scenario step", "scenario", scenario.Name, "pass", pass+1, "step", i+1, "preset", step.Preset)

			if err := r.apply(step, log); err != nil {
				return published, fmt.Errorf("step %d: %w", i+1, err)
			}
			n, err := r.hold(ctx, step.Hold)
			published += n
			if err != nil {
				return published, err
			}
		}
	}
	return published, nil
}

func (r *Runner) apply(step ScenarioStep, log *slog.Logger) error {
	if step.Zero {
		r.Registry.ZeroAll()
	}
	if step.Preset != "" {
		if r.Presets == nil {
			return fmt.Errorf("no preset table for %q", step.Preset)
		}
		p, err := r.Presets(step.Preset)
		if err != nil {
			return err
		}
		if r.Registry.ApplyPreset(p) == 0 {
			log.Warn("preset matched no joints", "preset", p.Name)
		}
	}
	if len(step.Joints) > 0 {
		p := registry.Preset{Name: "joints"}
		frags := make([]string, 0, len(step.Joints))
		for frag := range step.Joints {
			frags = append(frags, frag)
		}
		sort.Strings(frags)
		for _, frag := range frags {
			p.Targets = append(p.Targets, registry.Absolute(frag, step.Joints[frag]))
		}
		if r.Registry.ApplyPreset(p) == 0 {
			log.Warn("step joints matched nothing", "joints", len(step.Joints))
		}
	}
	return nil
}

func (r *Runner) hold(ctx context.Context, d time.Duration) (int, error) {
	if err := r.Pub.Publish(ctx); err != nil {
		return 0, err
	}
	n := 1
	if d <= 0 {
		return n, nil
	}

	deadline := time.NewTimer(d)
	defer deadline.Stop()
	if r.Interval <= 0 {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case <-deadline.C:
			return n, nil
		}
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case <-deadline.C:
			return n, nil
		case <-ticker.C:
			if err := r.Pub.Publish(ctx); err != nil {
				return n, err
			}
			n++
		}
	}
}

// Preview plays the scenario on a copy of the registry without publishing and
// returns the named joint's value at every frame a run would send, indexed
// by frame number. The joint may be given by full name or suffix fragment.
func (r *Runner) Preview(scenario *Scenario, joint string) ([]uint64, []float64, error) {
	if err := scenario.Validate(); err != nil {
		return nil, nil, err
	}
	reg, err := registry.New(r.Registry.Snapshot())
	if err != nil {
		return nil, nil, err
	}
	idx, err := resolveJoint(reg, joint)
	if err != nil {
		return nil, nil, err
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	shadow := *r
	shadow.Registry = reg
	var frames []uint64
	var values []float64
	for pass := 0; pass <= scenario.Repeat; pass++ {
		for i, step := range scenario.Steps {
			if err := shadow.apply(step, log); err != nil {
				return nil, nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			v := reg.Snapshot()[idx].Value
			for k := 0; k < r.framesFor(step.Hold); k++ {
				frames = append(frames, uint64(len(frames)))
				values = append(values, v)
			}
		}
	}
	return frames, values, nil
}

// framesFor counts the publishes hold makes: one on entry plus one per
// interval tick strictly inside the hold.
func (r *Runner) framesFor(hold time.Duration) int {
	if hold <= 0 || r.Interval <= 0 {
		return 1
	}
	return 1 + int((hold-1)/r.Interval)
}

func resolveJoint(reg *registry.Registry, joint string) (int, error) {
	if i, ok := reg.Index(joint); ok {
		return i, nil
	}
	found := -1
	for i, name := range reg.Names() {
		if !registry.MatchesFragment(name, joint) {
			continue
		}
		if found >= 0 {
			return 0, fmt.Errorf("joint %q is ambiguous", joint)
		}
		found = i
	}
	if found < 0 {
		return 0, fmt.Errorf("unknown joint %q", joint)
	}
	return found, nil
}
