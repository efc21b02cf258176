package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/jointlink/internal/logging"
	"github.com/san-kum/jointlink/internal/registry"
)

type recordingPub struct {
	mu     sync.Mutex
	reg    *registry.Registry
	frames [][]registry.Entry
	err    error
}

func (p *recordingPub) Publish(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.frames = append(p.frames, p.reg.Snapshot())
	return nil
}

func newRunner(t *testing.T) (*Runner, *recordingPub) {
	t.Helper()
	reg, err := registry.New([]registry.Entry{
		{Name: "L/i1_MCP", Min: 0, Max: 2},
		{Name: "L/m1_MCP", Min: 0, Max: 2},
	})
	require.NoError(t, err)

	pub := &recordingPub{reg: reg}
	presets := map[string]registry.Preset{
		"curl": {Name: "curl", Targets: []registry.Target{registry.Fraction("i1_MCP", 1), registry.Fraction("m1_MCP", 1)}},
	}
	return &Runner{
		Registry: reg,
		Pub:      pub,
		Presets: func(name string) (registry.Preset, error) {
			p, ok := presets[name]
			if !ok {
				return registry.Preset{}, fmt.Errorf("unknown preset %q", name)
			}
			return p, nil
		},
		Log: logging.Discard(),
	}, pub
}

func values(entries []registry.Entry) []float64 {
	out := make([]float64, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wave.yaml")
	doc := `name: wave
repeat: 1
steps:
  - preset: curl
    hold: 250ms
  - zero: true
    joints:
      i1_MCP: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "wave", sc.Name)
	assert.Equal(t, 1, sc.Repeat)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, 250*time.Millisecond, sc.Steps[0].Hold)
	assert.True(t, sc.Steps[1].Zero)
	assert.Equal(t, 0.5, sc.Steps[1].Joints["i1_MCP"])
}

func TestLoadScenarioErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadScenario(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("name: nothing\n"), 0o644))
	_, err = LoadScenario(empty)
	assert.ErrorIs(t, err, ErrEmptyScenario)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("steps: [\n"), 0o644))
	_, err = LoadScenario(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		sc   Scenario
		ok   bool
	}{
		{"preset step", Scenario{Steps: []ScenarioStep{{Preset: "curl"}}}, true},
		{"no steps", Scenario{}, false},
		{"negative repeat", Scenario{Repeat: -1, Steps: []ScenarioStep{{Zero: true}}}, false},
		{"negative hold", Scenario{Steps: []ScenarioStep{{Zero: true, Hold: -time.Second}}}, false},
		{"empty step", Scenario{Steps: []ScenarioStep{{Hold: time.Second}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sc.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRunScenarioAppliesStepsInOrder(t *testing.T) {
	r, pub := newRunner(t)
	sc := &Scenario{Steps: []ScenarioStep{
		{Preset: "curl"},
		{Zero: true, Joints: map[string]float64{"i1_MCP": 0.5, "m1_MCP": 9}},
		{Zero: true},
	}}

	n, err := r.RunScenario(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.frames, 3)
	assert.Equal(t, []float64{2, 2}, values(pub.frames[0]))
	assert.Equal(t, []float64{0.5, 2}, values(pub.frames[1]), "joint values are clamped")
	assert.Equal(t, []float64{0, 0}, values(pub.frames[2]))
}

func TestRunScenarioRepeat(t *testing.T) {
	r, pub := newRunner(t)
	sc := &Scenario{Repeat: 2, Steps: []ScenarioStep{{Preset: "curl"}, {Zero: true}}}

	n, err := r.RunScenario(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Len(t, pub.frames, 6)
}

func TestRunScenarioHoldRepublishes(t *testing.T) {
	r, pub := newRunner(t)
	r.Interval = 10 * time.Millisecond
	sc := &Scenario{Steps: []ScenarioStep{{Preset: "curl", Hold: 100 * time.Millisecond}}}

	start := time.Now()
	n, err := r.RunScenario(context.Background(), sc)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.GreaterOrEqual(t, n, 3)
	assert.Len(t, pub.frames, n)
}

func TestRunScenarioHoldWithoutInterval(t *testing.T) {
	r, pub := newRunner(t)
	sc := &Scenario{Steps: []ScenarioStep{{Zero: true, Hold: 20 * time.Millisecond}}}

	n, err := r.RunScenario(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, pub.frames, 1)
}

func TestRunScenarioCanceled(t *testing.T) {
	r, _ := newRunner(t)
	r.Interval = 10 * time.Millisecond
	sc := &Scenario{Steps: []ScenarioStep{{Zero: true, Hold: time.Hour}}}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := r.RunScenario(ctx, sc)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunScenarioUnknownPreset(t *testing.T) {
	r, pub := newRunner(t)
	sc := &Scenario{Steps: []ScenarioStep{{Preset: "wave"}}}

	_, err := r.RunScenario(context.Background(), sc)
	assert.ErrorContains(t, err, "step 1")
	assert.Empty(t, pub.frames)
}

func TestRunScenarioPublishError(t *testing.T) {
	r, pub := newRunner(t)
	boom := errors.New("boom")
	pub.err = boom

	n, err := r.RunScenario(context.Background(), &Scenario{Steps: []ScenarioStep{{Zero: true}}})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, n)
}

func TestPreview(t *testing.T) {
	r, pub := newRunner(t)
	r.Interval = 10 * time.Millisecond
	sc := &Scenario{Repeat: 1, Steps: []ScenarioStep{
		{Preset: "curl", Hold: 30 * time.Millisecond},
		{Zero: true, Joints: map[string]float64{"i1_MCP": 0.5}},
	}}

	frames, values, err := r.Preview(sc, "i1_MCP")
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7}, frames)
	assert.Equal(t, []float64{2, 2, 2, 0.5, 2, 2, 2, 0.5}, values)
	assert.Empty(t, pub.frames, "preview never publishes")

	e, _ := r.Registry.Get("L/i1_MCP")
	assert.Zero(t, e.Value, "preview leaves the live registry alone")
}

func TestPreviewJointResolution(t *testing.T) {
	r, _ := newRunner(t)
	sc := &Scenario{Steps: []ScenarioStep{{Preset: "curl"}}}

	_, values, err := r.Preview(sc, "L/m1_MCP")
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, values)

	_, _, err = r.Preview(sc, "thumb")
	assert.ErrorContains(t, err, "unknown joint")

	_, _, err = r.Preview(sc, "")
	assert.Error(t, err)
}

func TestFramesFor(t *testing.T) {
	r := &Runner{Interval: 10 * time.Millisecond}
	assert.Equal(t, 1, r.framesFor(0))
	assert.Equal(t, 1, r.framesFor(10*time.Millisecond))
	assert.Equal(t, 2, r.framesFor(11*time.Millisecond))
	assert.Equal(t, 10, r.framesFor(100*time.Millisecond))

	r.Interval = 0
	assert.Equal(t, 1, r.framesFor(time.Second))
}
