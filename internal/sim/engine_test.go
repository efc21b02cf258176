package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/jointlink/internal/dynamo"
	"github.com/san-kum/jointlink/internal/models"
)

func newArm(t *testing.T) *Engine {
	t.Helper()
	e, err := New(models.NewArm6(), DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestEngineEnumeratesJoints(t *testing.T) {
	e := newArm(t)
	joints := e.Joints()
	if len(joints) != 6 {
		t.Fatalf("expected 6 joints, got %d", len(joints))
	}
	id, ok := e.JointID("elbow")
	if !ok || joints[id].Name != "elbow" {
		t.Fatalf("elbow lookup failed: %d %v", id, ok)
	}
	if joints[id].Min != -1.57 || joints[id].Max != 1.57 {
		t.Errorf("unexpected elbow bounds [%g, %g]", joints[id].Min, joints[id].Max)
	}
	if _, ok := e.JointID("nonexistent_joint"); ok {
		t.Error("expected unknown joint lookup to fail")
	}
}

func TestEngineApplyFirstDof(t *testing.T) {
	e, err := New(&models.Model{Name: "mixed", Joints: []models.Joint{
		{Name: "ball_joint", Type: models.Free},
		{Name: "hinge", Type: models.Hinge},
	}}, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	e.ApplyJoint(0, 0.4, 0)
	e.ApplyJoint(1, -0.2, 0)
	if e.Position(0) != 0.4 || e.Position(1) != -0.2 {
		t.Errorf("positions not applied: %f %f", e.Position(0), e.Position(1))
	}
	joints := e.Joints()
	if joints[1].Addr != 6 {
		t.Errorf("expected hinge address 6 after free joint, got %d", joints[1].Addr)
	}
}

func TestEngineDampedMotion(t *testing.T) {
	e := newArm(t)
	id, _ := e.JointID("shoulder_pan")
	e.ApplyJoint(id, 0, 1.0)

	for i := 0; i < 500; i++ {
		if err := e.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	// v(t) = v0 e^{-ct}, q(t) = v0/c (1 - e^{-ct})
	c, tEnd := DefaultConfig().Damping, e.Time()
	wantQ := (1 - math.Exp(-c*tEnd)) / c
	if math.Abs(e.Position(id)-wantQ) > 1e-6 {
		t.Errorf("expected position %.6f, got %.6f", wantQ, e.Position(id))
	}
	if e.Steps() != 500 {
		t.Errorf("expected 500 steps, got %d", e.Steps())
	}
}

func TestEngineConstrainsLimitedJoints(t *testing.T) {
	e := newArm(t)
	id, _ := e.JointID("elbow")
	e.ApplyJoint(id, 1.56, 50)

	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	if e.Position(id) != 1.57 || e.Velocity(id) != 0 {
		t.Errorf("expected elbow held at 1.57 with zero velocity, got %f %f", e.Position(id), e.Velocity(id))
	}
}

func TestEngineInvalidState(t *testing.T) {
	e := newArm(t)
	e.ApplyJoint(0, math.NaN(), 0)

	err := e.Step()
	if !errors.Is(err, dynamo.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

type truncatingIntegrator struct{}

func (truncatingIntegrator) Step(_ dynamo.System, x dynamo.State, _ dynamo.Control, _, _ float64) dynamo.State {
	return x[:len(x)-1]
}

func TestEngineDimensionMismatch(t *testing.T) {
	e := newArm(t)
	e.integ = truncatingIntegrator{}
	dim := len(e.x)

	err := e.Step()
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if e.Steps() != 0 || len(e.x) != dim {
		t.Errorf("failed step must leave state alone: steps=%d dim=%d", e.Steps(), len(e.x))
	}
}

func TestEngineConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Integrator: "rk4"}},
		{"negative damping", Config{Dt: 0.01, Damping: -1, Integrator: "rk4"}},
		{"unknown integrator", Config{Dt: 0.01, Integrator: "leapfrog"}},
	}
	for _, tt := range tests {
		if _, err := New(models.NewArm6(), tt.cfg); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}
