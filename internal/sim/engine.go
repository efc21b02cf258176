package sim

import (
	"fmt"
	"time"

	"github.com/san-kum/jointlink/internal/dynamo"
	"github.com/san-kum/jointlink/internal/integrators"
	"github.com/san-kum/jointlink/internal/models"
)

type Config struct {
	Dt         float64
	Damping    float64
	Integrator string
}

func DefaultConfig() Config {
	return Config{Dt: 0.002, Damping: 2.0, Integrator: "rk4"}
}

// JointInfo describes one engine joint.
type JointInfo struct {
	Name    string
	Type    models.JointType
	Limited bool
	Min     float64
	Max     float64
	Addr    int
}

// dampedJoints is dq/dt = v, dv/dt = -c*v over every coordinate.
type dampedJoints struct {
	dof     int
	damping float64
}

func (d *dampedJoints) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	dx := make(dynamo.State, len(x))
	for i := 0; i < d.dof; i++ {
		dx[i] = x[d.dof+i]
		dx[d.dof+i] = -d.damping * x[d.dof+i]
	}
	return dx
}

func (d *dampedJoints) StateDim() int   { return 2 * d.dof }
func (d *dampedJoints) ControlDim() int { return 0 }

type Engine struct {
	joints []JointInfo
	byName map[string]int
	sys    *dampedJoints
	integ  dynamo.Integrator
	x      dynamo.State
	t      float64
	dt     float64
	steps  int
}

func New(m *models.Model, cfg Config) (*Engine, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if cfg.Damping < 0 {
		return nil, fmt.Errorf("damping must be non-negative, got %f", cfg.Damping)
	}
	integ, err := integrators.New(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		joints: make([]JointInfo, 0, len(m.Joints)),
		byName: make(map[string]int, len(m.Joints)),
		integ:  integ,
		dt:     cfg.Dt,
	}
	addr := 0
	for _, j := range m.Joints {
		lo, hi := j.Bounds()
		e.byName[j.Name] = len(e.joints)
		e.joints = append(e.joints, JointInfo{
			Name: j.Name, Type: j.Type, Limited: j.Limited,
			Min: lo, Max: hi, Addr: addr,
		})
		addr += j.Type.Dof()
	}
	e.sys = &dampedJoints{dof: addr, damping: cfg.Damping}
	e.x = make(dynamo.State, 2*addr)
	return e, nil
}

// Joints enumerates joint names and bounds in model order.
func (e *Engine) Joints() []JointInfo {
	out := make([]JointInfo, len(e.joints))
	copy(out, e.joints)
	return out
}

// JointID resolves a joint name once; the id is stable for the engine's life.
func (e *Engine) JointID(name string) (int, bool) {
	id, ok := e.byName[name]
	return id, ok
}

// ApplyJoint writes the first degree of freedom of joint id.
func (e *Engine) ApplyJoint(id int, angle, velocity float64) {
	j := e.joints[id]
	e.x[j.Addr] = angle
	e.x[e.sys.dof+j.Addr] = velocity
}

func (e *Engine) Position(id int) float64 { return e.x[e.joints[id].Addr] }
func (e *Engine) Velocity(id int) float64 { return e.x[e.sys.dof+e.joints[id].Addr] }

func (e *Engine) Time() float64    { return e.t }
func (e *Engine) Timestep() float64 { return e.dt }
func (e *Engine) Steps() int        { return e.steps }

// Step advances the engine by one timestep.
func (e *Engine) Step() error {
	next := e.integ.Step(e.sys, e.x, nil, e.t, e.dt)
	if len(next) != len(e.x) {
		return &dynamo.SimulationError{Step: e.steps, Time: e.t, Wrapped: dynamo.ErrDimensionMismatch}
	}
	if !next.IsValid() {
		return &dynamo.SimulationError{Step: e.steps, Time: e.t, Wrapped: dynamo.ErrInvalidState}
	}
	e.x = next
	e.constrain()
	e.t += e.dt
	e.steps++
	return nil
}

// constrain stops limited single-axis joints at their range ends.
func (e *Engine) constrain() {
	for _, j := range e.joints {
		if !j.Limited || j.Type.Dof() != 1 {
			continue
		}
		q := e.x[j.Addr]
		switch {
		case q < j.Min:
			e.x[j.Addr] = j.Min
			e.x[e.sys.dof+j.Addr] = 0
		case q > j.Max:
			e.x[j.Addr] = j.Max
			e.x[e.sys.dof+j.Addr] = 0
		}
	}
}

// Paced wraps the engine so each Step sleeps out the rest of the timestep,
// keeping simulated time close to wall time.
type Paced struct {
	*Engine
	last time.Time
}

func NewPaced(e *Engine) *Paced {
	return &Paced{Engine: e}
}

func (p *Paced) Running() bool { return true }

func (p *Paced) Step() error {
	if err := p.Engine.Step(); err != nil {
		return err
	}
	period := time.Duration(p.dt * float64(time.Second))
	if !p.last.IsZero() {
		if rest := period - time.Since(p.last); rest > 0 {
			time.Sleep(rest)
		}
	}
	p.last = time.Now()
	return nil
}
