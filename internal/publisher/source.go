package publisher

import (
	"math"
	"time"

	"github.com/san-kum/jointlink/internal/models"
	"github.com/san-kum/jointlink/internal/registry"
	"github.com/san-kum/jointlink/internal/telemetry"
)

// Source produces the joint readings for one tick. elapsed is the time since
// the previous publish.
type Source interface {
	ID() string
	Sample(tick uint64, elapsed time.Duration) []telemetry.JointReading
}

// SineSource drives the six arm joints along phase-shifted sine waves.
type SineSource struct {
	Joints []string
}

func NewSineSource() *SineSource {
	return &SineSource{Joints: models.ArmJoints}
}

func (s *SineSource) ID() string { return "robot_arm_001" }

func (s *SineSource) Sample(tick uint64, _ time.Duration) []telemetry.JointReading {
	out := make([]telemetry.JointReading, len(s.Joints))
	t := float64(tick) * 0.01
	for i, name := range s.Joints {
		phase := (t + float64(i)) * 0.5
		out[i] = telemetry.JointReading{
			Timestamp: tick,
			Name:      name,
			Angle:     math.Sin(phase) * 1.5,
			Velocity:  math.Cos(phase) * 0.1,
			Torque:    math.Sin(phase*2) * 5.0,
		}
	}
	return out
}

// BallSource drives a single ball joint.
type BallSource struct {
	Joint string
}

func NewBallSource() *BallSource {
	return &BallSource{Joint: "ball_joint"}
}

func (s *BallSource) ID() string { return "ball_robot" }

func (s *BallSource) Sample(tick uint64, _ time.Duration) []telemetry.JointReading {
	t := float64(tick) * 0.01
	return []telemetry.JointReading{{
		Timestamp: tick,
		Name:      s.Joint,
		Angle:     math.Sin(t) * 2.0,
		Velocity:  math.Cos(t) * 0.1,
		Torque:    math.Sin(t*2) * 0.5,
	}}
}

// RegistrySource publishes the current registry values, with velocity
// estimated from the change since the last publish.
type RegistrySource struct {
	Registry *registry.Registry
	Robot    string
}

func NewRegistrySource(r *registry.Registry, robotID string) *RegistrySource {
	return &RegistrySource{Registry: r, Robot: robotID}
}

func (s *RegistrySource) ID() string { return s.Robot }

func (s *RegistrySource) Sample(tick uint64, elapsed time.Duration) []telemetry.JointReading {
	return s.Registry.Sample(tick, elapsed)
}

// NewTrajectory returns the named headless source, "arm" or "ball".
func NewTrajectory(name string) (Source, bool) {
	switch name {
	case "arm":
		return NewSineSource(), true
	case "ball":
		return NewBallSource(), true
	default:
		return nil, false
	}
}
