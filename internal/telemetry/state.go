package telemetry

import (
	"fmt"
	"math"
)

// JointReading is one joint's instantaneous state.
type JointReading struct {
	Timestamp uint64  `json:"timestamp"`
	Name      string  `json:"joint_name"`
	Angle     float64 `json:"angle_rad"`
	Velocity  float64 `json:"velocity"`
	Torque    float64 `json:"torque"`
}

// RobotState is a snapshot of zero or more joints at one tick.
type RobotState struct {
	Timestamp uint64         `json:"timestamp"`
	SourceID  string         `json:"robot_id"`
	Joints    []JointReading `json:"joints"`
}

// Validate checks the producer-side invariants of a snapshot: non-empty and
// unique joint names, finite values, and a snapshot timestamp that is not
// older than any of its readings.
func (s RobotState) Validate() error {
	seen := make(map[string]struct{}, len(s.Joints))
	for i, j := range s.Joints {
		if j.Name == "" {
			return fmt.Errorf("joint %d: %w", i, ErrEmptyJointName)
		}
		if _, dup := seen[j.Name]; dup {
			return fmt.Errorf("joint %q: %w", j.Name, ErrDuplicateJoint)
		}
		seen[j.Name] = struct{}{}
		if j.Timestamp > s.Timestamp {
			return fmt.Errorf("joint %q: reading tick %d after snapshot tick %d: %w",
				j.Name, j.Timestamp, s.Timestamp, ErrTimestampOrder)
		}
		if !finite(j.Angle) || !finite(j.Velocity) || !finite(j.Torque) {
			return fmt.Errorf("joint %q: %w", j.Name, ErrNonFinite)
		}
	}
	return nil
}

// Find returns the reading with the given name.
func (s RobotState) Find(name string) (JointReading, bool) {
	for _, j := range s.Joints {
		if j.Name == name {
			return j, true
		}
	}
	return JointReading{}, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
