package models

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/jointlink/internal/registry"
)

type JointType string

const (
	Hinge JointType = "hinge"
	Slide JointType = "slide"
	Ball  JointType = "ball"
	Free  JointType = "free"
)

// Dof is the number of scalar degrees of freedom of the joint type.
func (t JointType) Dof() int {
	switch t {
	case Hinge, Slide:
		return 1
	case Ball:
		return 3
	case Free:
		return 6
	default:
		return 0
	}
}

var (
	ErrNoJoints      = errors.New("models: model has no joints")
	ErrBadJointType  = errors.New("models: unknown joint type")
	ErrDuplicateName = errors.New("models: duplicate joint name")
)

type Joint struct {
	Name    string     `yaml:"name"`
	Type    JointType  `yaml:"type"`
	Limited bool       `yaml:"limited"`
	Range   [2]float64 `yaml:"range"`
}

// Bounds returns the joint's usable range. Unlimited joints and joints with a
// degenerate range get the registry default.
func (j Joint) Bounds() (float64, float64) {
	lo, hi := j.Range[0], j.Range[1]
	if !j.Limited || math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) || lo >= hi {
		return registry.DefaultMin, registry.DefaultMax
	}
	return lo, hi
}

type Model struct {
	Name   string  `yaml:"name"`
	Joints []Joint `yaml:"joints"`
}

// Load reads a YAML model definition.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("models: parse %s: %w", path, err)
	}
	for i := range m.Joints {
		if m.Joints[i].Type == "" {
			m.Joints[i].Type = Hinge
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Model) Validate() error {
	if len(m.Joints) == 0 {
		return ErrNoJoints
	}
	seen := make(map[string]struct{}, len(m.Joints))
	for _, j := range m.Joints {
		if j.Name == "" {
			return fmt.Errorf("models: %s: joint with empty name", m.Name)
		}
		if j.Type.Dof() == 0 {
			return fmt.Errorf("%w: %q (joint %s)", ErrBadJointType, j.Type, j.Name)
		}
		if _, dup := seen[j.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateName, j.Name)
		}
		seen[j.Name] = struct{}{}
	}
	return nil
}

// Dof is the total number of scalar degrees of freedom.
func (m *Model) Dof() int {
	n := 0
	for _, j := range m.Joints {
		n += j.Type.Dof()
	}
	return n
}

// Entries enumerates registry entries for the model's joints. With a
// non-empty filter only joints whose name starts with one of the prefixes
// are kept. Empty prefixes never match.
func (m *Model) Entries(filterPrefix []string) []registry.Entry {
	out := make([]registry.Entry, 0, len(m.Joints))
	for _, j := range m.Joints {
		if !keep(j.Name, filterPrefix) {
			continue
		}
		lo, hi := j.Bounds()
		out = append(out, registry.Entry{Name: j.Name, Min: lo, Max: hi})
	}
	return out
}

func keep(name string, filterPrefix []string) bool {
	if len(filterPrefix) == 0 {
		return true
	}
	for _, p := range filterPrefix {
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
