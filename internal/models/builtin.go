package models

import (
	"fmt"
	"sort"
)

var builtins = map[string]func() *Model{
	"arm6": NewArm6,
	"ball": NewBall,
	"hand": func() *Model { return NewHand("L/") },
}

// Get returns a fresh copy of a built-in model.
func Get(name string) (*Model, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s (available: %v)", name, List())
	}
	return fn(), nil
}

func List() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ArmJoints are the joint names of the six-axis arm, base to tool.
var ArmJoints = []string{
	"shoulder_pan",
	"shoulder_lift",
	"elbow",
	"wrist_1",
	"wrist_2",
	"wrist_3",
}

func NewArm6() *Model {
	ranges := [][2]float64{
		{-3.14, 3.14},
		{-1.57, 1.57},
		{-1.57, 1.57},
		{-3.14, 3.14},
		{-3.14, 3.14},
		{-3.14, 3.14},
	}
	m := &Model{Name: "arm6"}
	for i, name := range ArmJoints {
		m.Joints = append(m.Joints, Joint{Name: name, Type: Hinge, Limited: true, Range: ranges[i]})
	}
	return m
}

// NewBall is a single free-floating body.
func NewBall() *Model {
	return &Model{
		Name:   "ball",
		Joints: []Joint{{Name: "ball_joint", Type: Free}},
	}
}

// NewHand builds a five-finger hand. Joint names are prefixed, e.g. "L/i1_MCP".
func NewHand(prefix string) *Model {
	m := &Model{Name: "hand"}
	add := func(name string, lo, hi float64) {
		m.Joints = append(m.Joints, Joint{Name: prefix + name, Type: Hinge, Limited: true, Range: [2]float64{lo, hi}})
	}
	for _, f := range []string{"i", "m", "r", "p"} {
		add(f+"0_CMC_abd", -0.35, 0.35)
		add(f+"1_MCP", -0.2, 1.57)
		add(f+"2_PIP", 0, 1.75)
		add(f+"3_DIP", 0, 1.4)
	}
	add("t0_TM_abd", -0.5, 0.9)
	add("t1_TM", 0, 1.2)
	add("t2_CMC", 0, 1.0)
	add("t3_DIP", 0, 1.3)
	return m
}
