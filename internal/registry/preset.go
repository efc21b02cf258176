package registry

import "strings"

// Target is one preset instruction. With Fraction set, Value is a position
// within the joint's range, clamped to [0, 1]; otherwise it is an absolute
// value.
type Target struct {
	Fragment string
	Value    float64
	Fraction bool
}

// Absolute targets matching joints at value.
func Absolute(fragment string, value float64) Target {
	return Target{Fragment: fragment, Value: value}
}

// Fraction targets matching joints at min + f*(max-min).
func Fraction(fragment string, f float64) Target {
	return Target{Fragment: fragment, Value: f, Fraction: true}
}

// Preset is an ordered list of targets. Later targets win when fragments
// overlap.
type Preset struct {
	Name    string
	Targets []Target
}

// MatchesFragment reports whether a joint name matches a preset fragment:
// either the whole name, or a suffix starting right after a '/'.
// "j1" matches "j1" and "left/j1" but not "xj1".
func MatchesFragment(name, fragment string) bool {
	if fragment == "" {
		return false
	}
	if name == fragment {
		return true
	}
	return strings.HasSuffix(name, "/"+fragment)
}

// ApplyPreset writes every target to all matching joints and returns the
// number of writes. Applied joints also have LastSent synced so the jump
// publishes near-zero velocity.
func (r *Registry) ApplyPreset(p Preset) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range p.Targets {
		for i := range r.entries {
			e := &r.entries[i]
			if !MatchesFragment(e.Name, t.Fragment) {
				continue
			}
			v := t.Value
			if t.Fraction {
				f := clamp(t.Value, 0, 1)
				v = e.Min + f*(e.Max-e.Min)
			}
			e.Value = e.Clamp(v)
			e.LastSent = e.Value
			n++
		}
	}
	return n
}
