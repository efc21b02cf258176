package registry

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/san-kum/jointlink/internal/telemetry"
)

// DefaultMin and DefaultMax bound joints whose model declares no usable range.
const (
	DefaultMin = -1.5
	DefaultMax = 1.5
)

// MinElapsed floors the sampling interval used for velocity estimation.
const MinElapsed = time.Nanosecond

var (
	ErrDuplicateName = errors.New("registry: duplicate joint name")
	ErrEmptyName     = errors.New("registry: empty joint name")
	ErrInvertedRange = errors.New("registry: min bound exceeds max bound")
)

// Entry is one controllable joint.
type Entry struct {
	Name     string
	Value    float64
	Min      float64
	Max      float64
	LastSent float64
}

// Clamp limits v to the entry's range.
func (e Entry) Clamp(v float64) float64 {
	return clamp(v, e.Min, e.Max)
}

// Registry is a name-indexed table of joints.
type Registry struct {
	mu      sync.Mutex
	entries []Entry
	index   map[string]int
}

// New builds a registry from entries. Non-finite bounds fall back to the
// default range; initial values are clamped.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.Name == "" {
			return nil, ErrEmptyName
		}
		if _, dup := r.index[e.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, e.Name)
		}
		if !finite(e.Min) || !finite(e.Max) {
			e.Min, e.Max = DefaultMin, DefaultMax
		}
		if e.Min > e.Max {
			return nil, fmt.Errorf("%w: %q [%g, %g]", ErrInvertedRange, e.Name, e.Min, e.Max)
		}
		e.Value = e.Clamp(e.Value)
		e.LastSent = e.Clamp(e.LastSent)
		r.index[e.Name] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r, nil
}

// Len returns the number of joints.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Index resolves a joint name to its stable index.
func (r *Registry) Index(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

// Names returns joint names in index order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Name
	}
	return names
}

// Get returns a copy of the named entry.
func (r *Registry) Get(name string) (Entry, bool) {
	i, ok := r.index[name]
	if !ok {
		return Entry{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[i], true
}

// Snapshot copies every entry out in index order.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// SetValue clamps target into the named joint's range. Unknown names are a
// no-op. It reports whether a joint was written.
func (r *Registry) SetValue(name string, target float64) bool {
	i, ok := r.index[name]
	if !ok {
		return false
	}
	r.SetValueAt(i, target)
	return true
}

// SetValueAt clamps and writes by index and returns the stored value.
func (r *Registry) SetValueAt(i int, target float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &r.entries[i]
	e.Value = e.Clamp(target)
	return e.Value
}

// Nudge moves joint i by delta, clamped.
func (r *Registry) Nudge(i int, delta float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &r.entries[i]
	e.Value = e.Clamp(e.Value + delta)
	return e.Value
}

// Apply writes a received reading's angle into the matching entry. It returns
// the entry index, the clamped value and whether the name was known.
func (r *Registry) Apply(reading telemetry.JointReading) (int, float64, bool) {
	i, ok := r.index[reading.Name]
	if !ok {
		return -1, 0, false
	}
	return i, r.SetValueAt(i, reading.Angle), true
}

// ZeroAll sets every joint to zero (clamped) with zero pending velocity.
func (r *Registry) ZeroAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		e := &r.entries[i]
		e.Value = e.Clamp(0)
		e.LastSent = e.Value
	}
}

// Sample converts the current values into readings stamped with tick.
// Velocity is (Value - LastSent) / elapsed, with elapsed floored to
// MinElapsed; LastSent is then advanced to Value.
func (r *Registry) Sample(tick uint64, elapsed time.Duration) []telemetry.JointReading {
	if elapsed < MinElapsed {
		elapsed = MinElapsed
	}
	dt := elapsed.Seconds()

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]telemetry.JointReading, len(r.entries))
	for i := range r.entries {
		e := &r.entries[i]
		out[i] = telemetry.JointReading{
			Timestamp: tick,
			Name:      e.Name,
			Angle:     e.Value,
			Velocity:  (e.Value - e.LastSent) / dt,
		}
		e.LastSent = e.Value
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
