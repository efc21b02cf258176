// Package storage keeps named joint poses on disk, one JSON file per pose,
// so poses captured on the control panel can be replayed as presets.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/san-kum/jointlink/internal/registry"
)

const poseExt = ".json"

var (
	ErrNotFound = errors.New("storage: pose not found")
	ErrBadName  = errors.New("storage: invalid pose name")
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.dir(), 0755)
}

func (s *Store) dir() string { return filepath.Join(s.baseDir, "poses") }

// JointValue is one saved joint position.
type JointValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

type Pose struct {
	Name   string       `json:"name"`
	Model  string       `json:"model"`
	Saved  time.Time    `json:"saved"`
	Joints []JointValue `json:"joints"`
}

// Preset turns the pose into absolute targets on the saved joint names.
func (p Pose) Preset() registry.Preset {
	ts := make([]registry.Target, len(p.Joints))
	for i, j := range p.Joints {
		ts[i] = registry.Absolute(j.Name, j.Value)
	}
	return registry.Preset{Name: p.Name, Targets: ts}
}

// FromEntries captures the current registry values as a pose.
func FromEntries(name, model string, entries []registry.Entry) Pose {
	p := Pose{Name: name, Model: model, Saved: time.Now(), Joints: make([]JointValue, len(entries))}
	for i, e := range entries {
		p.Joints[i] = JointValue{Name: e.Name, Value: e.Value}
	}
	return p
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir(), name+poseExt)
}

// Save writes the pose, replacing any pose with the same name.
func (s *Store) Save(p Pose) error {
	if err := checkName(p.Name); err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir(), p.Name+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(p.Name))
}

func (s *Store) Load(name string) (Pose, error) {
	if err := checkName(name); err != nil {
		return Pose{}, err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return Pose{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Pose{}, err
	}

	var p Pose
	if err := json.Unmarshal(data, &p); err != nil {
		return Pose{}, fmt.Errorf("storage: pose %s: %w", name, err)
	}
	return p, nil
}

// List returns all saved poses, oldest first. A missing directory is empty.
func (s *Store) List() ([]Pose, error) {
	entries, err := os.ReadDir(s.dir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var poses []Pose
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != poseExt {
			continue
		}
		p, err := s.Load(strings.TrimSuffix(e.Name(), poseExt))
		if err != nil {
			continue
		}
		poses = append(poses, p)
	}
	sort.SliceStable(poses, func(i, j int) bool {
		if poses[i].Saved.Equal(poses[j].Saved) {
			return poses[i].Name < poses[j].Name
		}
		return poses[i].Saved.Before(poses[j].Saved)
	})
	return poses, nil
}

func (s *Store) Delete(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}

// NextName returns the first unused "pose_N".
func (s *Store) NextName() string {
	for n := 1; ; n++ {
		name := fmt.Sprintf("pose_%d", n)
		if _, err := os.Stat(s.path(name)); errors.Is(err, os.ErrNotExist) {
			return name
		}
	}
}

// Presets returns saved poses recorded for model as presets. An empty model
// matches every pose.
func (s *Store) Presets(model string) ([]registry.Preset, error) {
	poses, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []registry.Preset
	for _, p := range poses {
		if model == "" || p.Model == model {
			out = append(out, p.Preset())
		}
	}
	return out, nil
}
