package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/jointlink/internal/registry"
)

func handEntries() []registry.Entry {
	return []registry.Entry{
		{Name: "L/i1_MCP", Value: 0.8, Min: -0.2, Max: 1.57},
		{Name: "L/t1_TM", Value: 0.3, Min: 0, Max: 1.2},
	}
}

func TestSaveAndLoad(t *testing.T) {
	st := New(t.TempDir())
	p := FromEntries("grip", "hand", handEntries())

	require.NoError(t, st.Save(p))
	got, err := st.Load("grip")
	require.NoError(t, err)
	assert.Equal(t, "grip", got.Name)
	assert.Equal(t, "hand", got.Model)
	assert.Equal(t, []JointValue{{"L/i1_MCP", 0.8}, {"L/t1_TM", 0.3}}, got.Joints)
	assert.WithinDuration(t, p.Saved, got.Saved, time.Second)
}

func TestSaveOverwrites(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Save(Pose{Name: "a", Joints: []JointValue{{"j", 1}}}))
	require.NoError(t, st.Save(Pose{Name: "a", Joints: []JointValue{{"j", 2}}}))

	got, err := st.Load("a")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Joints[0].Value)

	leftovers, err := filepath.Glob(filepath.Join(st.dir(), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestBadNames(t *testing.T) {
	st := New(t.TempDir())
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		assert.ErrorIs(t, st.Save(Pose{Name: name}), ErrBadName, name)
		_, err := st.Load(name)
		assert.ErrorIs(t, err, ErrBadName, name)
	}
}

func TestLoadMissing(t *testing.T) {
	st := New(t.TempDir())
	_, err := st.Load("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, st.Delete("ghost"), ErrNotFound)
}

func TestListOrderAndSkipsJunk(t *testing.T) {
	st := New(t.TempDir())

	poses, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, poses)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.Save(Pose{Name: "second", Saved: base.Add(time.Minute)}))
	require.NoError(t, st.Save(Pose{Name: "first", Saved: base}))
	require.NoError(t, os.WriteFile(filepath.Join(st.dir(), "broken.json"), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(st.dir(), "notes.txt"), []byte("x"), 0o644))

	poses, err = st.List()
	require.NoError(t, err)
	require.Len(t, poses, 2)
	assert.Equal(t, "first", poses[0].Name)
	assert.Equal(t, "second", poses[1].Name)
}

func TestDelete(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Save(Pose{Name: "a"}))
	require.NoError(t, st.Delete("a"))
	_, err := st.Load("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNextName(t *testing.T) {
	st := New(t.TempDir())
	assert.Equal(t, "pose_1", st.NextName())

	require.NoError(t, st.Save(Pose{Name: "pose_1"}))
	require.NoError(t, st.Save(Pose{Name: "pose_3"}))
	assert.Equal(t, "pose_2", st.NextName())
}

func TestPresetsRoundTripIntoRegistry(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Save(FromEntries("grip", "hand", handEntries())))
	require.NoError(t, st.Save(Pose{Name: "elbow_up", Model: "arm6", Joints: []JointValue{{"elbow", 1}}}))

	presets, err := st.Presets("hand")
	require.NoError(t, err)
	require.Len(t, presets, 1)
	assert.Equal(t, "grip", presets[0].Name)

	all, err := st.Presets("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	entries := handEntries()
	for i := range entries {
		entries[i].Value = 0
	}
	reg, err := registry.New(entries)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.ApplyPreset(presets[0]))

	got, _ := reg.Get("L/i1_MCP")
	assert.Equal(t, 0.8, got.Value)
	got, _ = reg.Get("L/t1_TM")
	assert.Equal(t, 0.3, got.Value)
}
