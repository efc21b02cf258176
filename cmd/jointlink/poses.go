package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/jointlink/internal/config"
	"github.com/san-kum/jointlink/internal/registry"
	"github.com/san-kum/jointlink/internal/storage"
)

func listPoses(cmd *cobra.Command, args []string) error {
	poses, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(poses) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no saved poses")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODEL\tJOINTS\tSAVED")
	for _, p := range poses {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.Name, p.Model, len(p.Joints), p.Saved.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func deletePose(cmd *cobra.Command, args []string) error {
	if err := storage.New(dataDir).Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

// presetLookup resolves built-in presets first, then poses saved under the
// data directory.
func presetLookup(st *storage.Store) func(string) (registry.Preset, error) {
	return func(name string) (registry.Preset, error) {
		p, err := config.GetPreset(name)
		if err == nil {
			return p, nil
		}
		pose, perr := st.Load(name)
		if perr != nil {
			return registry.Preset{}, err
		}
		return pose.Preset(), nil
	}
}

// poseSaver stores panel snapshots under the next free pose name.
func poseSaver(st *storage.Store, model string) func([]registry.Entry) (registry.Preset, error) {
	return func(entries []registry.Entry) (registry.Preset, error) {
		p := storage.FromEntries(st.NextName(), model, entries)
		if err := st.Save(p); err != nil {
			return registry.Preset{}, err
		}
		return p.Preset(), nil
	}
}
