package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/jointlink/internal/config"
	"github.com/san-kum/jointlink/internal/models"
)

func listModels(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	if len(args) == 0 {
		fmt.Fprintln(w, "MODEL\tJOINTS\tDOF")
		for _, name := range models.List() {
			m, err := models.Get(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%d\n", name, len(m.Joints), m.Dof())
		}
		return nil
	}

	m, err := models.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "JOINT\tTYPE\tLIMITED\tMIN\tMAX")
	for _, j := range m.Joints {
		lo, hi := j.Bounds()
		fmt.Fprintf(w, "%s\t%s\t%t\t%.3f\t%.3f\n", j.Name, j.Type, j.Limited, lo, hi)
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "hand presets (control panel keys 1-9):")
	for i, p := range config.Presets {
		fmt.Fprintf(out, "  %d  %-14s %d targets\n", i+1, p.Name, len(p.Targets))
	}
	return nil
}

func printConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
