package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"workplace/internal/config"
)

func (c *cli) fixturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Inspect seed fixtures",
		Long:  "The seed is loaded at startup from seed.file, or from the built-in fixtures when unset.",
	}
	var file string
	cmd.PersistentFlags().StringVar(&file, "file", "", "fixtures file (defaults to seed.file)")
	load := func() (*config.Fixtures, string, error) {
		path := file
		if path == "" {
			path = c.settings.Seed.File
		}
		f, err := config.LoadFixtures(path)
		return f, path, err
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the seed fixtures as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, path, err := load()
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), f)
			}
			if path == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), config.DefaultFixturesYAML())
				return err
			}
			return writeYAML(cmd.OutOrStdout(), f)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate a fixtures file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, path, err := load()
			if err != nil {
				return err
			}
			if path == "" {
				path = "(built-in)"
			}
			counts := map[string]int{
				"models":      len(f.Models),
				"tasks":       len(f.Tasks),
				"automations": len(f.Automations),
				"activity":    len(f.Activity),
			}
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]any{"file": path, "valid": true, "counts": counts})
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.SetTitle("%s is valid", path)
			tw.AppendHeader(table.Row{"Collection", "Count"})
			for _, name := range []string{"models", "tasks", "automations", "activity"} {
				tw.AppendRow(table.Row{name, counts[name]})
			}
			tw.Render()
			return nil
		},
	})
	return cmd
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), c.settings)
			}
			return writeYAML(cmd.OutOrStdout(), c.settings)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file in use",
		Run: func(cmd *cobra.Command, args []string) {
			if c.cfgFile == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "no config file; using defaults and %s_* environment variables\n", config.EnvPrefix)
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.cfgFile)
		},
	})
	return cmd
}

func writeYAML(w io.Writer, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
