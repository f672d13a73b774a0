package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"workplace/internal/config"
)

// flagOverrides maps settings keys to the persistent flags that override
// them when set. Unset flags leave config files and the environment alone.
var flagOverrides = map[string]string{
	"remote.url": "remote",
	"log.level":  "log-level",
}

// cli carries the state shared by every command of one root.
type cli struct {
	v        *viper.Viper
	cfgFile  string
	settings config.Settings
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	config.SetDefaults(c.v)

	root := &cobra.Command{
		Use:   "wp",
		Short: "Workplace CLI",
		Long: `Workplace coordinates AI models working through a shared task board.
- Models: the fleet, with status, load and capabilities.
- Tasks: work items moving intake -> research -> execution -> review -> complete.
- Automations: background rules that can be paused and reactivated.
- Activity: the audit feed of everything that changed, newest first.

'wp serve' hosts the workspace over HTTP, 'wp dash' opens the terminal dashboard,
and the task, automation, log and metrics commands talk to a running server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for key, flag := range flagOverrides {
				if f := cmd.Flag(flag); f != nil && f.Changed {
					c.v.Set(key, f.Value.String())
				}
			}
			s, err := config.Load(c.v, c.cfgFile)
			if err != nil {
				return err
			}
			c.settings = s
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (yaml)")
	flags.Bool("json", false, "output JSON")
	flags.String("remote", "", "workplace API base URL (overrides remote.url)")
	flags.String("log-level", "", "log level (overrides log.level)")
	_ = c.v.BindPFlag("json", flags.Lookup("json"))

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.dashCmd())
	root.AddCommand(c.fixturesCmd())
	root.AddCommand(c.configCmd())
	root.AddCommand(c.taskCmd())
	root.AddCommand(c.modelCmd())
	root.AddCommand(c.automationCmd())
	root.AddCommand(c.logCmd())
	root.AddCommand(c.metricsCmd())
	return root
}

func (c *cli) jsonOutput() bool {
	return c.v.GetBool("json")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
