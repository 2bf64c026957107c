// Package cmd implements the eventctl commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventcore/pkg/eventcore/codec"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	codec      string
}

// NewRootCommand creates the root command for eventctl.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "eventctl",
		Short: "Inspect, emit and watch eventcore event catalogs",
		Long: `eventctl works with eventcore event catalogs: YAML, JSON or TOML files
declaring event types and their attributes.

It validates catalogs, emits events locally or over NATS, watches a
catalog for changes and replays events recorded in the failure journal.`,
		Version:       fmt.Sprintf("%s (commit: %s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "settings file (yaml, json or toml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "override log.format (text, json)")
	pf.StringVar(&flags.codec, "codec", codec.NameJSON, fmt.Sprintf("event codec (%v)", codec.Names()))

	cmd.AddCommand(NewCheckCommand(flags))
	cmd.AddCommand(NewEmitCommand(flags))
	cmd.AddCommand(NewWatchCommand(flags))
	cmd.AddCommand(NewReplayCommand(flags))

	return cmd
}
