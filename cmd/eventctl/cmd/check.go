package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/catalog"
)

// NewCheckCommand creates the check command.
func NewCheckCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <catalog>",
		Short: "Validate a catalog and print its event types",
		Long: `Check loads a catalog, registers every concrete event type in a fresh
system and prints one line per type with its adapter and signature digest.
Abstract types are listed but not registered.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			defs, err := catalog.Load(args[0], nil)
			if err != nil {
				return err
			}
			if _, err := catalog.Apply(rt.system.Managers(), defs, rt.logger); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tNAME\tADAPTER\tSIGNATURE")
			for _, def := range defs {
				adapter := "(abstract)"
				if !def.IsAbstract() {
					m, err := rt.system.Manager(def.Type())
					if err != nil {
						return err
					}
					adapter = m.AdapterName()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", def.Type(), def.Name(), adapter, eventcore.Fingerprint(def).Digest())
			}
			return w.Flush()
		},
	}
}
