package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventcore/pkg/eventcore/adapters/natsadapter"
	"github.com/randalmurphal/eventcore/pkg/eventcore/journal"
)

// NewReplayCommand creates the replay command.
func NewReplayCommand(flags *globalFlags) *cobra.Command {
	var (
		eventType string
		limit     int
		list      bool
		natsURL   string
		prefix    string
	)

	cmd := &cobra.Command{
		Use:   "replay <catalog>",
		Short: "Re-emit events recorded in the failure journal",
		Long: `Replay reads the journal configured under journal.path, decodes every
entry recorded with the selected codec and publishes each event once more
to <prefix>.<type> on the NATS server given by --nats. Entries of events
that are published are removed from the journal.

With --list the entries are printed and nothing is published.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			if rt.journal == nil {
				return errors.New("replay requires journal.path in the settings file")
			}
			if _, err := rt.applyCatalog(args[0]); err != nil {
				return err
			}

			opts := journal.ListOptions{EventType: eventType, Limit: limit}
			if list {
				entries, err := rt.journal.List(cmd.Context(), opts)
				if err != nil {
					return err
				}
				for _, e := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
						e.RecordedAt.Format("2006-01-02T15:04:05Z07:00"), e.EventType, e.EventID, e.Error)
				}
				return nil
			}

			if natsURL == "" {
				return errors.New("replay requires --nats: eventctl has no local subscribers to deliver to")
			}
			p, err := newPublisher(rt, natsURL, prefix)
			if err != nil {
				return err
			}
			res, err := journal.Replay(cmd.Context(), rt.journal, rt.codec, opts, p.Publish)
			if cerr := p.Close(cmd.Context()); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d, failed %d\n", res.Replayed, res.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "only replay entries of this event type")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries (0: all)")
	cmd.Flags().BoolVar(&list, "list", false, "print entries instead of replaying them")
	cmd.Flags().StringVar(&natsURL, "nats", "", "publish replayed events to this NATS server")
	cmd.Flags().StringVar(&prefix, "subject-prefix", natsadapter.DefaultPrefix, "NATS subject prefix")

	return cmd
}
