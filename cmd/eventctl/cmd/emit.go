package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/adapters/natsadapter"
)

type emitFlags struct {
	payload  string
	metadata string
	id       string
	natsURL  string
	prefix   string
}

// NewEmitCommand creates the emit command.
func NewEmitCommand(flags *globalFlags) *cobra.Command {
	ef := &emitFlags{}

	cmd := &cobra.Command{
		Use:   "emit <catalog> <type>",
		Short: "Validate and emit one event",
		Long: `Emit validates the payload and metadata against the catalog, prints the
encoded event and emits it. With --nats the event is published to
<prefix>.<type> instead of being delivered locally.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			if _, err := rt.applyCatalog(args[0]); err != nil {
				return err
			}

			payload, err := parseAttributes("payload", ef.payload)
			if err != nil {
				return err
			}
			metadata, err := parseAttributes("metadata", ef.metadata)
			if err != nil {
				return err
			}

			evt, err := rt.system.Managers().NewEvent(args[1], payload, metadata, eventcore.WithEventID(ef.id))
			if err != nil {
				return err
			}

			data, err := rt.codec.Serialize(evt)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			if ef.natsURL == "" {
				return rt.system.Emit(cmd.Context(), evt)
			}
			return publish(cmd.Context(), rt, evt, ef)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ef.payload, "payload", "p", "{}", "payload attributes as a JSON object")
	f.StringVarP(&ef.metadata, "metadata", "m", "{}", "metadata attributes as a JSON object")
	f.StringVar(&ef.id, "id", "", "event id (default: random UUID)")
	f.StringVar(&ef.natsURL, "nats", "", "publish to this NATS server instead of delivering locally")
	f.StringVar(&ef.prefix, "subject-prefix", natsadapter.DefaultPrefix, "NATS subject prefix")

	return cmd
}

func parseAttributes(what, raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", what, err)
	}
	return out, nil
}

// publisher sends events to remote listeners through a NATS adapter.
type publisher struct {
	rt      *runtime
	conn    *nats.Conn
	adapter *natsadapter.Adapter
}

func newPublisher(rt *runtime, url, prefix string) (*publisher, error) {
	conn, err := nats.Connect(url, nats.Name("eventctl"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	a := natsadapter.New(conn, rt.codec, natsadapter.WithPrefix(prefix),
		natsadapter.WithLogger(rt.logger), natsadapter.WithRetry(rt.publishRetry()))
	return &publisher{rt: rt, conn: conn, adapter: a}, nil
}

func (p *publisher) Publish(ctx context.Context, evt *eventcore.Event) error {
	m, err := p.rt.system.Managers().LookupEvent(evt)
	if err != nil {
		return err
	}
	return p.adapter.Dispatch(ctx, p.rt.system.Notifier(), m, evt)
}

// Close flushes pending publishes and closes the connection.
func (p *publisher) Close(ctx context.Context) error {
	defer p.conn.Close()
	return p.adapter.Close(ctx)
}

func publish(ctx context.Context, rt *runtime, evt *eventcore.Event, ef *emitFlags) error {
	p, err := newPublisher(rt, ef.natsURL, ef.prefix)
	if err != nil {
		return err
	}
	if err := p.Publish(ctx, evt); err != nil {
		_ = p.Close(ctx)
		return err
	}
	return p.Close(ctx)
}
