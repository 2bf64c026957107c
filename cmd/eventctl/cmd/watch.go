package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/adapters/natsadapter"
	"github.com/randalmurphal/eventcore/pkg/eventcore/catalog"
	"github.com/randalmurphal/eventcore/pkg/eventcore/config"
)

type watchFlags struct {
	debounce    time.Duration
	natsURL     string
	prefix      string
	metricsAddr string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(flags *globalFlags) *cobra.Command {
	wf := &watchFlags{}

	cmd := &cobra.Command{
		Use:   "watch <catalog>",
		Short: "Apply a catalog and re-apply it whenever it changes",
		Long: `Watch applies a catalog, then re-applies it on every change until
interrupted. Changed types are replaced in place and keep their observers.

With --nats, events received under <prefix>.> are validated against the
catalog and printed, one encoded event per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, flags, wf, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.DurationVar(&wf.debounce, "debounce", 0, "quiet period before a reload (default: catalog.debounce from settings)")
	f.StringVar(&wf.natsURL, "nats", "", "listen for events on this NATS server")
	f.StringVar(&wf.prefix, "subject-prefix", natsadapter.DefaultPrefix, "NATS subject prefix")
	f.StringVar(&wf.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (prometheus backend only)")

	return cmd
}

// debounceFor returns the --debounce flag, or the settings value when the
// flag is unset.
func (wf *watchFlags) debounceFor(s config.Settings) time.Duration {
	if wf.debounce > 0 {
		return wf.debounce
	}
	return s.Catalog.Debounce
}

func runWatch(ctx context.Context, flags *globalFlags, wf *watchFlags, path string, out, logOut io.Writer) error {
	rt, err := newRuntime(flags, logOut)
	if err != nil {
		return err
	}
	defer rt.close(context.Background())

	printer := &eventPrinter{out: out, rt: rt}

	w := catalog.NewWatcher(path, rt.system.Managers(),
		catalog.WithDebounce(wf.debounceFor(rt.settings)),
		catalog.WithLogger(rt.logger),
		catalog.WithOnApply(func(r catalog.Report, _ error) {
			rt.attachJournal(r.Added)
			printer.attach(r.Added)
		}),
	)
	if _, err := w.Reload(); err != nil {
		return err
	}

	if wf.metricsAddr != "" {
		if rt.prometheus == nil {
			return errors.New("--metrics-addr requires metrics.backend: prometheus")
		}
		srv := &http.Server{
			Addr:              wf.metricsAddr,
			Handler:           promhttp.HandlerFor(rt.prometheus, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	if wf.natsURL != "" {
		conn, err := nats.Connect(wf.natsURL, nats.Name("eventctl"))
		if err != nil {
			return fmt.Errorf("connect %s: %w", wf.natsURL, err)
		}
		defer conn.Close()

		l, err := natsadapter.Listen(ctx, conn, rt.codec, rt.system.Managers(), rt.system.Notifier(),
			natsadapter.WithPrefix(wf.prefix), natsadapter.WithLogger(rt.logger))
		if err != nil {
			return err
		}
		defer l.Close()
	}

	return w.Run(ctx)
}

// eventPrinter writes every delivered event to out, encoded with the
// runtime codec.
type eventPrinter struct {
	out io.Writer
	rt  *runtime

	mu       sync.Mutex
	attached map[string]bool
}

func (p *eventPrinter) attach(types []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attached == nil {
		p.attached = make(map[string]bool)
	}
	for _, typ := range types {
		if p.attached[typ] {
			continue
		}
		if _, err := p.rt.system.Subscribe(typ, p); err == nil {
			p.attached[typ] = true
		}
	}
}

// Notify implements eventcore.Observer.
func (p *eventPrinter) Notify(_ context.Context, evt *eventcore.Event) error {
	data, err := p.rt.codec.Serialize(evt)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

// String names the printer in delivery logs.
func (p *eventPrinter) String() string { return "eventctl.printer" }
