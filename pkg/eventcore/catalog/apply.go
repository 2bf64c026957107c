package catalog

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/observability"
)

// Report lists what Apply did, by event type.
type Report struct {
	Added     []string
	Unchanged []string
	Replaced  []string
}

// Apply registers defs on reg. Types not yet managed are registered, types
// whose fingerprint is unchanged are left alone, and types whose
// fingerprint changed are replaced in place, keeping their subscriptions.
// Abstract definitions are skipped. Apply keeps going after a failure and
// returns every error joined.
func Apply(reg *eventcore.ManagerRegistry, defs []*eventcore.Definition, logger *slog.Logger) (Report, error) {
	var report Report
	var errs []error

	for _, def := range defs {
		if def.IsAbstract() {
			continue
		}

		current, err := reg.Lookup(def.Type())
		if errors.Is(err, eventcore.ErrUnmanaged) {
			if _, err := reg.Register(def); err != nil {
				errs = append(errs, err)
				continue
			}
			report.Added = append(report.Added, def.Type())
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		diff := eventcore.Fingerprint(current.Definition()).Diff(eventcore.Fingerprint(def))
		if len(diff) == 0 {
			report.Unchanged = append(report.Unchanged, def.Type())
			continue
		}

		observability.LogSignatureDrift(logger, def.Type(), diff)
		if _, err := reg.Replace(def); err != nil {
			errs = append(errs, fmt.Errorf("replace %s: %w", def.Type(), err))
			continue
		}
		report.Replaced = append(report.Replaced, def.Type())
	}

	return report, errors.Join(errs...)
}
