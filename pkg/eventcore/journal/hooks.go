package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/codec"
)

// ErrorHook returns an on-error hook recording each subscriber failure.
// A failure to encode or store the entry is returned, which stops the
// remaining on-error hooks of that notification.
//
//	m.OnError(journal.ErrorHook(store, codec.NewJSON()))
func ErrorHook(store Store, c codec.Codec) eventcore.ErrorHook {
	return func(ctx context.Context, evt *eventcore.Event, err error) error {
		return record(ctx, store, c, evt, err)
	}
}

// FailureHandler returns an async failure handler recording the failures
// raised on workers. Aggregated subscriber failures are recorded one entry
// per subscriber. Storage errors are logged to logger, which may be nil.
//
//	eventcore.WithAsyncOptions(eventcore.WithFailureHandler(journal.FailureHandler(store, c, logger)))
func FailureHandler(store Store, c codec.Codec, logger *slog.Logger) eventcore.FailureHandler {
	return func(ctx context.Context, evt *eventcore.Event, err error) {
		failures := []error{err}
		var failed *eventcore.FailedSubscribersError
		if errors.As(err, &failed) {
			failures = failed.Errors
		}
		for _, f := range failures {
			if rerr := record(ctx, store, c, evt, f); rerr != nil && logger != nil {
				logger.Error("journal record failed",
					slog.String("event_type", evt.Type()),
					slog.String("event_id", evt.ID()),
					slog.String("error", rerr.Error()),
				)
			}
		}
	}
}

func record(ctx context.Context, store Store, c codec.Codec, evt *eventcore.Event, failure error) error {
	payload, err := c.Serialize(evt)
	if err != nil {
		return fmt.Errorf("journal %s: %w", evt.ID(), err)
	}
	entry := Entry{
		EventID:   evt.ID(),
		EventType: evt.Type(),
		Codec:     c.Name(),
		Payload:   payload,
	}
	if failure != nil {
		entry.Error = failure.Error()
	}
	if err := store.Record(ctx, entry); err != nil {
		return fmt.Errorf("journal %s: %w", evt.ID(), err)
	}
	return nil
}

// EmitFunc delivers a replayed event, usually System.Emit.
type EmitFunc func(ctx context.Context, evt *eventcore.Event) error

// ReplayResult summarizes one Replay call.
type ReplayResult struct {
	Replayed int
	Failed   int
}

// Replay decodes the entries matching opts with c and emits them again,
// once per event even when several subscribers failed it. Entries of an
// event whose emit succeeds are deleted. When the emit fails again the
// entries stay, unless the failure was recorded anew during the emit (by
// an ErrorHook), in which case the replayed entries are deleted so the
// journal holds one generation of failures per event.
// Entries recorded with another codec are skipped.
func Replay(ctx context.Context, store Store, c codec.Codec, opts ListOptions, emit EmitFunc) (ReplayResult, error) {
	var res ReplayResult
	entries, err := store.List(ctx, opts)
	if err != nil {
		return res, err
	}

	var order []string
	consumed := make(map[string][]Entry) // event ID -> entries
	for _, e := range entries {
		if e.Codec != c.Name() {
			continue
		}
		if _, ok := consumed[e.EventID]; !ok {
			order = append(order, e.EventID)
		}
		consumed[e.EventID] = append(consumed[e.EventID], e)
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		group := consumed[id]
		if replayOne(ctx, c, group[0], emit) {
			res.Replayed++
		} else {
			res.Failed++
			rerecorded, err := recordedSince(ctx, store, id, group)
			if err != nil {
				return res, err
			}
			if !rerecorded {
				continue
			}
		}
		for _, e := range group {
			if err := store.Delete(ctx, e.ID); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// recordedSince reports whether the store holds an entry for eventID that
// is not one of prev.
func recordedSince(ctx context.Context, store Store, eventID string, prev []Entry) (bool, error) {
	current, err := store.List(ctx, ListOptions{EventID: eventID})
	if err != nil {
		return false, err
	}
	known := make(map[string]struct{}, len(prev))
	for _, e := range prev {
		known[e.ID] = struct{}{}
	}
	for _, e := range current {
		if _, ok := known[e.ID]; !ok {
			return true, nil
		}
	}
	return false, nil
}

func replayOne(ctx context.Context, c codec.Codec, e Entry, emit EmitFunc) bool {
	evt, err := c.Deserialize(e.Payload)
	if err != nil {
		return false
	}
	return emit(ctx, evt) == nil
}
