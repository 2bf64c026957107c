package benchmarks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/schema"
)

func quietSystem(opts ...eventcore.Option) *eventcore.System {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return eventcore.NewSystem(append([]eventcore.Option{eventcore.WithLogger(logger)}, opts...)...)
}

func defineBench(b *testing.B, sys *eventcore.System, adapter string, observers int) {
	b.Helper()
	_, err := sys.Define("bench",
		eventcore.WithAdapter(adapter),
		eventcore.WithPayload(
			schema.Attr("id", schema.TypeInt),
			schema.Attr("name", schema.TypeString, schema.Default("")),
		),
	)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < observers; i++ {
		if _, err := sys.Observe("bench", func(*eventcore.Event) error { return nil }, ""); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRawEmit_Sync measures validation plus synchronous delivery.
func BenchmarkRawEmit_Sync(b *testing.B) {
	for _, observers := range []int{1, 10, 100} {
		b.Run(fmt.Sprintf("observers=%d", observers), func(b *testing.B) {
			sys := quietSystem()
			defineBench(b, sys, eventcore.AdapterSync, observers)
			ctx := context.Background()
			payload := map[string]any{"id": 1}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = sys.RawEmit(ctx, "bench", payload, nil)
			}
		})
	}
}

// BenchmarkEmit_Sync measures delivery of a prebuilt event.
func BenchmarkEmit_Sync(b *testing.B) {
	sys := quietSystem()
	defineBench(b, sys, eventcore.AdapterSync, 1)
	evt, err := sys.Managers().NewEvent("bench", map[string]any{"id": 1}, nil)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sys.Emit(ctx, evt)
	}
}

// BenchmarkEmit_Async measures enqueueing on the async adapter.
func BenchmarkEmit_Async(b *testing.B) {
	sys := quietSystem(eventcore.WithAsyncOptions(eventcore.WithQueueSize(1 << 16)))
	defer sys.Close(context.Background())
	defineBench(b, sys, eventcore.AdapterAsync, 1)
	evt, err := sys.Managers().NewEvent("bench", map[string]any{"id": 1}, nil)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sys.Emit(ctx, evt)
	}
}

// BenchmarkEmit_Parallel measures concurrent sync emits.
func BenchmarkEmit_Parallel(b *testing.B) {
	sys := quietSystem()
	defineBench(b, sys, eventcore.AdapterSync, 4)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		payload := map[string]any{"id": 1}
		for pb.Next() {
			_, _ = sys.RawEmit(ctx, "bench", payload, nil)
		}
	})
}
