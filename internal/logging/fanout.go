package logging

import (
	"context"
	"log/slog"
)

// fanoutHandler duplicates each record across every sink in the chain.
// Level filtering happens per sink inside Handle, so a debug-level ring
// buffer can sit behind an info-level stdout handler.
type fanoutHandler []slog.Handler

func newFanout(sinks ...slog.Handler) fanoutHandler {
	return fanoutHandler(sinks)
}

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range f {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, sink := range f {
		if !sink.Enabled(ctx, r.Level) {
			continue
		}
		// Record carries iteration state, so every sink needs its own copy.
		_ = sink.Handle(ctx, r.Clone())
	}
	return nil
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, sink := range f {
		next[i] = sink.WithAttrs(attrs)
	}
	return next
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, sink := range f {
		next[i] = sink.WithGroup(name)
	}
	return next
}
