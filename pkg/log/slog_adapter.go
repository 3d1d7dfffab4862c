package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger.
// Useful for development when you want to see decode steps in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level. Error events are
// written at Warn.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("kind", event.Kind.String()),
		slog.String("field", event.Field),
		slog.Int("start", event.Start),
		slog.Int("end", event.End),
	}

	if event.Source != "" {
		attrs = append(attrs, slog.String("source", event.Source))
	}

	level := slog.LevelDebug
	switch event.Kind {
	case KindEncodingByte:
		attrs = append(attrs,
			slog.String("value", event.Value),
			slog.Any("bits", event.Bits),
		)
	case KindError:
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", event.Error))
	default:
		attrs = append(attrs,
			slog.String("wire_type", event.WireType),
			slog.String("value", event.Value),
		)
	}

	a.logger.LogAttrs(context.Background(), level, "decode", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
