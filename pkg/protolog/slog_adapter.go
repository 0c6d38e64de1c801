package protolog

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger, for console
// output during development.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event at Debug level with the relevant attributes for
// its category.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.Uint64("node_id", uint64(event.NodeID)),
		slog.String("role", event.Role.String()),
		slog.String("category", event.Category.String()),
	}
	if event.TxUsername != "" || event.TxTimestamp != 0 {
		attrs = append(attrs,
			slog.String("tx_username", event.TxUsername),
			slog.Uint64("tx_timestamp", event.TxTimestamp),
			slog.String("tx_kind", event.TxKind),
		)
	}

	switch event.Category {
	case CategoryFrame:
		attrs = append(attrs,
			slog.String("direction", event.Direction.String()),
			slog.String("message_type", event.MessageType),
		)
	case CategoryTransition:
		attrs = append(attrs,
			slog.String("from_state", event.FromState),
			slog.String("to_state", event.ToState),
		)
	case CategoryError:
		attrs = append(attrs, slog.String("detail", event.Detail))
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

var _ Logger = (*SlogAdapter)(nil)
