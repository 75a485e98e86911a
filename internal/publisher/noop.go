package publisher

import (
	"context"

	"leadwatch/internal/lead"
)

// Noop discards match events. It is the default when no message broker
// is configured.
type Noop struct{}

// NewNoop creates a Noop publisher.
func NewNoop() Noop { return Noop{} }

// PublishMatch discards the event.
func (Noop) PublishMatch(context.Context, lead.MatchEvent) error { return nil }

// Close is a no-op.
func (Noop) Close() error { return nil }
