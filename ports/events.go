package ports

import (
	"context"

	"github.com/layer-3/tollgate/core"
)

// EventPublisher publishes session lifecycle events
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event core.SessionEvent) error
}
