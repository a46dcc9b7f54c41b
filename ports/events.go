package ports

import (
	"context"

	"github.com/layer-3/walletsso/core"
)

// EventPublisher forwards lifecycle events to other processes
type EventPublisher interface {
	Publish(ctx context.Context, event core.Event) error
}
