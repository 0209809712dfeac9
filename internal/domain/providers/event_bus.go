package providers

import (
	"context"

	"github.com/zatekoja/radreference/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.CardEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.CardEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelCardUpdates is the channel for all helper card updates
	EventChannelCardUpdates = "cards:updates"

	// EventChannelUserPrefix is the prefix for per-user channels
	EventChannelUserPrefix = "cards:user:"
)

// GetUserChannel returns the channel name for a specific user's card events
func GetUserChannel(userID string) string {
	return EventChannelUserPrefix + userID
}
