package events

import (
	"context"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
)

// Producer publishes appended messages to the downstream event stream.
// Publishing is best-effort and never affects the send result; the
// conversation store is the durability point, not the stream.
type Producer interface {
	PublishMessage(ctx context.Context, msg *domain.Message) error
	Close() error
}
