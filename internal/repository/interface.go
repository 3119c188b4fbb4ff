package repository

import (
	"context"
	"errors"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
)

var ErrNotFound = errors.New("not found")

// MessageRepository is the durable, ordered message log plus the
// materialized last-message-per-room index. Append persists the message
// and updates the summary row(s) for both participants in one storage
// operation; the caller has already assigned Seq under the room's
// append lock.
type MessageRepository interface {
	// Append durably commits msg and updates the room summary.
	// participants are the two room members in canonical order.
	Append(ctx context.Context, msg *domain.Message, participants [2]string) error

	// ListMessages returns up to limit messages of roomID with
	// Seq > afterSeq, ascending. limit <= 0 means no limit.
	ListMessages(ctx context.Context, roomID string, afterSeq int64, limit int) ([]domain.Message, error)

	// ListConversations returns one summary per room where userID is a
	// participant and at least one message exists, sorted by UpdatedAt
	// descending.
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)

	// LatestSeq returns the highest sequence committed for roomID, or 0
	// when the room has no messages.
	LatestSeq(ctx context.Context, roomID string) (int64, error)

	Close() error
}
