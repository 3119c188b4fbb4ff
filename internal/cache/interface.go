package cache

import (
	"context"
	"errors"
	"time"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// ConversationCache caches read-side projections: history pages per
// room and conversation lists per user. It is strictly an accelerator;
// a miss or a cache failure always falls through to the repository.
type ConversationCache interface {
	GetHistory(ctx context.Context, key string) (*domain.MessagePage, error)
	SetHistory(ctx context.Context, roomID, key string, page *domain.MessagePage, ttl time.Duration) error
	HistoryKey(roomID string, afterSeq int64, limit int) string

	GetConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	SetConversations(ctx context.Context, userID string, summaries []domain.ConversationSummary, ttl time.Duration) error

	// InvalidateRoom drops every cached projection an append to roomID
	// can stale: the room's history pages and both participants'
	// conversation lists.
	InvalidateRoom(ctx context.Context, roomID string, participants [2]string) error

	Close() error
}
