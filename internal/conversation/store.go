// Package conversation is the durable, ordered message log per room,
// with derived per-user conversation summaries and per-room new-message
// subscriptions. It is the single source of truth for history; the live
// transport is only ever a best-effort accelerator in front of it.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dhruvin2968/facebook-messaging/internal/cache"
	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/internal/repository"
	"github.com/dhruvin2968/facebook-messaging/internal/room"
	"github.com/dhruvin2968/facebook-messaging/pkg/log"
)

// Config holds store tuning.
type Config struct {
	AppendTimeout time.Duration `mapstructure:"append_timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	PageLimit     int           `mapstructure:"page_limit"`
}

// Subscription is a handle for one subscriber of one room's feed.
// Cancel is idempotent and safe to call from connection teardown.
type Subscription struct {
	store  *Store
	roomID string
	id     int64
}

// Cancel detaches the subscriber. No further callbacks fire after
// Cancel returns.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.store.unsubscribe(s.roomID, s.id)
}

// Callback receives each newly appended message of a subscribed room,
// in append order. Callbacks must not block and must not re-enter the
// store for the same room.
type Callback = func(msg domain.Message)

type roomState struct {
	mu      sync.Mutex
	seq     int64
	seqInit bool
	subs    map[int64]Callback
	nextSub int64
}

// Store coordinates appends, ordering, notifications, and cached reads
// over a MessageRepository. Appends to the same room are serialized by a
// per-room lock; different rooms proceed in parallel.
type Store struct {
	repo  repository.MessageRepository
	cache cache.ConversationCache // nil when caching is disabled
	cfg   Config

	mu    sync.Mutex
	rooms map[string]*roomState

	sf    singleflight.Group
	clock func() time.Time
}

// NewStore creates a conversation store. cache may be nil.
func NewStore(repo repository.MessageRepository, c cache.ConversationCache, cfg Config) *Store {
	if cfg.AppendTimeout <= 0 {
		cfg.AppendTimeout = 5 * time.Second
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 50
	}
	return &Store{
		repo:  repo,
		cache: c,
		cfg:   cfg,
		rooms: make(map[string]*roomState),
		clock: time.Now,
	}
}

func (s *Store) room(roomID string) *roomState {
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.rooms[roomID]
	if !ok {
		rs = &roomState{subs: make(map[int64]Callback)}
		s.rooms[roomID] = rs
	}
	return rs
}

// Append durably commits one message to roomID's log and notifies the
// room's subscribers in commit order. The append is the durability
// point: on error nothing was stored and nothing is notified, so the
// caller may retry safely.
func (s *Store) Append(ctx context.Context, roomID, fromID, fromName, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}

	a, b, err := room.Parse(roomID)
	if err != nil {
		return nil, err
	}
	participants := [2]string{a, b}

	rs := s.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.AppendTimeout)
	defer cancel()

	if !rs.seqInit {
		seq, err := s.repo.LatestSeq(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		rs.seq = seq
		rs.seqInit = true
	}

	msg := domain.Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Seq:       rs.seq + 1,
		FromID:    fromID,
		FromName:  fromName,
		Text:      text,
		Timestamp: s.clock().UTC(),
	}

	if err := s.repo.Append(ctx, &msg, participants); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	rs.seq = msg.Seq

	s.invalidate(roomID, participants)

	// Subscribers are notified under the room lock, so per-room delivery
	// order always matches commit order.
	for _, fn := range rs.subs {
		fn(msg)
	}

	return &msg, nil
}

// Subscribe attaches fn to roomID's new-message feed. Multiple
// concurrent subscribers per room are supported.
func (s *Store) Subscribe(roomID string, fn Callback) *Subscription {
	rs := s.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.nextSub++
	id := rs.nextSub
	rs.subs[id] = fn
	return &Subscription{store: s, roomID: roomID, id: id}
}

func (s *Store) unsubscribe(roomID string, id int64) {
	rs := s.room(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.subs, id)
}

// ListMessages returns roomID's history ascending by (timestamp, seq),
// starting after afterSeq. Idempotent and safe to call repeatedly, which
// is what reconnect-and-replay relies on.
func (s *Store) ListMessages(ctx context.Context, roomID string, afterSeq int64, limit int) (*domain.MessagePage, error) {
	if limit <= 0 || limit > s.cfg.PageLimit {
		limit = s.cfg.PageLimit
	}

	if s.cache == nil {
		return s.fetchMessages(ctx, roomID, afterSeq, limit)
	}

	key := s.cache.HistoryKey(roomID, afterSeq, limit)
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if page, err := s.cache.GetHistory(ctx, key); err == nil {
			return page, nil
		} else if err != cache.ErrCacheMiss {
			log.Ctx(ctx).Warn().Err(err).Msg("history cache get failed")
		}

		page, err := s.fetchMessages(ctx, roomID, afterSeq, limit)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetHistory(ctx, roomID, key, page, s.cfg.CacheTTL); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("history cache set failed")
		}
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.MessagePage), nil
}

func (s *Store) fetchMessages(ctx context.Context, roomID string, afterSeq int64, limit int) (*domain.MessagePage, error) {
	// One extra row decides HasMore.
	messages, err := s.repo.ListMessages(ctx, roomID, afterSeq, limit+1)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	var nextCursor int64
	if len(messages) > 0 {
		nextCursor = messages[len(messages)-1].Seq
	}

	return &domain.MessagePage{
		Messages:   messages,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListConversations returns userID's inbox: one summary per room the
// user participates in with at least one message, newest first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	if s.cache == nil {
		return s.fetchConversations(ctx, userID)
	}

	key := "conversations:" + userID
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if summaries, err := s.cache.GetConversations(ctx, userID); err == nil {
			return summaries, nil
		} else if err != cache.ErrCacheMiss {
			log.Ctx(ctx).Warn().Err(err).Msg("conversations cache get failed")
		}

		summaries, err := s.fetchConversations(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetConversations(ctx, userID, summaries, s.cfg.CacheTTL); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("conversations cache set failed")
		}
		return summaries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.ConversationSummary), nil
}

func (s *Store) fetchConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	summaries, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return summaries, nil
}

func (s *Store) invalidate(roomID string, participants [2]string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.cache.InvalidateRoom(ctx, roomID, participants); err != nil {
		log.L().Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("cache invalidation failed")
	}
}

// Close releases the repository and cache.
func (s *Store) Close() error {
	var firstErr error
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			firstErr = err
		}
	}
	if err := s.repo.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
