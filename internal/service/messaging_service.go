package service

import (
	"context"
	"errors"
	"strings"

	"github.com/dhruvin2968/facebook-messaging/internal/audit"
	"github.com/dhruvin2968/facebook-messaging/internal/conversation"
	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/internal/events"
	"github.com/dhruvin2968/facebook-messaging/internal/hub"
	"github.com/dhruvin2968/facebook-messaging/internal/identity"
	"github.com/dhruvin2968/facebook-messaging/internal/presence"
	"github.com/dhruvin2968/facebook-messaging/internal/profile"
	"github.com/dhruvin2968/facebook-messaging/internal/room"
	"github.com/dhruvin2968/facebook-messaging/pkg/log"
)

type messagingService struct {
	store    MessageStore
	gateway  Gateway
	registry *presence.Registry
	provider identity.Provider
	profiles profile.Directory // nil when no directory is configured
	producer events.Producer   // nil when the event stream is disabled
}

// NewMessagingService creates the orchestrator. profiles and producer
// are optional and may be nil.
func NewMessagingService(
	store MessageStore,
	gateway Gateway,
	registry *presence.Registry,
	provider identity.Provider,
	profiles profile.Directory,
	producer events.Producer,
) MessagingService {
	return &messagingService{
		store:    store,
		gateway:  gateway,
		registry: registry,
		provider: provider,
		profiles: profiles,
		producer: producer,
	}
}

func (s *messagingService) Announce(ctx context.Context, c *hub.Client, announce domain.AnnounceMessage) (*domain.UserIdentity, error) {
	id, err := s.provider.Verify(ctx, announce)
	if err != nil {
		c.Reject()
		audit.LogWithDetail(ctx, audit.ActionRejected, announce.ID, err.Error(), "announce rejected")
		return nil, err
	}

	if !c.Authenticate(*id) {
		return nil, errors.New("connection already authenticated")
	}

	// Last writer wins: the previous connection for this identity is
	// closed; its teardown sees it is no longer bound and leaves the
	// fresh registration alone.
	s.gateway.Bind(c, id.ID)
	s.registry.Register(*id)

	c.OnClose(func() {
		if s.gateway.IsBound(id.ID, c) {
			s.registry.Unregister(id.ID)
		}
	})

	if dir, ok := s.profiles.(profile.Upserter); ok {
		if err := dir.Upsert(ctx, &profile.Profile{UserID: id.ID, DisplayName: id.Name}); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldUserID, id.ID).Msg("profile upsert failed")
		}
	}

	audit.Log(ctx, audit.ActionAnnounce, id.ID, "user announced")
	return id, nil
}

func (s *messagingService) Disconnect(ctx context.Context, c *hub.Client) {
	if id := c.Identity(); id != nil {
		audit.Log(ctx, audit.ActionDisconnect, id.ID, "user disconnected")
	}
}

func (s *messagingService) Send(ctx context.Context, fromID, fromName, toID, text string) (*domain.Message, error) {
	if fromID == toID {
		return nil, domain.ErrSamePair
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyMessage
	}

	roomID, err := room.Derive(fromID, toID)
	if err != nil {
		return nil, err
	}

	// Durability point. On failure nothing is relayed: no at-least-once
	// duplication without persistence.
	msg, err := s.store.Append(ctx, roomID, fromID, fromName, text)
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionSendFailed, fromID, err.Error(), "send failed")
		return nil, err
	}

	// Best-effort relay; an offline recipient reads from the store later.
	s.gateway.Deliver(toID, &domain.MessageEvent{Type: domain.MsgTypeMessage, Message: *msg})

	if s.producer != nil {
		if err := s.producer.PublishMessage(ctx, msg); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("event publish failed")
		}
	}

	audit.LogWithDetail(ctx, audit.ActionSend, fromID, roomID, "message sent")
	return msg, nil
}

func (s *messagingService) SubscribeRoom(_ context.Context, viewerID, roomID string, fn func(domain.Message)) (Subscription, error) {
	if !room.IsParticipant(roomID, viewerID) {
		return nil, domain.ErrNotParticipant
	}
	return s.store.Subscribe(roomID, fn), nil
}

func (s *messagingService) ListConversations(ctx context.Context, viewerID string) ([]domain.ConversationSummary, error) {
	summaries, err := s.store.ListConversations(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	for i := range summaries {
		if summaries[i].OtherName != "" {
			continue
		}
		summaries[i].OtherName = s.resolveName(ctx, summaries[i].OtherID)
	}
	return summaries, nil
}

func (s *messagingService) ListMessages(ctx context.Context, viewerID, roomID string, afterSeq int64, limit int) (*domain.MessagePage, error) {
	if !room.IsParticipant(roomID, viewerID) {
		return nil, domain.ErrNotParticipant
	}
	return s.store.ListMessages(ctx, roomID, afterSeq, limit)
}

func (s *messagingService) OnlineUsers() []domain.PresenceEntry {
	return s.registry.Snapshot()
}

// resolveName fills a display name from presence first, then the
// profile directory. Either may miss; messaging works with the id alone.
func (s *messagingService) resolveName(ctx context.Context, userID string) string {
	for _, e := range s.registry.Snapshot() {
		if e.ID == userID {
			return e.Name
		}
	}
	if s.profiles != nil {
		if p, err := s.profiles.GetProfile(ctx, userID); err == nil {
			return p.DisplayName
		}
	}
	return ""
}

// storeAdapter narrows *conversation.Store to the MessageStore interface.
type storeAdapter struct {
	store *conversation.Store
}

// WrapStore adapts the concrete conversation store for the service.
func WrapStore(store *conversation.Store) MessageStore {
	return storeAdapter{store: store}
}

func (a storeAdapter) Append(ctx context.Context, roomID, fromID, fromName, text string) (*domain.Message, error) {
	return a.store.Append(ctx, roomID, fromID, fromName, text)
}

func (a storeAdapter) Subscribe(roomID string, fn func(domain.Message)) Subscription {
	return a.store.Subscribe(roomID, fn)
}

func (a storeAdapter) ListMessages(ctx context.Context, roomID string, afterSeq int64, limit int) (*domain.MessagePage, error) {
	return a.store.ListMessages(ctx, roomID, afterSeq, limit)
}

func (a storeAdapter) ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error) {
	return a.store.ListConversations(ctx, userID)
}
