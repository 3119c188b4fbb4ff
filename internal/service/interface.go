package service

import (
	"context"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/internal/hub"
)

// Subscription is a cancelable room-feed handle.
type Subscription interface {
	Cancel()
}

// MessagingService is the single orchestration point for the protocol:
// announce, send, subscribe, and the read-side listings. Relay over the
// live transport is always a side effect of persistence, never a
// substitute for it.
type MessagingService interface {
	// Announce authenticates a connection, binds it in the gateway, and
	// registers presence. A failure leaves the connection rejected.
	Announce(ctx context.Context, c *hub.Client, announce domain.AnnounceMessage) (*domain.UserIdentity, error)

	// Disconnect releases everything the connection acquired.
	Disconnect(ctx context.Context, c *hub.Client)

	// Send validates, persists, and best-effort relays one message.
	// The returned message carries the server timestamp and sequence.
	Send(ctx context.Context, fromID, fromName, toID, text string) (*domain.Message, error)

	// SubscribeRoom attaches fn to a room's feed after checking that
	// viewerID participates in it.
	SubscribeRoom(ctx context.Context, viewerID, roomID string, fn func(domain.Message)) (Subscription, error)

	// ListConversations returns viewerID's inbox, newest first.
	ListConversations(ctx context.Context, viewerID string) ([]domain.ConversationSummary, error)

	// ListMessages returns a page of roomID's history for a participant.
	ListMessages(ctx context.Context, viewerID, roomID string, afterSeq int64, limit int) (*domain.MessagePage, error)

	// OnlineUsers returns the current presence snapshot.
	OnlineUsers() []domain.PresenceEntry
}

// MessageStore is the slice of the conversation store the service uses.
type MessageStore interface {
	Append(ctx context.Context, roomID, fromID, fromName, text string) (*domain.Message, error)
	Subscribe(roomID string, fn func(domain.Message)) Subscription
	ListMessages(ctx context.Context, roomID string, afterSeq int64, limit int) (*domain.MessagePage, error)
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
}

// Gateway is the slice of the hub the service uses for relay.
type Gateway interface {
	Bind(c *hub.Client, userID string) *hub.Client
	IsBound(userID string, c *hub.Client) bool
	Deliver(userID string, message interface{})
	IsConnected(userID string) bool
}
