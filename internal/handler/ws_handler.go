package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dhruvin2968/facebook-messaging/internal/audit"
	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/internal/hub"
	"github.com/dhruvin2968/facebook-messaging/internal/service"
	"github.com/dhruvin2968/facebook-messaging/pkg/log"
)

// WSHandler owns the WebSocket endpoint: upgrade, frame dispatch, and
// per-connection session state (room subscriptions).
type WSHandler struct {
	hub      *hub.Hub
	service  service.MessagingService
	wsConfig hub.Config
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session // by client id
}

// session tracks what one connection has acquired beyond its identity.
type session struct {
	mu   sync.Mutex
	subs map[string]service.Subscription // by room id
}

// NewWSHandler creates the WebSocket handler.
func NewWSHandler(h *hub.Hub, svc service.MessagingService, wsCfg hub.Config) *WSHandler {
	return &WSHandler{
		hub:      h,
		service:  svc,
		wsConfig: wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
		sessions: make(map[string]*session),
	}
}

// HandleWebSocket handles GET /ws: upgrade and pump startup.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsConfig)
	h.hub.Register(client)

	sess := &session{subs: make(map[string]service.Subscription)}
	h.mu.Lock()
	h.sessions[client.ID] = sess
	h.mu.Unlock()

	client.OnClose(func() {
		sess.cancelAll()
		h.mu.Lock()
		delete(h.sessions, client.ID)
		h.mu.Unlock()
		h.service.Disconnect(context.Background(), client)
	})

	go client.WritePump()
	go client.ReadPump(h.handleMessage)
}

func (h *WSHandler) handleMessage(c *hub.Client, message []byte) {
	ctx := context.Background()

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		c.SendJSON(domain.NewErrorMessage(domain.ErrInvalidMessage, ""))
		return
	}

	switch base.Type {
	case domain.MsgTypeAnnounce:
		h.handleAnnounce(ctx, c, message)

	case domain.MsgTypeSendMessage:
		h.handleSend(ctx, c, message)

	case domain.MsgTypeSubscribe:
		h.handleSubscribe(ctx, c, message)

	case domain.MsgTypeUnsubscribe:
		h.handleUnsubscribe(c, message)

	case domain.MsgTypePing:
		c.SendJSON(map[string]string{"type": domain.MsgTypePong})

	default:
		c.SendJSON(domain.NewErrorMessage(domain.ErrInvalidMessage, ""))
	}
}

func (h *WSHandler) handleAnnounce(ctx context.Context, c *hub.Client, message []byte) {
	var msg domain.AnnounceMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.SendJSON(domain.NewErrorMessage(domain.ErrInvalidMessage, ""))
		return
	}

	id, err := h.service.Announce(ctx, c, msg)
	if err != nil {
		// Rejection is terminal: the error frame drains through the
		// write pump, then the connection closes.
		c.SendJSON(domain.NewErrorMessage(err, ""))
		h.hub.Unregister(c)
		return
	}

	c.SendJSON(&domain.AnnouncedMessage{Type: domain.MsgTypeAnnounced, ID: id.ID, Name: id.Name})
	// The announce response carries the current snapshot so a fresh
	// connection does not wait for the next presence change.
	c.SendJSON(&domain.PresenceMessage{Type: domain.MsgTypePresence, Online: h.service.OnlineUsers()})
}

func (h *WSHandler) handleSend(ctx context.Context, c *hub.Client, message []byte) {
	var msg domain.SendMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.SendJSON(domain.NewErrorMessage(domain.ErrInvalidMessage, ""))
		return
	}

	id := c.Identity()
	if id == nil {
		c.SendJSON(domain.NewErrorMessage(domain.ErrNotAuthenticated, msg.ClientRef))
		return
	}

	// A claimed sender other than the authenticated identity is dropped
	// without a reply; the connection stays open for a clean retry.
	if msg.FromID != "" && msg.FromID != id.ID {
		audit.LogWithDetail(ctx, audit.ActionSpoofDropped, id.ID, msg.FromID, "spoofed send dropped")
		return
	}

	persisted, err := h.service.Send(ctx, id.ID, id.Name, msg.ToID, msg.Text)
	if err != nil {
		c.SendJSON(domain.NewErrorMessage(err, msg.ClientRef))
		return
	}

	c.SendJSON(&domain.MessageAck{Type: domain.MsgTypeMessageAck, ClientRef: msg.ClientRef, Message: *persisted})
}

func (h *WSHandler) handleSubscribe(ctx context.Context, c *hub.Client, message []byte) {
	var msg domain.SubscribeMessage
	if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == "" {
		c.SendJSON(domain.NewErrorMessage(domain.ErrInvalidMessage, ""))
		return
	}

	id := c.Identity()
	if id == nil {
		c.SendJSON(domain.NewErrorMessage(domain.ErrNotAuthenticated, ""))
		return
	}

	sess := h.session(c.ID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	_, already := sess.subs[msg.RoomID]
	sess.mu.Unlock()
	if already {
		return
	}

	sub, err := h.service.SubscribeRoom(ctx, id.ID, msg.RoomID, func(m domain.Message) {
		c.SendJSON(&domain.MessageEvent{Type: domain.MsgTypeMessage, Message: m})
	})
	if err != nil {
		c.SendJSON(domain.NewErrorMessage(err, ""))
		return
	}

	sess.mu.Lock()
	sess.subs[msg.RoomID] = sub
	sess.mu.Unlock()
}

func (h *WSHandler) handleUnsubscribe(c *hub.Client, message []byte) {
	var msg domain.SubscribeMessage
	if err := json.Unmarshal(message, &msg); err != nil || msg.RoomID == "" {
		c.SendJSON(domain.NewErrorMessage(domain.ErrInvalidMessage, ""))
		return
	}

	sess := h.session(c.ID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	sub, ok := sess.subs[msg.RoomID]
	delete(sess.subs, msg.RoomID)
	sess.mu.Unlock()

	if ok {
		sub.Cancel()
	}
}

func (h *WSHandler) session(clientID string) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[clientID]
}

func (s *session) cancelAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]service.Subscription)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}
