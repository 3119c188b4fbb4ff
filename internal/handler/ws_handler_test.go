package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/internal/hub"
	"github.com/dhruvin2968/facebook-messaging/internal/identity"
	"github.com/dhruvin2968/facebook-messaging/internal/presence"
	"github.com/dhruvin2968/facebook-messaging/internal/service"
)

type stubStore struct {
	mu  sync.Mutex
	seq int64
}

func (s *stubStore) Append(_ context.Context, roomID, fromID, fromName, text string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return &domain.Message{
		ID:        "m",
		RoomID:    roomID,
		Seq:       s.seq,
		FromID:    fromID,
		FromName:  fromName,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}, nil
}

type stubSub struct{}

func (stubSub) Cancel() {}

func (s *stubStore) Subscribe(string, func(domain.Message)) service.Subscription { return stubSub{} }

func (s *stubStore) ListMessages(context.Context, string, int64, int) (*domain.MessagePage, error) {
	return &domain.MessagePage{}, nil
}

func (s *stubStore) ListConversations(context.Context, string) ([]domain.ConversationSummary, error) {
	return nil, nil
}

func newTestEndpoint(t *testing.T) string {
	t.Helper()

	h := hub.NewHub()
	go h.Run()
	t.Cleanup(h.Stop)

	registry := presence.NewRegistry()
	svc := service.NewMessagingService(&stubStore{}, h, registry, identity.TrustedProvider{}, nil, nil)

	wsCfg := hub.Config{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 1 << 16,
	}
	wsHandler := NewWSHandler(h, svc, wsCfg)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", wsHandler.HandleWebSocket)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, v interface{}) error {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func announceAs(t *testing.T, conn *websocket.Conn, id, name string) {
	t.Helper()
	if err := conn.WriteJSON(map[string]string{"type": domain.MsgTypeAnnounce, "id": id, "name": name}); err != nil {
		t.Fatal(err)
	}

	var announced domain.AnnouncedMessage
	if err := readFrame(t, conn, &announced); err != nil {
		t.Fatalf("no announced frame: %v", err)
	}
	if announced.Type != domain.MsgTypeAnnounced || announced.ID != id {
		t.Fatalf("unexpected announced frame %+v", announced)
	}

	var snapshot domain.PresenceMessage
	if err := readFrame(t, conn, &snapshot); err != nil {
		t.Fatalf("no presence snapshot: %v", err)
	}
	if snapshot.Type != domain.MsgTypePresence {
		t.Fatalf("expected presence snapshot, got %+v", snapshot)
	}
}

func TestAnnounceRoundTrip(t *testing.T) {
	url := newTestEndpoint(t)
	conn := dialWS(t, url)

	announceAs(t, conn, "u1", "Alice")
}

func TestRejectedAnnounceClosesConnection(t *testing.T) {
	url := newTestEndpoint(t)
	conn := dialWS(t, url)

	// No id and no token: the identity cannot be established.
	if err := conn.WriteJSON(map[string]string{"type": domain.MsgTypeAnnounce}); err != nil {
		t.Fatal(err)
	}

	var errFrame domain.ErrorMessage
	if err := readFrame(t, conn, &errFrame); err != nil {
		t.Fatalf("no error frame before close: %v", err)
	}
	if errFrame.Type != domain.MsgTypeError || errFrame.Code != domain.ErrCodeNotAuthenticated {
		t.Fatalf("unexpected frame %+v", errFrame)
	}

	// Rejection is terminal: the server closes the connection.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection still open after terminal rejection")
	}
}

func TestSpoofedSendIsDroppedSilently(t *testing.T) {
	url := newTestEndpoint(t)
	conn := dialWS(t, url)
	announceAs(t, conn, "u1", "Alice")

	// Claimed sender differs from the connection identity: no reply,
	// no relay, connection stays usable.
	spoofed := map[string]string{
		"type": domain.MsgTypeSendMessage, "from_id": "u9", "to_id": "u2",
		"text": "hi", "client_ref": "r1",
	}
	if err := conn.WriteJSON(spoofed); err != nil {
		t.Fatal(err)
	}

	valid := map[string]string{
		"type": domain.MsgTypeSendMessage, "to_id": "u2",
		"text": "hello", "client_ref": "r2",
	}
	if err := conn.WriteJSON(valid); err != nil {
		t.Fatal(err)
	}

	// The next frame must be the ack for the valid send; the spoofed
	// frame produced nothing.
	var ack domain.MessageAck
	if err := readFrame(t, conn, &ack); err != nil {
		t.Fatalf("no ack for valid send: %v", err)
	}
	if ack.Type != domain.MsgTypeMessageAck || ack.ClientRef != "r2" {
		t.Fatalf("unexpected frame %+v, want ack for r2", ack)
	}
	if ack.Message.FromID != "u1" || ack.Message.Text != "hello" {
		t.Fatalf("ack carries wrong message %+v", ack.Message)
	}
}
