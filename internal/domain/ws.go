package domain

// WebSocket message types from client.
const (
	MsgTypeAnnounce    = "announce"
	MsgTypeSendMessage = "send_message"
	MsgTypeSubscribe   = "subscribe"
	MsgTypeUnsubscribe = "unsubscribe"
	MsgTypePing        = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeAnnounced  = "announced"
	MsgTypePresence   = "presence"
	MsgTypeMessage    = "message"
	MsgTypeMessageAck = "message_ack"
	MsgTypeError      = "error"
	MsgTypePong       = "pong"
)

// BaseMessage is the envelope used to sniff the type of an inbound frame.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server

// AnnounceMessage binds an identity to the connection. With auth enabled
// the token is validated and Id/Name are taken from its claims; Id and
// Name are only trusted directly when auth is disabled.
type AnnounceMessage struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
}

// SendMessage asks the router to persist and relay one direct message.
// FromID, when present, must match the connection's authenticated
// identity; a mismatch drops the frame. ClientRef is an optional
// client-side correlation id echoed in the ack.
type SendMessage struct {
	Type      string `json:"type"`
	FromID    string `json:"from_id,omitempty"`
	ToID      string `json:"to_id"`
	Text      string `json:"text"`
	ClientRef string `json:"client_ref,omitempty"`
}

// SubscribeMessage attaches the connection to a room's new-message feed.
type SubscribeMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// Server -> Client

// AnnouncedMessage confirms authentication.
type AnnouncedMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PresenceMessage carries the full online snapshot. Sent to every
// connection whenever presence changes.
type PresenceMessage struct {
	Type   string          `json:"type"`
	Online []PresenceEntry `json:"online"`
}

// MessageEvent pushes one persisted message to a live connection.
type MessageEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// MessageAck confirms a send back to the sender with the persisted
// message, so the sender reconciles against the authoritative log
// instead of its optimistic echo.
type MessageAck struct {
	Type      string  `json:"type"`
	ClientRef string  `json:"client_ref,omitempty"`
	Message   Message `json:"message"`
}

// ErrorMessage reports a failed operation. Retryable is true for
// "not sent" failures and false once a message has been persisted.
type ErrorMessage struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	ClientRef string `json:"client_ref,omitempty"`
	Retryable bool   `json:"retryable"`
}

// NewErrorMessage creates an error frame for the given domain error.
func NewErrorMessage(err error, clientRef string) *ErrorMessage {
	code := CodeFor(err)
	return &ErrorMessage{
		Type:      MsgTypeError,
		Code:      code,
		Message:   err.Error(),
		ClientRef: clientRef,
		Retryable: code != ErrCodeSpoofedSender,
	}
}
