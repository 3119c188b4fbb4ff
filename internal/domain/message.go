package domain

import "time"

// Message is one direct message in a room's append-only log.
// Immutable after append: there is no edit or delete.
// Ordered within a room by (Timestamp, Seq); Seq is assigned by the
// store under the room's append lock so concurrent sends in the same
// millisecond still have a stable order.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	Seq       int64     `json:"seq"`
	FromID    string    `json:"from_id"`
	FromName  string    `json:"from_name"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationSummary is the read-time projection of the latest message
// per room for a user's inbox view. It is never stored as an independent
// entity; it is materialized from the per-room summary index.
type ConversationSummary struct {
	RoomID    string    `json:"room_id"`
	OtherID   string    `json:"other_id"`
	OtherName string    `json:"other_name"`
	LastMsg   Message   `json:"last_message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessagePage is a cursor-paged slice of a room's history, ascending
// by (Timestamp, Seq).
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor int64     `json:"next_cursor"`
	HasMore    bool      `json:"has_more"`
}
