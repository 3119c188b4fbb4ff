package domain

import "errors"

var (
	// ErrSamePair is returned when a room or send pairs an identity
	// with itself.
	ErrSamePair = errors.New("sender and recipient are the same user")

	// ErrEmptyMessage is returned when message text trims to empty.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrStorageUnavailable wraps append failures: the message was not
	// durably committed and nothing was relayed, so a retry is safe.
	ErrStorageUnavailable = errors.New("message storage unavailable")

	// ErrNotAuthenticated is returned when a transport event arrives
	// before a valid announce.
	ErrNotAuthenticated = errors.New("connection not authenticated")

	// ErrSpoofedSender is returned when a message event names a sender
	// other than the connection's authenticated identity.
	ErrSpoofedSender = errors.New("sender does not match authenticated identity")

	// ErrInvalidRoomID is returned when a room id cannot be parsed
	// back into its two participants.
	ErrInvalidRoomID = errors.New("malformed room id")

	// ErrNotParticipant is returned when a user reads a room they are
	// not a member of.
	ErrNotParticipant = errors.New("user is not a participant of this room")

	// ErrInvalidMessage is returned when an inbound frame cannot be
	// decoded or names no known type.
	ErrInvalidMessage = errors.New("invalid message")
)

// Wire error codes. "not sent" codes are retry-safe; a successful ack
// means the message is durable and must not be retried.
const (
	ErrCodeSamePair         = "SAME_PAIR"
	ErrCodeEmptyMessage     = "EMPTY_MESSAGE"
	ErrCodeStorage          = "STORAGE_UNAVAILABLE"
	ErrCodeNotAuthenticated = "NOT_AUTHENTICATED"
	ErrCodeSpoofedSender    = "SPOOFED_SENDER"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeBadRequest       = "BAD_REQUEST"
)

// CodeFor maps a domain error to its wire code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrSamePair):
		return ErrCodeSamePair
	case errors.Is(err, ErrEmptyMessage):
		return ErrCodeEmptyMessage
	case errors.Is(err, ErrStorageUnavailable):
		return ErrCodeStorage
	case errors.Is(err, ErrNotAuthenticated):
		return ErrCodeNotAuthenticated
	case errors.Is(err, ErrSpoofedSender):
		return ErrCodeSpoofedSender
	case errors.Is(err, ErrNotParticipant):
		return ErrCodeForbidden
	default:
		return ErrCodeBadRequest
	}
}
