// Package room derives the canonical conversation key for a pair of users.
//
// The key is computable by either participant without a lookup: escape both
// ids, sort, join. Escaping the separator before joining keeps distinct
// pairs collision-free even when an id contains the separator itself.
package room

import (
	"strings"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
)

const separator = "_"

var escaper = strings.NewReplacer("%", "%25", separator, "%5F")

var unescaper = strings.NewReplacer("%5F", separator, "%25", "%")

// Derive returns the room id for the conversation between a and b.
// It is pure, total, and commutative: Derive(a, b) == Derive(b, a).
// Pairing an identity with itself is rejected.
func Derive(a, b string) (string, error) {
	if a == b {
		return "", domain.ErrSamePair
	}

	ea, eb := escaper.Replace(a), escaper.Replace(b)
	if ea > eb {
		ea, eb = eb, ea
	}
	return ea + separator + eb, nil
}

// Parse inverts Derive, returning the two participant ids.
func Parse(roomID string) (string, string, error) {
	parts := strings.Split(roomID, separator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", domain.ErrInvalidRoomID
	}
	return unescaper.Replace(parts[0]), unescaper.Replace(parts[1]), nil
}

// OtherParticipant returns the participant of roomID that is not selfID.
func OtherParticipant(roomID, selfID string) (string, error) {
	a, b, err := Parse(roomID)
	if err != nil {
		return "", err
	}
	if a == selfID {
		return b, nil
	}
	if b == selfID {
		return a, nil
	}
	return "", domain.ErrInvalidRoomID
}

// IsParticipant reports whether userID is one of roomID's two participants.
func IsParticipant(roomID, userID string) bool {
	a, b, err := Parse(roomID)
	if err != nil {
		return false
	}
	return a == userID || b == userID
}
