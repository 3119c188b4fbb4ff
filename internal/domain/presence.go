package domain

import "time"

// UserIdentity is the authenticated identity bound to a connection.
// Supplied by the identity provider at announce time and trusted for
// the lifetime of the connection.
type UserIdentity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PresenceEntry records one currently connected identity. Owned
// exclusively by the presence registry; a reconnect replaces the
// entry rather than duplicating it.
type PresenceEntry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ConnectedAt time.Time `json:"connected_at"`
}
