package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/pkg/jwt"
)

func TestTrustedProvider(t *testing.T) {
	tests := []struct {
		name     string
		announce domain.AnnounceMessage
		wantID   string
		wantName string
		wantErr  error
	}{
		{
			name:     "id and name",
			announce: domain.AnnounceMessage{ID: "u1", Name: "Alice"},
			wantID:   "u1",
			wantName: "Alice",
		},
		{
			name:     "missing name defaults",
			announce: domain.AnnounceMessage{ID: "u1"},
			wantID:   "u1",
			wantName: "Anonymous",
		},
		{
			name:     "blank id rejected",
			announce: domain.AnnounceMessage{ID: "   ", Name: "Alice"},
			wantErr:  domain.ErrNotAuthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := TrustedProvider{}.Verify(context.Background(), tt.announce)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if id.ID != tt.wantID || id.Name != tt.wantName {
				t.Fatalf("identity %+v, want %s/%s", id, tt.wantID, tt.wantName)
			}
		})
	}
}

func TestJWTProviderAcceptsValidToken(t *testing.T) {
	manager := jwt.NewManager("test-secret", "messaging-service", time.Hour)
	token, err := manager.GenerateToken("u1", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	p := NewJWTProvider(manager)
	id, err := p.Verify(context.Background(), domain.AnnounceMessage{Token: token})
	if err != nil {
		t.Fatal(err)
	}
	if id.ID != "u1" || id.Name != "Alice" {
		t.Fatalf("identity %+v", id)
	}
}

func TestJWTProviderIgnoresAnnouncedFields(t *testing.T) {
	manager := jwt.NewManager("test-secret", "messaging-service", time.Hour)
	token, err := manager.GenerateToken("u1", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	// The announced id/name must not override the token claims.
	p := NewJWTProvider(manager)
	id, err := p.Verify(context.Background(), domain.AnnounceMessage{Token: token, ID: "u9", Name: "Eve"})
	if err != nil {
		t.Fatal(err)
	}
	if id.ID != "u1" || id.Name != "Alice" {
		t.Fatalf("claims overridden: %+v", id)
	}
}

func TestJWTProviderRejectsMissingToken(t *testing.T) {
	p := NewJWTProvider(jwt.NewManager("test-secret", "messaging-service", time.Hour))
	if _, err := p.Verify(context.Background(), domain.AnnounceMessage{ID: "u1"}); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}
