// Package identity resolves an announce frame to the identity the
// connection will be trusted as. The external auth service mints the
// tokens; this side only verifies them.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/dhruvin2968/facebook-messaging/internal/domain"
	"github.com/dhruvin2968/facebook-messaging/pkg/jwt"
)

// Config holds identity verification settings.
type Config struct {
	Required bool   `mapstructure:"required"`
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
}

// Provider verifies an announce and returns the authenticated identity.
type Provider interface {
	Verify(ctx context.Context, announce domain.AnnounceMessage) (*domain.UserIdentity, error)
}

// JWTProvider validates announce tokens with a shared-secret manager.
type JWTProvider struct {
	manager *jwt.Manager
}

func NewJWTProvider(manager *jwt.Manager) *JWTProvider {
	return &JWTProvider{manager: manager}
}

func (p *JWTProvider) Verify(_ context.Context, announce domain.AnnounceMessage) (*domain.UserIdentity, error) {
	if announce.Token == "" {
		return nil, fmt.Errorf("%w: announce carries no token", domain.ErrNotAuthenticated)
	}

	claims, err := p.manager.ValidateToken(announce.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotAuthenticated, err)
	}

	name := claims.Name
	if name == "" {
		name = "Anonymous"
	}
	return &domain.UserIdentity{ID: claims.UserID, Name: name}, nil
}

// TrustedProvider accepts the announced id and name as-is. Development
// only; selected when auth.required is false.
type TrustedProvider struct{}

func (TrustedProvider) Verify(_ context.Context, announce domain.AnnounceMessage) (*domain.UserIdentity, error) {
	id := strings.TrimSpace(announce.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: announce carries no id", domain.ErrNotAuthenticated)
	}

	name := strings.TrimSpace(announce.Name)
	if name == "" {
		name = "Anonymous"
	}
	return &domain.UserIdentity{ID: id, Name: name}, nil
}
