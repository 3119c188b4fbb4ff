package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewManager("test-secret", "messaging-service", time.Hour)

	token, err := m.GenerateToken("u1", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "u1" || claims.Name != "Alice" {
		t.Fatalf("claims %+v, want u1/Alice", claims)
	}
	if claims.Issuer != "messaging-service" {
		t.Fatalf("issuer %q", claims.Issuer)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	minted := NewManager("secret-a", "messaging-service", time.Hour)
	verifier := NewManager("secret-b", "messaging-service", time.Hour)

	token, err := minted.GenerateToken("u1", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := verifier.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m := NewManager("test-secret", "messaging-service", -time.Minute)

	token, err := m.GenerateToken("u1", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := NewManager("test-secret", "messaging-service", time.Hour)
	if _, err := m.ValidateToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
