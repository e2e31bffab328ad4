package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	token, err := issuer.Issue("user123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if userID != "user123" {
		t.Fatalf("got subject %q, want user123", userID)
	}
}

func TestTokenIssuerDistinctUsers(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", 0)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	if issuer.ttl != DefaultTokenTTL {
		t.Fatalf("ttl = %v, want default", issuer.ttl)
	}

	first, _ := issuer.Issue("user1")
	second, _ := issuer.Issue("user2")
	if first == second {
		t.Fatalf("expected different tokens for different users")
	}
}

func TestTokenIssuerRejects(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	other, _ := NewTokenIssuer("other-secret", time.Hour)
	foreign, _ := other.Issue("user123")

	expiredIssuer, _ := NewTokenIssuer("test-secret", time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredIssuer.Issue("user123")

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	tests := map[string]string{
		"garbage":       "not-a-token",
		"wrong secret":  foreign,
		"expired":       expired,
		"alg none":      noneToken,
		"empty subject": noSubject,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := issuer.Parse(token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("   ", time.Hour); err == nil {
		t.Fatalf("expected error for blank secret")
	}
}
