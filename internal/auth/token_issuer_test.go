package auth

import (
	"testing"
	"time"

	"github.com/archivelab/bookhaven/internal/users"
)

func newTestIssuer(clock func() time.Time) *TokenIssuer {
	return NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("unit-secret"),
		Issuer:        "bookhaven-auth",
		Audience:      "bookhaven-api",
		TokenTTL:      15 * time.Minute,
		Clock:         clock,
	})
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	issuer := newTestIssuer(func() time.Time { return time.Unix(1_700_000_000, 0) })

	token, expiresIn, err := issuer.IssueToken(Session{Username: "alice", Role: users.RoleAdmin})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if expiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry %d", expiresIn)
	}

	session, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if session.Username != "alice" {
		t.Fatalf("unexpected subject %q", session.Username)
	}
	if !session.IsAdmin() {
		t.Fatalf("expected admin role to survive the round trip")
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	issuer := newTestIssuer(func() time.Time { return now })

	token, _, err := issuer.IssueToken(Session{Username: "alice", Role: users.RoleUser})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	now = now.Add(16 * time.Minute)
	if _, err := issuer.ValidateToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	clock := func() time.Time { return time.Unix(1_700_000_000, 0) }
	issuer := newTestIssuer(clock)
	token, _, err := issuer.IssueToken(Session{Username: "alice", Role: users.RoleUser})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	other := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("different-secret"),
		Issuer:        "bookhaven-auth",
		Audience:      "bookhaven-api",
		Clock:         clock,
	})
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestIssueRequiresUsername(t *testing.T) {
	issuer := newTestIssuer(nil)
	if _, _, err := issuer.IssueToken(Session{Role: users.RoleUser}); err == nil {
		t.Fatalf("expected issue to fail without a username")
	}
}

func TestGuestSession(t *testing.T) {
	guest := GuestSession()
	if guest.Username != "guest" || guest.Role != users.RoleGuest {
		t.Fatalf("unexpected guest session %+v", guest)
	}
	if guest.CanStoreData() || guest.IsAdmin() {
		t.Fatalf("guest session must not hold privileges")
	}
}
