package store

import (
	"strings"
	"testing"
	"time"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func newTestSessionStore(t *testing.T, revoker TokenRevoker) *JWTSessionStore {
	t.Helper()
	s, err := NewJWTSessionStore(testJWTSecret, time.Minute, revoker, JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	return s
}

func TestJWTSessionStoreIssueAndResolve(t *testing.T) {
	s := newTestSessionStore(t, nil)

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected a JWT, got %q", token)
	}

	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if !ok || userID != "user-1" {
		t.Fatalf("unexpected resolution: ok=%v user=%q", ok, userID)
	}
}

func TestJWTSessionStoreRejectsGarbageAndForeignTokens(t *testing.T) {
	s := newTestSessionStore(t, nil)

	if _, ok, err := s.GetUserIDByToken("not-a-jwt"); ok || err != nil {
		t.Fatalf("expected garbage token to be rejected, ok=%v err=%v", ok, err)
	}

	other, err := NewJWTSessionStore(strings.Repeat("x", 32), time.Minute, nil, JWTOptions{})
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	foreign, err := other.NewSession("user-1")
	if err != nil {
		t.Fatalf("new foreign session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(foreign); ok {
		t.Fatalf("expected foreign-signed token to be rejected")
	}
}

func TestJWTSessionStoreRevocation(t *testing.T) {
	s := newTestSessionStore(t, NewMemoryTokenRevoker())

	token, err := s.NewSession("user-2")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); ok || err != nil {
		t.Fatalf("expected revoked token to fail resolution, ok=%v err=%v", ok, err)
	}
}

func TestJWTSessionStoreRequiresStrongSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("short", time.Minute, nil, JWTOptions{}); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}
