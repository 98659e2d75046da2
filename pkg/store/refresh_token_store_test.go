package store

import (
	"errors"
	"testing"
	"time"
)

func mustToken(t *testing.T, s *MemoryRefreshTokenStore, userID string) string {
	t.Helper()
	token, err := s.NewToken(userID, time.Minute)
	if err != nil {
		t.Fatalf("new token for %s: %v", userID, err)
	}
	if token == "" {
		t.Fatalf("empty token for %s", userID)
	}
	return token
}

func TestRefreshTokenRotationChain(t *testing.T) {
	s := NewMemoryRefreshTokenStore()
	token := mustToken(t, s, "acct-1")

	// Each rotation invalidates the old token and keeps the user binding.
	for i := 0; i < 3; i++ {
		userID, next, err := s.RotateToken(token, time.Minute)
		if err != nil {
			t.Fatalf("rotation %d: %v", i+1, err)
		}
		if userID != "acct-1" {
			t.Fatalf("rotation %d resolved user %q", i+1, userID)
		}
		if next == token {
			t.Fatalf("rotation %d returned the same token", i+1)
		}
		token = next
	}

	if err := s.DeleteToken(token); err != nil {
		t.Fatalf("delete token: %v", err)
	}
	if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("rotate after delete = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRefreshTokenReplayRevokesFamily(t *testing.T) {
	s := NewMemoryRefreshTokenStore()
	stale := mustToken(t, s, "acct-2")
	_, current, err := s.RotateToken(stale, time.Minute)
	if err != nil {
		t.Fatalf("first rotate: %v", err)
	}

	if _, _, err := s.RotateToken(stale, time.Minute); !errors.Is(err, ErrRefreshTokenReplay) {
		t.Fatalf("replaying stale token = %v, want ErrRefreshTokenReplay", err)
	}
	// The legitimate successor dies with the family.
	if _, _, err := s.RotateToken(current, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("successor after replay = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRefreshTokenExpiry(t *testing.T) {
	s := NewMemoryRefreshTokenStore()
	token, err := s.NewToken("acct-3", time.Millisecond)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("rotate expired token = %v, want ErrInvalidRefreshToken", err)
	}
}

func TestRefreshTokenRevokeUserKillsAllSessions(t *testing.T) {
	s := NewMemoryRefreshTokenStore()
	first := mustToken(t, s, "acct-4")
	second := mustToken(t, s, "acct-4")
	other := mustToken(t, s, "acct-5")

	if err := s.RevokeUserRefreshTokens("acct-4"); err != nil {
		t.Fatalf("revoke user tokens: %v", err)
	}
	for _, token := range []string{first, second} {
		if _, _, err := s.RotateToken(token, time.Minute); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("token survived user revoke: %v", err)
		}
	}
	// Another account's token is untouched.
	if userID, _, err := s.RotateToken(other, time.Minute); err != nil || userID != "acct-5" {
		t.Fatalf("unrelated token broken by revoke: user=%q err=%v", userID, err)
	}
}
