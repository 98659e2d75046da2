package app

import (
	"errors"
	"testing"
	"time"

	"meridian/pkg/session"
)

func TestSignUpAndSignIn(t *testing.T) {
	a, _, _ := newTestApp(t)

	user, access, refresh, err := a.SignUp("client@example.com", "portal2026")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatalf("expected token pair")
	}
	if got, ok := a.UserFromToken(access); !ok || got.ID != user.ID {
		t.Fatalf("resolve access token: ok=%v got=%+v", ok, got)
	}

	if _, _, _, err := a.SignUp("client@example.com", "portal2026"); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
	if _, _, _, err := a.SignUp("weak@example.com", "short"); err == nil {
		t.Fatalf("expected weak password rejection")
	}

	if _, _, _, err := a.SignIn("client@example.com", "wrong-pass-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, _, _, err := a.SignIn("ghost@example.com", "portal2026"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if got, _, _, err := a.SignIn("Client@Example.com", "portal2026"); err != nil || got.ID != user.ID {
		t.Fatalf("case-insensitive login failed: got=%+v err=%v", got, err)
	}
}

func TestRefreshRotationAndReplay(t *testing.T) {
	a, _, _ := newTestApp(t)

	user, _, refresh1, err := a.SignUp("client@example.com", "portal2026")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	got, access2, refresh2, err := a.Refresh(refresh1)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got.ID != user.ID || access2 == "" || refresh2 == refresh1 {
		t.Fatalf("unexpected rotation result")
	}

	// Replaying the rotated token revokes the whole family.
	if _, _, _, err := a.Refresh(refresh1); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected replay rejection, got %v", err)
	}
	if _, _, _, err := a.Refresh(refresh2); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected family revocation, got %v", err)
	}
}

func TestSignOutRevokesAccessToken(t *testing.T) {
	a, _, _ := newTestApp(t)

	_, access, refresh, err := a.SignUp("client@example.com", "portal2026")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	a.SignOut(access, refresh)

	if _, ok := a.UserFromToken(access); ok {
		t.Fatalf("revoked access token still authenticates")
	}
	if _, _, _, err := a.Refresh(refresh); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected revoked refresh token, got %v", err)
	}
}

func TestSignOutAllRevokesEveryDevice(t *testing.T) {
	a, _, _ := newTestApp(t)

	_, laptopAccess, laptopRefresh, err := a.SignUp("client@example.com", "portal2026")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, phoneAccess, phoneRefresh, err := a.SignIn("client@example.com", "portal2026")
	if err != nil {
		t.Fatalf("second sign-in: %v", err)
	}

	a.SignOutAll(laptopAccess)

	if _, ok := a.UserFromToken(laptopAccess); ok {
		t.Fatalf("revoked access token still authenticates")
	}
	if _, _, _, err := a.Refresh(laptopRefresh); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected revoked refresh token on signing device, got %v", err)
	}
	if _, _, _, err := a.Refresh(phoneRefresh); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected revoked refresh token on second device, got %v", err)
	}
	// Access tokens on other devices stay valid until they expire; only the
	// refresh chains are severed.
	if _, ok := a.UserFromToken(phoneAccess); !ok {
		t.Fatalf("second device access token revoked unexpectedly")
	}
}

func TestAuthEventsPublished(t *testing.T) {
	a, _, _ := newTestApp(t)
	events, cancel := a.Events().Subscribe(8)
	defer cancel()

	_, access, refresh, err := a.SignUp("client@example.com", "portal2026")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, _, _, err = a.Refresh(refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	a.SignOut(access, "")

	want := []session.EventKind{session.EventSignedIn, session.EventTokenRefreshed, session.EventSignedOut}
	for _, kind := range want {
		select {
		case ev := <-events:
			if ev.Kind != kind {
				t.Fatalf("expected %s event, got %s", kind, ev.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func TestInitClientIdempotent(t *testing.T) {
	a, mem, _ := newTestApp(t)
	user, _, _, err := a.SignUp("client@example.com", "portal2026")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if err := a.InitClient(user.ID, user.Email, ""); err != nil {
		t.Fatalf("first init: %v", err)
	}
	if err := a.InitClient(user.ID, user.Email, "Different Name"); err != nil {
		t.Fatalf("second init: %v", err)
	}
	client, ok, err := mem.GetClientByUserID(user.ID)
	if err != nil || !ok {
		t.Fatalf("client row: ok=%v err=%v", ok, err)
	}
	// Name defaults to the email local part, and the second call is a no-op.
	if client.Name != "client" {
		t.Fatalf("expected first row to win, got name %q", client.Name)
	}

	var verr *ValidationError
	if err := a.InitClient("", "client@example.com", ""); !errors.As(err, &verr) {
		t.Fatalf("expected validation error for missing user_id, got %v", err)
	}
}
