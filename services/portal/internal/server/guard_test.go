package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meridian/pkg/domain"
	"meridian/pkg/store"
	"meridian/services/portal/internal/app"
)

var dashboardPaths = []string{
	"/client/dashboard",
	"/client/dashboard/projects",
	"/client/dashboard/projects/proj-1",
	"/client/dashboard/invoices",
	"/client/dashboard/assets",
	"/client/dashboard/metrics",
	"/client/dashboard/tasks",
	"/client/dashboard/settings",
	"/client/dashboard/support",
}

func getPage(t *testing.T, h http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func assertLoginRedirect(t *testing.T, rec *httptest.ResponseRecorder, path string) {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("%s status = %d, want 302", path, rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != LoginPath {
		t.Fatalf("%s redirect location = %q, want %q", path, loc, LoginPath)
	}
}

func TestDashboardRedirectsWithoutSession(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()
	for _, path := range dashboardPaths {
		assertLoginRedirect(t, getPage(t, router, path, ""), path)
	}
}

func TestDashboardRedirectsWithGarbageToken(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()
	for _, path := range dashboardPaths {
		assertLoginRedirect(t, getPage(t, router, path, "not-a-jwt"), path)
	}
}

func TestDashboardRendersForClient(t *testing.T) {
	srv, mem := newTestServer(t)
	router := srv.Router()
	token, _ := signUpClient(t, srv, mem, "render")
	for _, path := range dashboardPaths {
		rec := getPage(t, router, path, token)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s with session = %d, want 200", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Client dashboard") {
			t.Fatalf("%s did not render the dashboard shell", path)
		}
	}
}

func TestDashboardRedirectsWithoutClientRow(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "norow@example.com", "password": "portal2026",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup = %d", rec.Code)
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)

	// Valid session, but no client record has been provisioned.
	assertLoginRedirect(t, getPage(t, router, "/client/dashboard", resp.Token), "/client/dashboard")
}

// roleOverrideStore reports every client with a non-portal role.
type roleOverrideStore struct {
	store.Store
}

func (s roleOverrideStore) GetClientByUserID(userID string) (domain.Client, bool, error) {
	client, found, err := s.Store.GetClientByUserID(userID)
	if found {
		client.Role = domain.ClientRole("prospect")
	}
	return client, found, err
}

func TestDashboardRedirectsOnWrongRole(t *testing.T) {
	mem := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore(testJWTSecret, 15*time.Minute, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("jwt session store: %v", err)
	}
	a, err := app.New(app.Config{
		Store:         roleOverrideStore{Store: mem},
		Objects:       &stubObjects{},
		Sessions:      sessions,
		RefreshTokens: store.NewMemoryRefreshTokenStore(),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	srv, err := New(Config{App: a})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	router := srv.Router()
	token, _ := signUpClient(t, srv, mem, "role")

	assertLoginRedirect(t, getPage(t, router, "/client/dashboard", token), "/client/dashboard")
}

type failingClientLookup struct {
	store.Store
}

func (failingClientLookup) GetClientByUserID(string) (domain.Client, bool, error) {
	return domain.Client{}, false, errors.New("store offline")
}

func TestDashboardRedirectsWhenLookupFails(t *testing.T) {
	mem := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore(testJWTSecret, 15*time.Minute, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("jwt session store: %v", err)
	}
	a, err := app.New(app.Config{
		Store:         failingClientLookup{Store: mem},
		Objects:       &stubObjects{},
		Sessions:      sessions,
		RefreshTokens: store.NewMemoryRefreshTokenStore(),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	srv, err := New(Config{App: a})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": "failing@example.com", "password": "portal2026",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup = %d", rec.Code)
	}
	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)

	// A broken role lookup must fail closed, not render the page.
	assertLoginRedirect(t, getPage(t, router, "/client/dashboard", resp.Token), "/client/dashboard")
}

func TestLoginPageIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := getPage(t, srv.Router(), LoginPath, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login page = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
}

func TestMarketingPagesServed(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()
	for _, path := range []string{"/", "/divisions", "/about", "/pricing", "/contact", "/careers", "/referral", "/insights", "/industries"} {
		rec := getPage(t, router, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s = %d, want 200", path, rec.Code)
		}
	}
	rec := getPage(t, router, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("/nope = %d, want 404", rec.Code)
	}
}
