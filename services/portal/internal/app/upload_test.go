package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"meridian/pkg/domain"
	"meridian/pkg/store"
)

func mustSessions(t *testing.T) store.SessionStore {
	t.Helper()
	sessions, err := store.NewJWTSessionStore(testJWTSecret, 15*time.Minute, store.NewMemoryTokenRevoker(), store.JWTOptions{})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	return sessions
}

// seedForFailingInsert provisions a user, client and project directly in a
// fresh memory store.
func seedForFailingInsert(t *testing.T) (*store.MemoryStore, *fakeObjectStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	if err := mem.SaveUser(domain.User{ID: "user-1", Email: "u@example.com"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := mem.EnsureClient(domain.Client{ID: "client-1", UserID: "user-1", Name: "One", Email: "u@example.com", Role: domain.RoleClient}); err != nil {
		t.Fatalf("seed client: %v", err)
	}
	if err := mem.SaveProject(domain.Project{ID: "proj-1", ClientID: "client-1", Title: "One", Status: "active", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return mem, newFakeObjectStore()
}

func TestUploadAssetSuccess(t *testing.T) {
	a, mem, objects := newTestApp(t)
	userID, _, projectID := seedClientWorkspace(t, a, mem, "alpha")

	body := "quarterly report body"
	asset, err := a.UploadAsset(context.Background(), userID, projectID, "Q3 report.txt", strings.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if asset.FileName != "Q3 report.txt" || asset.FileSize != int64(len(body)) {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if asset.FileType == "" || !strings.HasPrefix(asset.FileType, "text/plain") {
		t.Fatalf("unexpected content type: %q", asset.FileType)
	}
	if !strings.HasPrefix(asset.FileURL, "https://objects.test/") {
		t.Fatalf("unexpected reference: %q", asset.FileURL)
	}
	if objects.len() != 1 {
		t.Fatalf("expected one stored object, got %d", objects.len())
	}

	listed, err := a.ProjectAssets(userID, projectID)
	if err != nil || len(listed) != 1 || listed[0].ID != asset.ID {
		t.Fatalf("asset listing mismatch: %+v err=%v", listed, err)
	}

	key := asset.Attributes["storage_key"]
	if key == "" {
		t.Fatalf("expected storage key attribute")
	}
	// Key shape: {clientID}/{projectID}/{unixMillis}-{suffix}.txt
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[1] != projectID || !strings.HasSuffix(parts[2], ".txt") || !strings.Contains(parts[2], "-") {
		t.Fatalf("unexpected key shape: %q", key)
	}
}

func TestUploadAssetCompensatingDelete(t *testing.T) {
	mem, objects := seedForFailingInsert(t)
	a, err := New(Config{
		Store:          failingAssetStore{Store: mem},
		Objects:        objects,
		Sessions:       mustSessions(t),
		RefreshTokens:  nil,
		MaxUploadBytes: 1 << 20,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	_, err = a.UploadAsset(context.Background(), "user-1", "proj-1", "report.txt", strings.NewReader("payload"), 7)
	if !errors.Is(err, ErrMetadataWriteFailed) {
		t.Fatalf("expected ErrMetadataWriteFailed, got %v", err)
	}
	if objects.len() != 0 {
		t.Fatalf("expected compensating delete to remove the object")
	}
	if len(objects.deletes) != 1 {
		t.Fatalf("expected exactly one delete, got %d", len(objects.deletes))
	}
	assets, err := mem.ListAssetsByProject("proj-1")
	if err != nil || len(assets) != 0 {
		t.Fatalf("expected no persisted asset rows: %+v err=%v", assets, err)
	}
}

func TestUploadAssetPutFailurePersistsNothing(t *testing.T) {
	mem, objects := seedForFailingInsert(t)
	objects.putErr = errors.New("storage down")
	a, err := New(Config{
		Store:          mem,
		Objects:        objects,
		Sessions:       mustSessions(t),
		MaxUploadBytes: 1 << 20,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	_, err = a.UploadAsset(context.Background(), "user-1", "proj-1", "report.txt", strings.NewReader("payload"), 7)
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	assets, err := mem.ListAssetsByProject("proj-1")
	if err != nil || len(assets) != 0 {
		t.Fatalf("expected no asset rows after put failure: %+v err=%v", assets, err)
	}
}

func TestUploadAssetRejectsForeignProject(t *testing.T) {
	a, mem, _ := newTestApp(t)
	userA, _, _ := seedClientWorkspace(t, a, mem, "alpha")
	_, _, projectB := seedClientWorkspace(t, a, mem, "beta")

	_, err := a.UploadAsset(context.Background(), userA, projectB, "report.txt", strings.NewReader("x"), 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign project, got %v", err)
	}
}

func TestUploadAssetRejectsOversizedFile(t *testing.T) {
	a, mem, _ := newTestApp(t, func(cfg *Config) {
		cfg.MaxUploadBytes = 8
	})
	userID, _, projectID := seedClientWorkspace(t, a, mem, "alpha")

	_, err := a.UploadAsset(context.Background(), userID, projectID, "big.txt", strings.NewReader("way more than eight bytes"), 25)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for oversized file, got %v", err)
	}
}
