package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"meridian/pkg/domain"
	"meridian/pkg/store"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

// fakeObjectStore records puts and deletes in memory.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deletes []string
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return nil
}

func (f *fakeObjectStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return "", errors.New("no such object")
	}
	return "https://objects.test/" + key, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deletes = append(f.deletes, key)
	return nil
}

func (f *fakeObjectStore) Reference(key string) string {
	return "https://objects.test/" + key
}

func (f *fakeObjectStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// failingAssetStore fails every asset insert.
type failingAssetStore struct {
	store.Store
}

func (failingAssetStore) SaveAsset(domain.Asset) error {
	return errors.New("insert failed")
}

func newTestApp(t *testing.T, opts ...func(*Config)) (*App, *store.MemoryStore, *fakeObjectStore) {
	t.Helper()
	mem := store.NewMemoryStore()
	objects := newFakeObjectStore()
	revoker := store.NewMemoryTokenRevoker()
	sessions, err := store.NewJWTSessionStore(testJWTSecret, 15*time.Minute, revoker, store.JWTOptions{})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	cfg := Config{
		Store:          mem,
		Objects:        objects,
		Sessions:       sessions,
		RefreshTokens:  store.NewMemoryRefreshTokenStore(),
		MaxUploadBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	a, err := New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, mem, objects
}

// seedClientWorkspace provisions a user, client and project and returns
// their ids.
func seedClientWorkspace(t *testing.T, a *App, mem *store.MemoryStore, tag string) (userID, clientID, projectID string) {
	t.Helper()
	user, _, _, err := a.SignUp(tag+"@example.com", "portal2026")
	if err != nil {
		t.Fatalf("signup %s: %v", tag, err)
	}
	if err := a.InitClient(user.ID, user.Email, ""); err != nil {
		t.Fatalf("init client %s: %v", tag, err)
	}
	client, ok, err := mem.GetClientByUserID(user.ID)
	if err != nil || !ok {
		t.Fatalf("client row missing for %s: ok=%v err=%v", tag, ok, err)
	}
	project := domain.Project{
		ID:        fmt.Sprintf("proj-%s", tag),
		ClientID:  client.ID,
		Title:     tag + " project",
		Status:    "active",
		CreatedAt: time.Now().UTC(),
	}
	if err := mem.SaveProject(project); err != nil {
		t.Fatalf("seed project %s: %v", tag, err)
	}
	return user.ID, client.ID, project.ID
}
