package store

import (
	"testing"
	"time"

	"meridian/pkg/domain"
)

func seedTwoClients(t *testing.T, s *MemoryStore) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, c := range []domain.Client{
		{ID: "client-a", UserID: "user-a", Name: "Alpha", Email: "a@example.com", Role: domain.RoleClient, CreatedAt: base},
		{ID: "client-b", UserID: "user-b", Name: "Beta", Email: "b@example.com", Role: domain.RoleClient, CreatedAt: base},
	} {
		if _, err := s.EnsureClient(c); err != nil {
			t.Fatalf("ensure client %s: %v", c.ID, err)
		}
	}
	for _, p := range []domain.Project{
		{ID: "proj-a1", ClientID: "client-a", Title: "Alpha One", Status: "active", CreatedAt: base},
		{ID: "proj-a2", ClientID: "client-a", Title: "Alpha Two", Status: "completed", CreatedAt: base.Add(time.Hour)},
		{ID: "proj-b1", ClientID: "client-b", Title: "Beta One", Status: "active", CreatedAt: base},
	} {
		if err := s.SaveProject(p); err != nil {
			t.Fatalf("save project %s: %v", p.ID, err)
		}
	}
	for _, inv := range []domain.Invoice{
		{ID: "inv-a1", ProjectID: "proj-a1", Amount: 100, Status: "pending", IssuedAt: base},
		{ID: "inv-a2", ProjectID: "proj-a2", Amount: 250, Status: "paid", IssuedAt: base.Add(time.Hour)},
		{ID: "inv-b1", ProjectID: "proj-b1", Amount: 900, Status: "pending", IssuedAt: base},
		{ID: "inv-orphan", ProjectID: "proj-gone", Amount: 1, Status: "pending", IssuedAt: base},
	} {
		if err := s.SaveInvoice(inv); err != nil {
			t.Fatalf("save invoice %s: %v", inv.ID, err)
		}
	}
}

func TestMemoryStoreClientScopedInvoices(t *testing.T) {
	s := NewMemoryStore()
	seedTwoClients(t, s)

	invoices, err := s.ListInvoicesByClient("client-a")
	if err != nil {
		t.Fatalf("list invoices: %v", err)
	}
	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices for client-a, got %d", len(invoices))
	}
	// Newest issued first.
	if invoices[0].ID != "inv-a2" || invoices[1].ID != "inv-a1" {
		t.Fatalf("unexpected order: %s, %s", invoices[0].ID, invoices[1].ID)
	}
	for _, inv := range invoices {
		if inv.ProjectID == "proj-b1" || inv.ProjectID == "proj-gone" {
			t.Fatalf("cross-tenant or orphaned invoice leaked: %s", inv.ID)
		}
	}
}

func TestMemoryStoreEnsureClientIdempotent(t *testing.T) {
	s := NewMemoryStore()
	c := domain.Client{ID: "client-1", UserID: "user-1", Name: "One", Email: "one@example.com", Role: domain.RoleClient}
	created, err := s.EnsureClient(c)
	if err != nil || !created {
		t.Fatalf("first ensure: created=%v err=%v", created, err)
	}
	c2 := c
	c2.ID = "client-other"
	created, err = s.EnsureClient(c2)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if created {
		t.Fatalf("expected second ensure for same user to be a no-op")
	}
	got, ok, err := s.GetClientByUserID("user-1")
	if err != nil || !ok {
		t.Fatalf("get client: ok=%v err=%v", ok, err)
	}
	if got.ID != "client-1" {
		t.Fatalf("expected original row to win, got %s", got.ID)
	}
}

func TestMemoryStoreTaskOrderingAndToggle(t *testing.T) {
	s := NewMemoryStore()
	seedTwoClients(t, s)
	soon := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	later := soon.Add(48 * time.Hour)
	for _, task := range []domain.Task{
		{ID: "task-later", ProjectID: "proj-a1", Title: "Later", DueDate: &later},
		{ID: "task-soon", ProjectID: "proj-a1", Title: "Soon", DueDate: &soon},
		{ID: "task-nodue", ProjectID: "proj-a1", Title: "Whenever"},
	} {
		if err := s.SaveTask(task); err != nil {
			t.Fatalf("save task: %v", err)
		}
	}

	tasks, err := s.ListTasksByClient("client-a")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != "task-soon" || tasks[2].ID != "task-nodue" {
		t.Fatalf("unexpected due-date ordering: %s ... %s", tasks[0].ID, tasks[2].ID)
	}

	updated, err := s.SetTaskCompleted("task-soon", true)
	if err != nil {
		t.Fatalf("set completed: %v", err)
	}
	if !updated.Completed {
		t.Fatalf("expected completed flag set")
	}
	if _, err := s.SetTaskCompleted("missing", true); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreCounts(t *testing.T) {
	s := NewMemoryStore()
	seedTwoClients(t, s)

	if n, _ := s.CountProjects("client-a"); n != 2 {
		t.Fatalf("expected 2 projects, got %d", n)
	}
	if n, _ := s.CountProjectsByStatus("client-a", "active"); n != 1 {
		t.Fatalf("expected 1 active project, got %d", n)
	}
	if n, _ := s.CountInvoices("client-a"); n != 2 {
		t.Fatalf("expected 2 invoices, got %d", n)
	}
	if n, _ := s.CountInvoicesByStatus("client-a", "pending"); n != 1 {
		t.Fatalf("expected 1 pending invoice, got %d", n)
	}
}
