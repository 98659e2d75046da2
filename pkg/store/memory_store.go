package store

import (
	"sort"
	"sync"

	"meridian/pkg/domain"
)

// MemoryStore keeps all rows in process. It backs app and server tests and
// mirrors the ordering rules of the Postgres store.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	userByEmail map[string]string
	clients     map[string]domain.Client
	projects    map[string]domain.Project
	invoices    map[string]domain.Invoice
	metrics     map[string]domain.Metric
	tasks       map[string]domain.Task
	assets      map[string]domain.Asset

	contacts     []domain.ContactSubmission
	referrals    []domain.Referral
	applications []domain.Application
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		userByEmail: make(map[string]string),
		clients:     make(map[string]domain.Client),
		projects:    make(map[string]domain.Project),
		invoices:    make(map[string]domain.Invoice),
		metrics:     make(map[string]domain.Metric),
		tasks:       make(map[string]domain.Task),
		assets:      make(map[string]domain.Asset),
	}
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.userByEmail, prev.Email)
	}
	m.users[u.ID] = u
	m.userByEmail[u.Email] = u.ID
	return nil
}

func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.userByEmail[email]
	return ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.userByEmail[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) EnsureClient(c domain.Client) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.UserID != "" {
		for _, existing := range m.clients {
			if existing.UserID == c.UserID {
				return false, nil
			}
		}
	}
	m.clients[c.ID] = c
	return true, nil
}

func (m *MemoryStore) GetClientByUserID(userID string) (domain.Client, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if userID == "" {
		return domain.Client{}, false, nil
	}
	for _, c := range m.clients {
		if c.UserID == userID {
			return c, true, nil
		}
	}
	return domain.Client{}, false, nil
}

func (m *MemoryStore) GetClientByID(id string) (domain.Client, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	return c, ok, nil
}

func (m *MemoryStore) ClientCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients), nil
}

func (m *MemoryStore) SaveProject(p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *MemoryStore) ListProjectsByClient(clientID string) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Project, 0)
	for _, p := range m.projects {
		if p.ClientID == clientID {
			res = append(res, p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (m *MemoryStore) GetProject(id string) (domain.Project, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	return p, ok, nil
}

// ownedProjects returns the set of project ids owned by a client. It is the
// in-memory stand-in for the SQL inner join.
func (m *MemoryStore) ownedProjects(clientID string) map[string]struct{} {
	owned := make(map[string]struct{})
	for id, p := range m.projects {
		if p.ClientID == clientID {
			owned[id] = struct{}{}
		}
	}
	return owned
}

func (m *MemoryStore) SaveInvoice(inv domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = inv
	return nil
}

func (m *MemoryStore) ListInvoicesByClient(clientID string) ([]domain.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owned := m.ownedProjects(clientID)
	res := make([]domain.Invoice, 0)
	for _, inv := range m.invoices {
		if _, ok := owned[inv.ProjectID]; ok {
			res = append(res, inv)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].IssuedAt.After(res[j].IssuedAt) })
	return res, nil
}

func (m *MemoryStore) ListInvoicesByProject(projectID string) ([]domain.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Invoice, 0)
	for _, inv := range m.invoices {
		if inv.ProjectID == projectID {
			res = append(res, inv)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].IssuedAt.After(res[j].IssuedAt) })
	return res, nil
}

func (m *MemoryStore) SaveMetric(metric domain.Metric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[metric.ID] = metric
	return nil
}

func (m *MemoryStore) ListMetricsByClient(clientID string) ([]domain.Metric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owned := m.ownedProjects(clientID)
	res := make([]domain.Metric, 0)
	for _, metric := range m.metrics {
		if _, ok := owned[metric.ProjectID]; ok {
			res = append(res, metric)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UploadedAt.After(res[j].UploadedAt) })
	return res, nil
}

func (m *MemoryStore) ListMetricsByProject(projectID string) ([]domain.Metric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Metric, 0)
	for _, metric := range m.metrics {
		if metric.ProjectID == projectID {
			res = append(res, metric)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UploadedAt.After(res[j].UploadedAt) })
	return res, nil
}

func (m *MemoryStore) SaveTask(t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
	return nil
}

func sortTasksByDue(tasks []domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case a == nil && b == nil:
			return tasks[i].ID < tasks[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

func (m *MemoryStore) ListTasksByClient(clientID string) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owned := m.ownedProjects(clientID)
	res := make([]domain.Task, 0)
	for _, t := range m.tasks {
		if _, ok := owned[t.ProjectID]; ok {
			res = append(res, t)
		}
	}
	sortTasksByDue(res)
	return res, nil
}

func (m *MemoryStore) ListTasksByProject(projectID string) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Task, 0)
	for _, t := range m.tasks {
		if t.ProjectID == projectID {
			res = append(res, t)
		}
	}
	sortTasksByDue(res)
	return res, nil
}

func (m *MemoryStore) GetTask(id string) (domain.Task, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok, nil
}

func (m *MemoryStore) SetTaskCompleted(id string, completed bool) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	t.Completed = completed
	m.tasks[id] = t
	return t, nil
}

func (m *MemoryStore) SaveAsset(a domain.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[a.ID] = a
	return nil
}

func (m *MemoryStore) ListAssetsByClient(clientID string) ([]domain.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owned := m.ownedProjects(clientID)
	res := make([]domain.Asset, 0)
	for _, a := range m.assets {
		if _, ok := owned[a.ProjectID]; ok {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UploadedAt.After(res[j].UploadedAt) })
	return res, nil
}

func (m *MemoryStore) ListAssetsByProject(projectID string) ([]domain.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Asset, 0)
	for _, a := range m.assets {
		if a.ProjectID == projectID {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UploadedAt.After(res[j].UploadedAt) })
	return res, nil
}

func (m *MemoryStore) CountProjects(clientID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ownedProjects(clientID)), nil
}

func (m *MemoryStore) CountProjectsByStatus(clientID, status string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, p := range m.projects {
		if p.ClientID == clientID && p.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountInvoices(clientID string) (int, error) {
	invoices, err := m.ListInvoicesByClient(clientID)
	return len(invoices), err
}

func (m *MemoryStore) CountInvoicesByStatus(clientID, status string) (int, error) {
	invoices, err := m.ListInvoicesByClient(clientID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, inv := range invoices {
		if inv.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountAssets(clientID string) (int, error) {
	assets, err := m.ListAssetsByClient(clientID)
	return len(assets), err
}

func (m *MemoryStore) CountTasksByCompletion(clientID string, completed bool) (int, error) {
	tasks, err := m.ListTasksByClient(clientID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, t := range tasks {
		if t.Completed == completed {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) SaveContactSubmission(sub domain.ContactSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = append(m.contacts, sub)
	return nil
}

func (m *MemoryStore) SaveReferral(ref domain.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referrals = append(m.referrals, ref)
	return nil
}

func (m *MemoryStore) SaveApplication(app domain.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications = append(m.applications, app)
	return nil
}

// ContactSubmissions returns captured contact rows (test helper).
func (m *MemoryStore) ContactSubmissions() []domain.ContactSubmission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ContactSubmission, len(m.contacts))
	copy(out, m.contacts)
	return out
}

// Referrals returns captured referral rows (test helper).
func (m *MemoryStore) Referrals() []domain.Referral {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Referral, len(m.referrals))
	copy(out, m.referrals)
	return out
}

// Applications returns captured application rows (test helper).
func (m *MemoryStore) Applications() []domain.Application {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Application, len(m.applications))
	copy(out, m.applications)
	return out
}
