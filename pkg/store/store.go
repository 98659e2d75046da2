package store

import (
	"errors"
	"time"

	"meridian/pkg/domain"
)

// ErrNotFound is returned by singular lookups when no row matches.
var ErrNotFound = errors.New("record not found")

// Store defines persistence operations for accounts, clients and the
// project-scoped entities. Every client-scoped listing joins through
// projects so rows without an owning project are never returned.
type Store interface {
	// accounts
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// clients
	EnsureClient(domain.Client) (created bool, err error)
	GetClientByUserID(userID string) (domain.Client, bool, error)
	GetClientByID(id string) (domain.Client, bool, error)
	ClientCount() (int, error)

	// projects
	SaveProject(domain.Project) error
	ListProjectsByClient(clientID string) ([]domain.Project, error)
	GetProject(id string) (domain.Project, bool, error)

	// invoices
	SaveInvoice(domain.Invoice) error
	ListInvoicesByClient(clientID string) ([]domain.Invoice, error)
	ListInvoicesByProject(projectID string) ([]domain.Invoice, error)

	// metrics
	SaveMetric(domain.Metric) error
	ListMetricsByClient(clientID string) ([]domain.Metric, error)
	ListMetricsByProject(projectID string) ([]domain.Metric, error)

	// tasks
	SaveTask(domain.Task) error
	ListTasksByClient(clientID string) ([]domain.Task, error)
	ListTasksByProject(projectID string) ([]domain.Task, error)
	GetTask(id string) (domain.Task, bool, error)
	SetTaskCompleted(id string, completed bool) (domain.Task, error)

	// assets
	SaveAsset(domain.Asset) error
	ListAssetsByClient(clientID string) ([]domain.Asset, error)
	ListAssetsByProject(projectID string) ([]domain.Asset, error)

	// dashboard counts, each re-applying the client scoping join
	CountProjects(clientID string) (int, error)
	CountProjectsByStatus(clientID, status string) (int, error)
	CountInvoices(clientID string) (int, error)
	CountInvoicesByStatus(clientID, status string) (int, error)
	CountAssets(clientID string) (int, error)
	CountTasksByCompletion(clientID string, completed bool) (int, error)

	// intake
	SaveContactSubmission(domain.ContactSubmission) error
	SaveReferral(domain.Referral) error
	SaveApplication(domain.Application) error
}

// SessionStore issues and resolves portal session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// RefreshTokenStore persists refresh tokens for rotation + replay detection.
type RefreshTokenStore interface {
	NewToken(userID string, ttl time.Duration) (string, error)
	RotateToken(token string, ttl time.Duration) (userID string, newToken string, err error)
	DeleteToken(token string) error
}

// UserRefreshTokenRevoker is an optional capability that revokes all refresh
// tokens for a user.
type UserRefreshTokenRevoker interface {
	RevokeUserRefreshTokens(userID string) error
}
