package domain

import "time"

type ClientRole string

const (
	RoleClient ClientRole = "client"
	RoleAdmin  ClientRole = "admin"
)

type InvoiceStatus string

const (
	InvoicePaid    InvoiceStatus = "paid"
	InvoicePending InvoiceStatus = "pending"
)

type SubmissionStatus string

const (
	SubmissionNew        SubmissionStatus = "new"
	SubmissionPending    SubmissionStatus = "pending"
	SubmissionInProgress SubmissionStatus = "in_progress"
	SubmissionCompleted  SubmissionStatus = "completed"
)

// User is an authentication account. One account maps to at most one Client.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Client is the tenant entity for one portal customer.
type Client struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Company   string     `json:"company,omitempty"`
	Role      ClientRole `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Project is the scoping root for invoices, assets, metrics and tasks.
type Project struct {
	ID          string     `json:"id"`
	ClientID    string     `json:"clientId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Progress    *int       `json:"progress,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Budget      *float64   `json:"budget,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Invoice struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId"`
	Amount    float64    `json:"amount"`
	Status    string     `json:"status,omitempty"`
	IssuedAt  time.Time  `json:"issuedAt"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
	DueAt     *time.Time `json:"dueAt,omitempty"`
}

type Asset struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"projectId"`
	FileURL    string            `json:"fileUrl"`
	FileName   string            `json:"fileName"`
	FileType   string            `json:"fileType,omitempty"`
	FileSize   int64             `json:"fileSize"`
	UploadedBy string            `json:"uploadedBy,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	UploadedAt time.Time         `json:"uploadedAt"`
}

type Metric struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"projectId"`
	MetricName string            `json:"metricName"`
	Value      float64           `json:"value"`
	Attributes map[string]string `json:"attributes,omitempty"`
	UploadedAt time.Time         `json:"uploadedAt"`
}

type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ClientStats aggregates dashboard counts. The counts come from independent
// queries and are not guaranteed to be mutually consistent under concurrent
// writes.
type ClientStats struct {
	TotalProjects   int `json:"totalProjects"`
	ActiveProjects  int `json:"activeProjects"`
	TotalInvoices   int `json:"totalInvoices"`
	PendingInvoices int `json:"pendingInvoices"`
	TotalAssets     int `json:"totalAssets"`
	CompletedTasks  int `json:"completedTasks"`
	PendingTasks    int `json:"pendingTasks"`
}

// ContactSubmission is an unauthenticated lead captured from the contact form.
type ContactSubmission struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Email           string           `json:"email"`
	Phone           string           `json:"phone,omitempty"`
	Company         string           `json:"company,omitempty"`
	ServiceInterest string           `json:"serviceInterest,omitempty"`
	Message         string           `json:"message"`
	Status          SubmissionStatus `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
}

type Referral struct {
	ID              string           `json:"id"`
	ReferrerType    string           `json:"referrerType"`
	Name            string           `json:"name"`
	Email           string           `json:"email"`
	ReferredCompany string           `json:"referredCompany"`
	ReferredContact string           `json:"referredContact"`
	ServiceType     string           `json:"serviceType"`
	Status          SubmissionStatus `json:"status"`
	Eligible        bool             `json:"eligible"`
	CreatedAt       time.Time        `json:"createdAt"`
}

type Application struct {
	ID           string           `json:"id"`
	FullName     string           `json:"fullName"`
	Email        string           `json:"email"`
	RoleInterest string           `json:"roleInterest"`
	CVURL        string           `json:"cvUrl"`
	CoverNote    string           `json:"coverNote"`
	Status       SubmissionStatus `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
}
