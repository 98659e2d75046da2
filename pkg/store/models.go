package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Table names are set explicitly so the
// schema matches the managed-platform tables the portal started on.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type ClientModel struct {
	ID        string  `gorm:"primaryKey"`
	UserID    *string `gorm:"uniqueIndex"`
	Name      string  `gorm:"not null"`
	Email     string  `gorm:"not null"`
	Company   string
	Role      string    `gorm:"not null;default:client"`
	CreatedAt time.Time `gorm:"not null"`
}

func (ClientModel) TableName() string { return "clients" }

type ProjectModel struct {
	ID          string `gorm:"primaryKey"`
	ClientID    string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string
	Status      string
	Progress    *int
	DueDate     *time.Time
	Budget      *float64
	CreatedAt   time.Time `gorm:"not null;index"`
}

func (ProjectModel) TableName() string { return "projects" }

type InvoiceModel struct {
	ID        string  `gorm:"primaryKey"`
	ProjectID string  `gorm:"not null;index"`
	Amount    float64 `gorm:"not null"`
	Status    string
	IssuedAt  time.Time `gorm:"not null;index"`
	PaidAt    *time.Time
	DueAt     *time.Time
}

func (InvoiceModel) TableName() string { return "invoices" }

type AssetModel struct {
	ID         string `gorm:"primaryKey"`
	ProjectID  string `gorm:"not null;index"`
	FileURL    string `gorm:"not null"`
	FileName   string `gorm:"not null"`
	FileType   string
	FileSize   int64 `gorm:"not null"`
	UploadedBy string
	Attributes datatypes.JSON `gorm:"type:jsonb"`
	UploadedAt time.Time      `gorm:"not null;index"`
}

func (AssetModel) TableName() string { return "assets" }

type MetricModel struct {
	ID         string         `gorm:"primaryKey"`
	ProjectID  string         `gorm:"not null;index"`
	MetricName string         `gorm:"not null"`
	Value      float64        `gorm:"not null"`
	Attributes datatypes.JSON `gorm:"type:jsonb"`
	UploadedAt time.Time      `gorm:"not null;index"`
}

func (MetricModel) TableName() string { return "metrics" }

type TaskModel struct {
	ID          string `gorm:"primaryKey"`
	ProjectID   string `gorm:"not null;index"`
	Title       string `gorm:"not null"`
	Description string
	DueDate     *time.Time `gorm:"index"`
	Completed   bool       `gorm:"not null;default:false"`
	CreatedAt   time.Time  `gorm:"not null"`
}

func (TaskModel) TableName() string { return "tasks" }

type ContactSubmissionModel struct {
	ID              string `gorm:"primaryKey"`
	Name            string `gorm:"not null"`
	Email           string `gorm:"not null"`
	Phone           string
	Company         string
	ServiceInterest string
	Message         string    `gorm:"type:text;not null"`
	Status          string    `gorm:"not null;default:new"`
	CreatedAt       time.Time `gorm:"not null;index"`
}

func (ContactSubmissionModel) TableName() string { return "contact_submissions" }

type ReferralModel struct {
	ID              string    `gorm:"primaryKey"`
	ReferrerType    string    `gorm:"not null"`
	Name            string    `gorm:"not null"`
	Email           string    `gorm:"not null"`
	ReferredCompany string    `gorm:"not null"`
	ReferredContact string    `gorm:"not null"`
	ServiceType     string    `gorm:"not null"`
	Status          string    `gorm:"not null;default:pending"`
	Eligible        bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time `gorm:"not null"`
}

func (ReferralModel) TableName() string { return "referrals" }

type ApplicationModel struct {
	ID           string    `gorm:"primaryKey"`
	FullName     string    `gorm:"not null"`
	Email        string    `gorm:"not null"`
	RoleInterest string    `gorm:"not null"`
	CVURL        string    `gorm:"not null"`
	CoverNote    string    `gorm:"type:text;not null"`
	Status       string    `gorm:"not null;default:pending"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (ApplicationModel) TableName() string { return "applications" }
