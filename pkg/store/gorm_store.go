package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"meridian/pkg/domain"
)

const migrateLockID int64 = 51095109

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent replicas do not race on schema changes.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{}, &ClientModel{}, &ProjectModel{}, &InvoiceModel{},
			&AssetModel{}, &MetricModel{}, &TaskModel{},
			&ContactSubmissionModel{}, &ReferralModel{}, &ApplicationModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'projects'
					AND constraint_name = 'projects_client_id_fkey'
				) THEN
					ALTER TABLE projects
					ADD CONSTRAINT projects_client_id_fkey
					FOREIGN KEY (client_id) REFERENCES clients(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure project foreign key: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates an account.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "updated_at"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up an account by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns an account by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// EnsureClient inserts the client row unless one already exists for the same
// auth user. The unique index on user_id makes concurrent calls collapse to
// a single row; created reports whether this call inserted it.
func (s *GormStore) EnsureClient(c domain.Client) (bool, error) {
	model := clientToModel(c)
	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&model)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetClientByUserID resolves the client row for an auth user.
func (s *GormStore) GetClientByUserID(userID string) (domain.Client, bool, error) {
	var model ClientModel
	if err := s.db.Where("user_id = ?", userID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Client{}, false, nil
		}
		return domain.Client{}, false, err
	}
	client, err := decodeClient(model)
	if err != nil {
		return domain.Client{}, false, err
	}
	return client, true, nil
}

// GetClientByID returns a client row by ID.
func (s *GormStore) GetClientByID(id string) (domain.Client, bool, error) {
	var model ClientModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Client{}, false, nil
		}
		return domain.Client{}, false, err
	}
	client, err := decodeClient(model)
	if err != nil {
		return domain.Client{}, false, err
	}
	return client, true, nil
}

// ClientCount returns the number of client rows. Used by the health check.
func (s *GormStore) ClientCount() (int, error) {
	var count int64
	if err := s.db.Model(&ClientModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveProject stores or updates a project.
func (s *GormStore) SaveProject(p domain.Project) error {
	model := projectToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "status", "progress", "due_date", "budget"}),
	}).Create(&model).Error
}

// ListProjectsByClient returns the client's projects, newest first.
func (s *GormStore) ListProjectsByClient(clientID string) ([]domain.Project, error) {
	var models []ProjectModel
	if err := s.db.Where("client_id = ?", clientID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Project, 0, len(models))
	for _, m := range models {
		p, err := decodeProject(m)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

// GetProject retrieves a project by ID without ownership filtering; callers
// must verify client_id themselves.
func (s *GormStore) GetProject(id string) (domain.Project, bool, error) {
	var model ProjectModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Project{}, false, nil
		}
		return domain.Project{}, false, err
	}
	p, err := decodeProject(model)
	if err != nil {
		return domain.Project{}, false, err
	}
	return p, true, nil
}

// clientScope applies the ownership join for a child table. Inner join only:
// rows whose project no longer exists must not surface.
func (s *GormStore) clientScope(table, clientID string) *gorm.DB {
	return s.db.Table(table).
		Joins(fmt.Sprintf("JOIN projects ON projects.id = %s.project_id", table)).
		Where("projects.client_id = ?", clientID)
}

func (s *GormStore) SaveInvoice(inv domain.Invoice) error {
	model := invoiceToModel(inv)
	return s.db.Create(&model).Error
}

// ListInvoicesByClient returns invoices joined through projects, newest issued first.
func (s *GormStore) ListInvoicesByClient(clientID string) ([]domain.Invoice, error) {
	var models []InvoiceModel
	if err := s.clientScope("invoices", clientID).
		Order("invoices.issued_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return invoicesFromModels(models)
}

func (s *GormStore) ListInvoicesByProject(projectID string) ([]domain.Invoice, error) {
	var models []InvoiceModel
	if err := s.db.Where("project_id = ?", projectID).
		Order("issued_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return invoicesFromModels(models)
}

func (s *GormStore) SaveMetric(m domain.Metric) error {
	model := metricToModel(m)
	return s.db.Create(&model).Error
}

func (s *GormStore) ListMetricsByClient(clientID string) ([]domain.Metric, error) {
	var models []MetricModel
	if err := s.clientScope("metrics", clientID).
		Order("metrics.uploaded_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return metricsFromModels(models)
}

func (s *GormStore) ListMetricsByProject(projectID string) ([]domain.Metric, error) {
	var models []MetricModel
	if err := s.db.Where("project_id = ?", projectID).
		Order("uploaded_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return metricsFromModels(models)
}

func (s *GormStore) SaveTask(t domain.Task) error {
	model := taskToModel(t)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "description", "due_date", "completed"}),
	}).Create(&model).Error
}

// ListTasksByClient returns the client's tasks, soonest due first.
func (s *GormStore) ListTasksByClient(clientID string) ([]domain.Task, error) {
	var models []TaskModel
	if err := s.clientScope("tasks", clientID).
		Order("tasks.due_date ASC NULLS LAST").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return tasksFromModels(models)
}

func (s *GormStore) ListTasksByProject(projectID string) ([]domain.Task, error) {
	var models []TaskModel
	if err := s.db.Where("project_id = ?", projectID).
		Order("due_date ASC NULLS LAST").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return tasksFromModels(models)
}

func (s *GormStore) GetTask(id string) (domain.Task, bool, error) {
	var model TaskModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Task{}, false, nil
		}
		return domain.Task{}, false, err
	}
	t, err := decodeTask(model)
	if err != nil {
		return domain.Task{}, false, err
	}
	return t, true, nil
}

// SetTaskCompleted flips the completed flag and returns the updated task.
func (s *GormStore) SetTaskCompleted(id string, completed bool) (domain.Task, error) {
	res := s.db.Model(&TaskModel{}).Where("id = ?", id).Update("completed", completed)
	if res.Error != nil {
		return domain.Task{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Task{}, ErrNotFound
	}
	task, ok, err := s.GetTask(id)
	if err != nil {
		return domain.Task{}, err
	}
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return task, nil
}

func (s *GormStore) SaveAsset(a domain.Asset) error {
	model, err := assetToModel(a)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

func (s *GormStore) ListAssetsByClient(clientID string) ([]domain.Asset, error) {
	var models []AssetModel
	if err := s.clientScope("assets", clientID).
		Order("assets.uploaded_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return assetsFromModels(models)
}

func (s *GormStore) ListAssetsByProject(projectID string) ([]domain.Asset, error) {
	var models []AssetModel
	if err := s.db.Where("project_id = ?", projectID).
		Order("uploaded_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return assetsFromModels(models)
}

func (s *GormStore) CountProjects(clientID string) (int, error) {
	var count int64
	err := s.db.Model(&ProjectModel{}).Where("client_id = ?", clientID).Count(&count).Error
	return int(count), err
}

func (s *GormStore) CountProjectsByStatus(clientID, status string) (int, error) {
	var count int64
	err := s.db.Model(&ProjectModel{}).
		Where("client_id = ? AND status = ?", clientID, status).
		Count(&count).Error
	return int(count), err
}

func (s *GormStore) CountInvoices(clientID string) (int, error) {
	var count int64
	err := s.clientScope("invoices", clientID).Count(&count).Error
	return int(count), err
}

func (s *GormStore) CountInvoicesByStatus(clientID, status string) (int, error) {
	var count int64
	err := s.clientScope("invoices", clientID).
		Where("invoices.status = ?", status).
		Count(&count).Error
	return int(count), err
}

func (s *GormStore) CountAssets(clientID string) (int, error) {
	var count int64
	err := s.clientScope("assets", clientID).Count(&count).Error
	return int(count), err
}

func (s *GormStore) CountTasksByCompletion(clientID string, completed bool) (int, error) {
	var count int64
	err := s.clientScope("tasks", clientID).
		Where("tasks.completed = ?", completed).
		Count(&count).Error
	return int(count), err
}

func (s *GormStore) SaveContactSubmission(sub domain.ContactSubmission) error {
	model := contactToModel(sub)
	return s.db.Create(&model).Error
}

func (s *GormStore) SaveReferral(ref domain.Referral) error {
	model := referralToModel(ref)
	return s.db.Create(&model).Error
}

func (s *GormStore) SaveApplication(app domain.Application) error {
	model := applicationToModel(app)
	return s.db.Create(&model).Error
}

// model conversions; the decode direction validates required fields instead
// of trusting whatever the row holds.

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func clientToModel(c domain.Client) ClientModel {
	var userID *string
	if c.UserID != "" {
		value := c.UserID
		userID = &value
	}
	return ClientModel{
		ID:        c.ID,
		UserID:    userID,
		Name:      c.Name,
		Email:     c.Email,
		Company:   c.Company,
		Role:      string(c.Role),
		CreatedAt: c.CreatedAt,
	}
}

func decodeClient(m ClientModel) (domain.Client, error) {
	if m.ID == "" || m.Email == "" {
		return domain.Client{}, fmt.Errorf("decode client: missing id or email")
	}
	userID := ""
	if m.UserID != nil {
		userID = *m.UserID
	}
	role := domain.ClientRole(m.Role)
	if role == "" {
		role = domain.RoleClient
	}
	return domain.Client{
		ID:        m.ID,
		UserID:    userID,
		Name:      m.Name,
		Email:     m.Email,
		Company:   m.Company,
		Role:      role,
		CreatedAt: m.CreatedAt,
	}, nil
}

func projectToModel(p domain.Project) ProjectModel {
	return ProjectModel{
		ID:          p.ID,
		ClientID:    p.ClientID,
		Title:       p.Title,
		Description: p.Description,
		Status:      p.Status,
		Progress:    p.Progress,
		DueDate:     p.DueDate,
		Budget:      p.Budget,
		CreatedAt:   p.CreatedAt,
	}
}

func decodeProject(m ProjectModel) (domain.Project, error) {
	if m.ID == "" || m.ClientID == "" {
		return domain.Project{}, fmt.Errorf("decode project: missing id or client id")
	}
	return domain.Project{
		ID:          m.ID,
		ClientID:    m.ClientID,
		Title:       m.Title,
		Description: m.Description,
		Status:      m.Status,
		Progress:    m.Progress,
		DueDate:     m.DueDate,
		Budget:      m.Budget,
		CreatedAt:   m.CreatedAt,
	}, nil
}

func invoiceToModel(inv domain.Invoice) InvoiceModel {
	return InvoiceModel{
		ID:        inv.ID,
		ProjectID: inv.ProjectID,
		Amount:    inv.Amount,
		Status:    inv.Status,
		IssuedAt:  inv.IssuedAt,
		PaidAt:    inv.PaidAt,
		DueAt:     inv.DueAt,
	}
}

func decodeInvoice(m InvoiceModel) (domain.Invoice, error) {
	if m.ID == "" || m.ProjectID == "" {
		return domain.Invoice{}, fmt.Errorf("decode invoice: missing id or project id")
	}
	return domain.Invoice{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		Amount:    m.Amount,
		Status:    m.Status,
		IssuedAt:  m.IssuedAt,
		PaidAt:    m.PaidAt,
		DueAt:     m.DueAt,
	}, nil
}

func invoicesFromModels(models []InvoiceModel) ([]domain.Invoice, error) {
	res := make([]domain.Invoice, 0, len(models))
	for _, m := range models {
		inv, err := decodeInvoice(m)
		if err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, nil
}

func metricToModel(metric domain.Metric) MetricModel {
	attrs, _ := json.Marshal(metric.Attributes)
	return MetricModel{
		ID:         metric.ID,
		ProjectID:  metric.ProjectID,
		MetricName: metric.MetricName,
		Value:      metric.Value,
		Attributes: attrs,
		UploadedAt: metric.UploadedAt,
	}
}

func decodeMetric(m MetricModel) (domain.Metric, error) {
	if m.ID == "" || m.ProjectID == "" || m.MetricName == "" {
		return domain.Metric{}, fmt.Errorf("decode metric: missing id, project id or name")
	}
	var attrs map[string]string
	if len(m.Attributes) > 0 {
		_ = json.Unmarshal(m.Attributes, &attrs)
	}
	return domain.Metric{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		MetricName: m.MetricName,
		Value:      m.Value,
		Attributes: attrs,
		UploadedAt: m.UploadedAt,
	}, nil
}

func metricsFromModels(models []MetricModel) ([]domain.Metric, error) {
	res := make([]domain.Metric, 0, len(models))
	for _, m := range models {
		metric, err := decodeMetric(m)
		if err != nil {
			return nil, err
		}
		res = append(res, metric)
	}
	return res, nil
}

func taskToModel(t domain.Task) TaskModel {
	return TaskModel{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
	}
}

func decodeTask(m TaskModel) (domain.Task, error) {
	if m.ID == "" || m.ProjectID == "" {
		return domain.Task{}, fmt.Errorf("decode task: missing id or project id")
	}
	return domain.Task{
		ID:          m.ID,
		ProjectID:   m.ProjectID,
		Title:       m.Title,
		Description: m.Description,
		DueDate:     m.DueDate,
		Completed:   m.Completed,
		CreatedAt:   m.CreatedAt,
	}, nil
}

func tasksFromModels(models []TaskModel) ([]domain.Task, error) {
	res := make([]domain.Task, 0, len(models))
	for _, m := range models {
		t, err := decodeTask(m)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

func assetToModel(a domain.Asset) (AssetModel, error) {
	attrs, err := json.Marshal(a.Attributes)
	if err != nil {
		return AssetModel{}, fmt.Errorf("marshal asset attributes: %w", err)
	}
	return AssetModel{
		ID:         a.ID,
		ProjectID:  a.ProjectID,
		FileURL:    a.FileURL,
		FileName:   a.FileName,
		FileType:   a.FileType,
		FileSize:   a.FileSize,
		UploadedBy: a.UploadedBy,
		Attributes: attrs,
		UploadedAt: a.UploadedAt,
	}, nil
}

func decodeAsset(m AssetModel) (domain.Asset, error) {
	if m.ID == "" || m.ProjectID == "" || m.FileURL == "" {
		return domain.Asset{}, fmt.Errorf("decode asset: missing id, project id or file url")
	}
	var attrs map[string]string
	if len(m.Attributes) > 0 {
		_ = json.Unmarshal(m.Attributes, &attrs)
	}
	return domain.Asset{
		ID:         m.ID,
		ProjectID:  m.ProjectID,
		FileURL:    m.FileURL,
		FileName:   m.FileName,
		FileType:   m.FileType,
		FileSize:   m.FileSize,
		UploadedBy: m.UploadedBy,
		Attributes: attrs,
		UploadedAt: m.UploadedAt,
	}, nil
}

func assetsFromModels(models []AssetModel) ([]domain.Asset, error) {
	res := make([]domain.Asset, 0, len(models))
	for _, m := range models {
		a, err := decodeAsset(m)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

func contactToModel(sub domain.ContactSubmission) ContactSubmissionModel {
	return ContactSubmissionModel{
		ID:              sub.ID,
		Name:            sub.Name,
		Email:           sub.Email,
		Phone:           sub.Phone,
		Company:         sub.Company,
		ServiceInterest: sub.ServiceInterest,
		Message:         sub.Message,
		Status:          string(sub.Status),
		CreatedAt:       sub.CreatedAt,
	}
}

func referralToModel(ref domain.Referral) ReferralModel {
	return ReferralModel{
		ID:              ref.ID,
		ReferrerType:    ref.ReferrerType,
		Name:            ref.Name,
		Email:           ref.Email,
		ReferredCompany: ref.ReferredCompany,
		ReferredContact: ref.ReferredContact,
		ServiceType:     ref.ServiceType,
		Status:          string(ref.Status),
		Eligible:        ref.Eligible,
		CreatedAt:       ref.CreatedAt,
	}
}

func applicationToModel(app domain.Application) ApplicationModel {
	return ApplicationModel{
		ID:           app.ID,
		FullName:     app.FullName,
		Email:        app.Email,
		RoleInterest: app.RoleInterest,
		CVURL:        app.CVURL,
		CoverNote:    app.CoverNote,
		Status:       string(app.Status),
		CreatedAt:    app.CreatedAt,
	}
}
