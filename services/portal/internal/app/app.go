package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"meridian/internal/util"
	"meridian/pkg/auth"
	"meridian/pkg/domain"
	"meridian/pkg/notify"
	"meridian/pkg/queue"
	"meridian/pkg/session"
	"meridian/pkg/storage"
	"meridian/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioUseSSL        bool
	AssetPublicBaseURL string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	SessionTTL  time.Duration
	RefreshTTL  time.Duration

	MaxUploadBytes int64

	// Optional overrides for tests.
	Store         store.Store
	Objects       storage.ObjectStore
	Sessions      store.SessionStore
	RefreshTokens store.RefreshTokenStore
	Leads         notify.Publisher
	IntakeQueue   *queue.RedisIntakeQueue
	Events        *session.Broker
}

// App wires storage, sessions and domain logic for the portal.
type App struct {
	store          store.Store
	objects        storage.ObjectStore
	sessions       store.SessionStore
	refreshTokens  store.RefreshTokenStore
	leads          notify.Publisher
	intakeQueue    *queue.RedisIntakeQueue
	events         *session.Broker
	refreshTTL     time.Duration
	maxUploadBytes int64
}

// New constructs the application with database-backed storage.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 50 * 1024 * 1024
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	objects := cfg.Objects
	if objects == nil {
		var err error
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, cfg.AssetPublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}

	sessions := cfg.Sessions
	if sessions == nil {
		var revoker store.TokenRevoker
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		} else {
			revoker = store.NewMemoryTokenRevoker()
		}
		jwtStore, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL, revoker, store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessions = jwtStore
	}

	refreshTokens := cfg.RefreshTokens
	if refreshTokens == nil {
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			refreshTokens = store.NewRedisRefreshTokenStore(cfg.RedisAddr, cfg.RedisPassword)
		} else {
			refreshTokens = store.NewMemoryRefreshTokenStore()
		}
	}

	leads := cfg.Leads
	if leads == nil {
		leads = notify.NopPublisher{}
	}
	events := cfg.Events
	if events == nil {
		events = session.NewBroker()
	}

	return &App{
		store:          dataStore,
		objects:        objects,
		sessions:       sessions,
		refreshTokens:  refreshTokens,
		leads:          leads,
		intakeQueue:    cfg.IntakeQueue,
		events:         events,
		refreshTTL:     cfg.RefreshTTL,
		maxUploadBytes: cfg.MaxUploadBytes,
	}, nil
}

// Events exposes the auth event broker.
func (a *App) Events() *session.Broker { return a.events }

// MaxUploadBytes reports the configured upload cap.
func (a *App) MaxUploadBytes() int64 { return a.maxUploadBytes }

// SignUp registers a new account and issues a token pair.
func (a *App) SignUp(email, password string) (domain.User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", "", ErrEmailAndPasswordRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", "", err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", "", ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", "", fmt.Errorf("create user: %w", err)
	}
	return a.issueUserTokens(user, session.EventSignedIn)
}

// SignIn validates credentials and issues a token pair.
func (a *App) SignIn(email, password string) (domain.User, string, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", "", ErrInvalidCredentials
	}
	return a.issueUserTokens(user, session.EventSignedIn)
}

// SignOut invalidates the access token and optional refresh token. Both
// revocations are best-effort: the caller's session ends locally even if
// Redis is unavailable.
func (a *App) SignOut(accessToken, refreshToken string) {
	userID, ok, _ := a.sessions.GetUserIDByToken(accessToken)
	if err := a.sessions.DeleteSession(accessToken); err != nil {
		slog.Warn("revoke access token", "err", err)
	}
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		if err := a.refreshTokens.DeleteToken(refreshToken); err != nil {
			slog.Warn("revoke refresh token", "err", err)
		}
	}
	if ok {
		a.events.Publish(session.Event{Kind: session.EventSignedOut, UserID: userID})
	}
}

// SignOutAll ends the caller's session and revokes every refresh token the
// account holds, signing the user out on all devices.
func (a *App) SignOutAll(accessToken string) {
	userID, ok, _ := a.sessions.GetUserIDByToken(accessToken)
	if err := a.sessions.DeleteSession(accessToken); err != nil {
		slog.Warn("revoke access token", "err", err)
	}
	if !ok {
		return
	}
	if revoker, canRevoke := a.refreshTokens.(store.UserRefreshTokenRevoker); canRevoke {
		if err := revoker.RevokeUserRefreshTokens(userID); err != nil {
			slog.Warn("revoke user refresh tokens", "user_id", userID, "err", err)
		}
	}
	a.events.Publish(session.Event{Kind: session.EventSignedOut, UserID: userID})
}

// Refresh rotates the refresh token and issues a new token pair. Reuse of
// an already-rotated token revokes its whole family.
func (a *App) Refresh(refreshToken string) (domain.User, string, string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.User{}, "", "", ErrRefreshTokenRequired
	}
	userID, newRefreshToken, err := a.refreshTokens.RotateToken(refreshToken, a.refreshTTL)
	if err != nil {
		if errors.Is(err, store.ErrInvalidRefreshToken) || errors.Is(err, store.ErrRefreshTokenReplay) {
			return domain.User{}, "", "", ErrInvalidRefreshToken
		}
		return domain.User{}, "", "", fmt.Errorf("rotate refresh token: %w", err)
	}
	user, found, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("fetch user: %w", err)
	}
	if !found {
		_ = a.refreshTokens.DeleteToken(newRefreshToken)
		return domain.User{}, "", "", ErrInvalidRefreshToken
	}
	accessToken, err := a.sessions.NewSession(user.ID)
	if err != nil {
		_ = a.refreshTokens.DeleteToken(newRefreshToken)
		return domain.User{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	a.events.Publish(session.Event{Kind: session.EventTokenRefreshed, UserID: user.ID})
	return user, accessToken, newRefreshToken, nil
}

// UserFromToken resolves an account from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// ClientForUser resolves the client row backing a session, if any.
func (a *App) ClientForUser(userID string) (domain.Client, bool, error) {
	return a.store.GetClientByUserID(userID)
}

// InitClient idempotently ensures one client row per user id. A second
// call for the same user id is a no-op.
func (a *App) InitClient(userID, email, name string) error {
	userID = strings.TrimSpace(userID)
	email = strings.TrimSpace(strings.ToLower(email))
	if userID == "" || email == "" {
		return NewValidationError(map[string]string{"user_id": "user_id and email are required"})
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email
		if at := strings.IndexByte(email, '@'); at > 0 {
			name = email[:at]
		}
	}
	_, err := a.store.EnsureClient(domain.Client{
		ID:        util.NewID(),
		UserID:    userID,
		Name:      name,
		Email:     email,
		Role:      domain.RoleClient,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("ensure client: %w", err)
	}
	return nil
}

// HealthCheck performs a trivial client-table read.
func (a *App) HealthCheck() error {
	if _, err := a.store.ClientCount(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func (a *App) issueUserTokens(user domain.User, kind session.EventKind) (domain.User, string, string, error) {
	accessToken, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := a.refreshTokens.NewToken(user.ID, a.refreshTTL)
	if err != nil {
		return domain.User{}, "", "", fmt.Errorf("issue refresh token: %w", err)
	}
	a.events.Publish(session.Event{Kind: kind, UserID: user.ID})
	return user, accessToken, refreshToken, nil
}
