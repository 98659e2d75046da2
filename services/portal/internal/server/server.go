package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"meridian/internal/ratelimit"
	"meridian/internal/util"
	"meridian/pkg/auth"
	"meridian/pkg/domain"
	"meridian/services/portal/internal/app"
)

// SessionCookie is the portal session cookie name.
const SessionCookie = "meridian_session"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App           *app.App
	RedisAddr     string
	RedisPassword string

	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	IntakeRateLimitPerMinute int

	MaxUploadBytes    int64
	AllowedExtensions []string
	AllowedOrigins    []string
	TrustedProxies    []string
	SecureCookies     bool
}

// Server exposes the marketing site, the portal pages and the JSON API.
type Server struct {
	app               *app.App
	mux               *http.ServeMux
	maxUploadBytes    int64
	allowedExtensions map[string]struct{}
	allowedOrigins    []string
	trustedProxies    *util.TrustedProxies
	secureCookies     bool
	signupLimiter     *ratelimit.FixedWindowLimiter
	loginLimiter      *ratelimit.FixedWindowLimiter
	intakeLimiter     *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		if limit <= 0 {
			return nil, nil
		}
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return ratelimit.NewMemoryFixedWindowLimiter(limit, time.Minute)
		}
		prefix := "meridian:portal:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", cfg.SignupRateLimitPerMinute)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", cfg.LoginRateLimitPerMinute)
	if err != nil {
		return nil, err
	}
	intakeLimiter, err := newLimiter("intake", cfg.IntakeRateLimitPerMinute)
	if err != nil {
		return nil, err
	}
	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:               cfg.App,
		mux:               http.NewServeMux(),
		maxUploadBytes:    normalizeMaxBytes(cfg.MaxUploadBytes),
		allowedExtensions: normalizeExtensions(cfg.AllowedExtensions),
		allowedOrigins:    cfg.AllowedOrigins,
		trustedProxies:    trustedProxies,
		secureCookies:     cfg.SecureCookies,
		signupLimiter:     signupLimiter,
		loginLimiter:      loginLimiter,
		intakeLimiter:     intakeLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the ambient middleware stack.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("portal", util.WithSecurityHeaders(util.WithCORS(s.allowedOrigins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/auth/me", s.authenticated(s.handleMe))
	s.mux.HandleFunc("/api/client/init", s.handleClientInit)

	// client data (auth required)
	s.mux.Handle("/api/client/profile", s.authenticated(s.handleProfile))
	s.mux.Handle("/api/client/stats", s.authenticated(s.handleStats))
	s.mux.Handle("/api/client/projects", s.authenticated(s.handleProjects))
	s.mux.Handle("/api/client/projects/", s.authenticated(s.handleProjectSubtree))
	s.mux.Handle("/api/client/invoices", s.authenticated(s.handleInvoices))
	s.mux.Handle("/api/client/metrics", s.authenticated(s.handleMetrics))
	s.mux.Handle("/api/client/tasks", s.authenticated(s.handleTasks))
	s.mux.Handle("/api/client/tasks/", s.authenticated(s.handleTaskByID))
	s.mux.Handle("/api/client/assets", s.authenticated(s.handleAssets))

	// public intake
	s.mux.HandleFunc("/api/contact", s.handleContact)
	s.mux.HandleFunc("/api/referral", s.handleReferral)
	s.mux.HandleFunc("/api/application", s.handleApplication)

	s.pageRoutes()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if err := s.app.HealthCheck(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "database check failed",
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"database":  "connected",
	})
}

// session resolution: bearer token first, then the portal cookie.

func sessionToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r); ok {
		return token, true
	}
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", false
	}
	return cookie.Value, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := sessionToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// auth handlers

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	User         domain.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
	AllDevices   bool   `json:"allDevices,omitempty"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, accessToken, refreshToken, err := s.app.SignUp(req.Email, req.Password)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	s.setSessionCookie(w, accessToken)
	writeJSON(w, http.StatusCreated, authResponse{Token: accessToken, RefreshToken: refreshToken, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, accessToken, refreshToken, err := s.app.SignIn(req.Email, req.Password)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	s.setSessionCookie(w, accessToken)
	writeJSON(w, http.StatusOK, authResponse{Token: accessToken, RefreshToken: refreshToken, User: user})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req refreshRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, accessToken, refreshToken, err := s.app.Refresh(req.RefreshToken)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	s.setSessionCookie(w, accessToken)
	writeJSON(w, http.StatusOK, authResponse{Token: accessToken, RefreshToken: refreshToken, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req logoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if token, ok := sessionToken(r); ok {
		if req.AllDevices {
			s.app.SignOutAll(token)
		} else {
			s.app.SignOut(token, req.RefreshToken)
		}
	}
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type clientInitRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

func (s *Server) handleClientInit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req clientInitRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.InitClient(req.UserID, req.Email, req.Name); err != nil {
		var verr *app.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "errors": verr.Fields})
			return
		}
		util.LoggerFromContext(r.Context()).Error("client init", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "client provisioning failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// client data handlers

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	client, ok, err := s.app.ClientProfile(user.ID)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("client profile", "err", err)
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.ClientStats(r.Context(), user.ID)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("client stats", "err", err)
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.writeListing(w, r, "projects", func() (any, error) {
		items, err := s.app.ClientProjects(user.ID)
		return asItems(items, err)
	})
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.writeListing(w, r, "invoices", func() (any, error) {
		items, err := s.app.ClientInvoices(user.ID)
		return asItems(items, err)
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.writeListing(w, r, "metrics", func() (any, error) {
		items, err := s.app.ClientMetrics(user.ID)
		return asItems(items, err)
	})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.writeListing(w, r, "tasks", func() (any, error) {
		items, err := s.app.ClientTasks(user.ID)
		return asItems(items, err)
	})
}

func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.writeListing(w, r, "assets", func() (any, error) {
		items, err := s.app.ClientAssets(user.ID)
		return asItems(items, err)
	})
}

type taskUpdateRequest struct {
	Completed *bool `json:"completed"`
}

func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/client/tasks/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req taskUpdateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required")
		return
	}
	task, err := s.app.UpdateTaskStatus(user.ID, id, *req.Completed)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// handleProjectSubtree routes /api/client/projects/{id}[/invoices|metrics|tasks|assets[...]].
func (s *Server) handleProjectSubtree(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/client/projects/")
	parts := strings.Split(path, "/")
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		project, err := s.app.ProjectDetails(user.ID, id)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, project)
		return
	}

	switch parts[1] {
	case "invoices":
		if len(parts) != 2 || r.Method != http.MethodGet {
			s.subtreeNotFoundOrMethod(w, r, len(parts) == 2)
			return
		}
		s.writeProjectListing(w, r, user.ID, id, func() (any, error) {
			items, err := s.app.ProjectInvoices(user.ID, id)
			return asItems(items, err)
		})
	case "metrics":
		if len(parts) != 2 || r.Method != http.MethodGet {
			s.subtreeNotFoundOrMethod(w, r, len(parts) == 2)
			return
		}
		s.writeProjectListing(w, r, user.ID, id, func() (any, error) {
			items, err := s.app.ProjectMetrics(user.ID, id)
			return asItems(items, err)
		})
	case "tasks":
		if len(parts) != 2 || r.Method != http.MethodGet {
			s.subtreeNotFoundOrMethod(w, r, len(parts) == 2)
			return
		}
		s.writeProjectListing(w, r, user.ID, id, func() (any, error) {
			items, err := s.app.ProjectTasks(user.ID, id)
			return asItems(items, err)
		})
	case "assets":
		s.handleProjectAssets(w, r, user, id, parts)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) subtreeNotFoundOrMethod(w http.ResponseWriter, r *http.Request, methodProblem bool) {
	if methodProblem {
		methodNotAllowed(w)
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleProjectAssets(w http.ResponseWriter, r *http.Request, user domain.User, projectID string, parts []string) {
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		s.writeProjectListing(w, r, user.ID, projectID, func() (any, error) {
			items, err := s.app.ProjectAssets(user.ID, projectID)
			return asItems(items, err)
		})
	case len(parts) == 2 && r.Method == http.MethodPost:
		s.handleUploadAsset(w, r, user, projectID)
	case len(parts) == 4 && parts[3] == "download" && r.Method == http.MethodGet:
		url, filename, err := s.app.AssetDownloadURL(r.Context(), user.ID, projectID, parts[2])
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": url, "fileName": filename})
	case len(parts) == 2 || (len(parts) == 4 && parts[3] == "download"):
		methodNotAllowed(w)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleUploadAsset(w http.ResponseWriter, r *http.Request, user domain.User, projectID string) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	if !s.isExtensionAllowed(header.Filename) {
		writeError(w, http.StatusBadRequest, "unsupported file type")
		return
	}
	asset, err := s.app.UploadAsset(r.Context(), user.ID, projectID, header.Filename, file, header.Size)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// intake handlers

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.intakeLimiter, "too many submissions") {
		return
	}
	var req app.ContactRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.writeIntakeResult(w, r, s.app.SubmitContact(r.Context(), req))
}

func (s *Server) handleReferral(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.intakeLimiter, "too many submissions") {
		return
	}
	var req app.ReferralRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.writeIntakeResult(w, r, s.app.SubmitReferral(r.Context(), req))
}

func (s *Server) handleApplication(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.intakeLimiter, "too many submissions") {
		return
	}
	var req app.ApplicationRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.writeIntakeResult(w, r, s.app.SubmitApplication(r.Context(), req))
}

func (s *Server) writeIntakeResult(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	var verr *app.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "errors": verr.Fields})
		return
	}
	util.LoggerFromContext(r.Context()).Error("intake submission", "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "submission failed"})
}

// shared helpers

// writeListing degrades to an empty listing when a store read fails so a
// flaky dependency renders an empty dashboard section, not an error page.
func (s *Server) writeListing(w http.ResponseWriter, r *http.Request, name string, fetch func() (any, error)) {
	payload, err := fetch()
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("list "+name, "err", err)
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}, "count": 0})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// writeProjectListing is like writeListing but ownership failures still
// surface as 404.
func (s *Server) writeProjectListing(w http.ResponseWriter, r *http.Request, userID, projectID string, fetch func() (any, error)) {
	payload, err := fetch()
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		util.LoggerFromContext(r.Context()).Error("list project items", "project_id", projectID, "err", err)
		writeJSON(w, http.StatusOK, map[string]any{"items": []any{}, "count": 0})
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func asItems[T any](items []T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return map[string]any{"items": items, "count": len(items)}, nil
}

func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	var policyErr auth.PolicyError
	switch {
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrInvalidRefreshToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrEmailAndPasswordRequired),
		errors.Is(err, app.ErrRefreshTokenRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &policyErr):
		writeError(w, http.StatusBadRequest, policyErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *app.ValidationError
	switch {
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "errors": verr.Fields})
	case errors.Is(err, app.ErrUploadFailed):
		writeError(w, http.StatusBadGateway, "upload failed")
	case errors.Is(err, app.ErrMetadataWriteFailed):
		util.LoggerFromContext(r.Context()).Error("asset metadata write", "err", err)
		writeError(w, http.StatusInternalServerError, "asset could not be saved")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) isExtensionAllowed(filename string) bool {
	if len(s.allowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := s.allowedExtensions[ext]
	return ok
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 50 * 1024 * 1024
	}
	return value
}

func normalizeExtensions(exts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = struct{}{}
	}
	return out
}
