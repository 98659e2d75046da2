package server

import (
	"net/http"

	"meridian/internal/util"
	"meridian/pkg/domain"
)

// LoginPath is where unauthenticated portal visitors are sent.
const LoginPath = "/client/login"

// guardedPage wraps a portal page behind a session check. Anything short of
// a verified session with a portal-eligible client record redirects to the
// login page. Lookup failures redirect too rather than rendering the page.
func (s *Server) guardedPage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := sessionToken(r)
		if !ok {
			redirectToLogin(w, r)
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			redirectToLogin(w, r)
			return
		}
		client, found, err := s.app.ClientForUser(user.ID)
		if err != nil {
			util.LoggerFromContext(r.Context()).Warn("portal guard lookup", "user_id", user.ID, "err", err)
			redirectToLogin(w, r)
			return
		}
		if !found || !portalRole(client.Role) {
			redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func portalRole(role domain.ClientRole) bool {
	return role == domain.RoleClient || role == domain.RoleAdmin
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, LoginPath, http.StatusFound)
}
