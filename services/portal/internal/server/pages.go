package server

import (
	"embed"
	"net/http"

	"meridian/internal/util"
)

//go:embed static/*.html
var pageFS embed.FS

// marketingPages maps public routes to their embedded templates. The home
// page is handled separately because "/" matches everything on a ServeMux.
var marketingPages = map[string]string{
	"/divisions":  "static/divisions.html",
	"/about":      "static/about.html",
	"/pricing":    "static/pricing.html",
	"/contact":    "static/contact.html",
	"/careers":    "static/careers.html",
	"/referral":   "static/referral.html",
	"/insights":   "static/insights.html",
	"/industries": "static/industries.html",
}

func (s *Server) pageRoutes() {
	s.mux.Handle("/", util.WithPageSecurityHeaders(http.HandlerFunc(s.handleHome)))
	for route, file := range marketingPages {
		s.mux.Handle(route, util.WithPageSecurityHeaders(servePage(file)))
	}
	s.mux.Handle(LoginPath, util.WithPageSecurityHeaders(servePage("static/login.html")))
	dashboard := util.WithPageSecurityHeaders(servePage("static/dashboard.html"))
	s.mux.Handle("/client/dashboard", s.guardedPage(dashboard))
	s.mux.Handle("/client/dashboard/", s.guardedPage(dashboard))
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	servePage("static/home.html").ServeHTTP(w, r)
}

func servePage(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w)
			return
		}
		data, err := pageFS.ReadFile(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(data)
		}
	})
}
