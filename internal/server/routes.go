package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Dashboard
	mux.HandleFunc("/api/dashboard", s.app.DashboardHandler.DashboardHandler) // GET - full snapshot
	mux.HandleFunc("/api/verdicts", s.app.DashboardHandler.VerdictsHandler)   // GET - ?asset=
	mux.HandleFunc("/api/news", s.app.DashboardHandler.NewsHandler)           // GET - ?topic=&limit=
	mux.HandleFunc("/api/quotes", s.app.DashboardHandler.QuotesHandler)       // GET
	mux.HandleFunc("/api/calendar", s.app.DashboardHandler.CalendarHandler)   // GET
	mux.HandleFunc("/api/refresh", s.app.DashboardHandler.RefreshHandler)     // POST - invalidate and run a cycle

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	// Root redirects to the dashboard JSON
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			s.app.APIHandler.NotFoundHandler(w, r)
			return
		}
		http.Redirect(w, r, "/api/dashboard", http.StatusFound)
	})

	return mux
}
