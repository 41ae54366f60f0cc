package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/interfaces"
)

type APIHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

// NewAPIHandler creates the version/health handler. scheduler may be nil when
// auto-refresh is disabled.
func NewAPIHandler(scheduler interfaces.SchedulerService, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.GetBuild(),
		"git_commit": common.GetGitCommit(),
	})
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	resp := map[string]interface{}{
		"status": "ok",
	}
	if h.scheduler != nil {
		resp["scheduler"] = h.scheduler.Status()
	}
	WriteJSON(w, http.StatusOK, resp)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"status":  "error",
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
