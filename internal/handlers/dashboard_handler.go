package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrobias/internal/interfaces"
	"github.com/ternarybob/macrobias/internal/models"
)

const (
	defaultNewsLimit = 50
	maxNewsLimit     = 200

	refreshTimeout = 60 * time.Second
)

// DashboardHandler serves the latest snapshot and manual refresh.
type DashboardHandler struct {
	dashboard interfaces.DashboardService
	calendar  models.CalendarWidget
	logger    arbor.ILogger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboard interfaces.DashboardService, calendar models.CalendarWidget, logger arbor.ILogger) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		calendar:  calendar,
		logger:    logger,
	}
}

// DashboardResponse is the full dashboard payload
type DashboardResponse struct {
	*models.Snapshot
	Calendar models.CalendarWidget `json:"calendar"`
}

// DashboardHandler returns the full snapshot
func (h *DashboardHandler) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, DashboardResponse{Snapshot: snap, Calendar: h.calendar})
}

// VerdictsHandler returns every verdict, or one with ?asset=
func (h *DashboardHandler) VerdictsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	if asset := r.URL.Query().Get("asset"); asset != "" {
		v, found := snap.Verdict(strings.ToUpper(asset))
		if !found {
			WriteError(w, http.StatusNotFound, "Unknown asset: "+asset)
			return
		}
		WriteJSON(w, http.StatusOK, v)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cycle_id":     snap.CycleID,
		"generated_at": snap.GeneratedAt,
		"verdicts":     snap.Verdicts,
	})
}

// NewsHandler returns one topic bucket with ?topic=, otherwise the undifferentiated feed
func (h *DashboardHandler) NewsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	limit := GetLimitParam(r, defaultNewsLimit, maxNewsLimit)

	if topic := r.URL.Query().Get("topic"); topic != "" {
		var bucket *models.TopicNews
		for i := range snap.News {
			if strings.EqualFold(string(snap.News[i].Topic), topic) {
				bucket = &snap.News[i]
				break
			}
		}
		if bucket == nil {
			WriteError(w, http.StatusBadRequest, "Unknown topic: "+topic)
			return
		}
		WriteJSON(w, http.StatusOK, models.TopicNews{
			Topic:     bucket.Topic,
			Items:     head(bucket.Items, limit),
			Sentiment: bucket.Sentiment,
		})
		return
	}

	sentiment := make(map[models.Topic]float64, len(snap.News))
	for _, tn := range snap.News {
		sentiment[tn.Topic] = tn.Sentiment
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"feed":      head(snap.Feed, limit),
		"sentiment": sentiment,
	})
}

// QuotesHandler returns the normalized quotes of the latest cycle
func (h *DashboardHandler) QuotesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"generated_at": snap.GeneratedAt,
		"quotes":       snap.Quotes,
	})
}

// CalendarHandler returns the economic calendar widget settings
func (h *DashboardHandler) CalendarHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.calendar)
}

// RefreshHandler invalidates cached quotes and news and runs a cycle
func (h *DashboardHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	h.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Manual refresh requested")
	h.dashboard.Invalidate()

	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	snap, err := h.dashboard.Refresh(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Manual refresh failed")
		WriteError(w, http.StatusServiceUnavailable, "Refresh failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, DashboardResponse{Snapshot: snap, Calendar: h.calendar})
}

func (h *DashboardHandler) snapshot(w http.ResponseWriter, r *http.Request) (*models.Snapshot, bool) {
	snap, err := h.dashboard.Snapshot(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to get dashboard snapshot")
		WriteError(w, http.StatusServiceUnavailable, "Dashboard unavailable: "+err.Error())
		return nil, false
	}
	return snap, true
}

func head(items []models.NewsItem, n int) []models.NewsItem {
	if items == nil {
		return []models.NewsItem{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}
