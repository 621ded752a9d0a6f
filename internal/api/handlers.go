// Package api serves the feeds, insights and history over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jbt95/trenes/internal/feed"
	"github.com/jbt95/trenes/internal/history"
	"github.com/jbt95/trenes/internal/insights"
)

// FeedReader fetches the normalized upstream feeds
type FeedReader interface {
	VehiclePositions(ctx context.Context) ([]feed.VehiclePosition, error)
	Alerts(ctx context.Context) ([]feed.Alert, error)
}

// InsightsBuilder computes a snapshot on demand
type InsightsBuilder interface {
	Build(ctx context.Context) (*insights.Snapshot, error)
}

// HistoryService is the history surface the handlers need
type HistoryService interface {
	Capture(ctx context.Context) (string, error)
	ListSnapshots(ctx context.Context, from, to *time.Time) ([]history.SnapshotInfo, error)
	GetSnapshot(ctx context.Context, id string, now time.Time) (*history.SnapshotView, error)
	Summary(ctx context.Context) (*history.Summary, error)
}

// Handler serves every endpoint
type Handler struct {
	feeds    FeedReader
	insights InsightsBuilder
	history  HistoryService
	loc      *time.Location
	now      func() time.Time
}

// NewHandler creates a handler. loc anchors YYYY-MM-DD date filters.
func NewHandler(feeds FeedReader, builder InsightsBuilder, hist HistoryService, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		feeds:    feeds,
		insights: builder,
		history:  hist,
		loc:      loc,
		now:      time.Now,
	}
}

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// CaptureResponse is the JSON response for POST /history/capture
type CaptureResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: failed to encode response: %v", err)
	}
}

// writeError maps history.ErrNotFound to 404 and everything else to 500,
// carrying the underlying message
func writeError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, history.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Details: map[string]interface{}{
			"internal": err.Error(),
		},
	})
}

// GetVehiclePositions handles GET /vehicle-positions
func (h *Handler) GetVehiclePositions(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.feeds.VehiclePositions(r.Context())
	if err != nil {
		writeError(w, "Failed to retrieve vehicle positions", err)
		return
	}
	if vehicles == nil {
		vehicles = []feed.VehiclePosition{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// GetAlerts handles GET /alerts
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.feeds.Alerts(r.Context())
	if err != nil {
		writeError(w, "Failed to retrieve alerts", err)
		return
	}
	if alerts == nil {
		alerts = []feed.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// GetInsights handles GET /insights
func (h *Handler) GetInsights(w http.ResponseWriter, r *http.Request) {
	snap, err := h.insights.Build(r.Context())
	if err != nil {
		writeError(w, "Failed to compute insights", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetHistorySummary handles GET /history/summary
func (h *Handler) GetHistorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.history.Summary(r.Context())
	if err != nil {
		writeError(w, "Failed to summarize history", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ListSnapshots handles GET /history/snapshots?from=&to=
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	from, err := parseTimeParam(query.Get("from"), false, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid from parameter", Details: map[string]interface{}{"internal": err.Error()}})
		return
	}
	to, err := parseTimeParam(query.Get("to"), true, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid to parameter", Details: map[string]interface{}{"internal": err.Error()}})
		return
	}

	snapshots, err := h.history.ListSnapshots(r.Context(), from, to)
	if err != nil {
		writeError(w, "Failed to list snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// GetSnapshot handles GET /history/snapshots/{id}
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "id parameter is required"})
		return
	}

	view, err := h.history.GetSnapshot(r.Context(), id, h.now())
	if err != nil {
		writeError(w, "Failed to load snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Capture handles POST /history/capture
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	id, err := h.history.Capture(r.Context())
	if err != nil {
		writeError(w, "Failed to capture snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, CaptureResponse{Success: true, ID: id})
}
