package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/jbt95/trenes/internal/history"
)

// IndexLister is used by /health to check storage connectivity
type IndexLister interface {
	ListIndex(ctx context.Context) ([]history.IndexEntry, error)
}

// NewRouter wires the handler and health check behind CORS
func NewRouter(h *Handler, storage IndexLister, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", healthHandler(storage))

	r.Get("/vehicle-positions", h.GetVehiclePositions)
	r.Get("/alerts", h.GetAlerts)
	r.Get("/insights", h.GetInsights)

	r.Route("/history", func(r chi.Router) {
		r.Get("/summary", h.GetHistorySummary)
		r.Get("/snapshots", h.ListSnapshots)
		r.Get("/snapshots/{id}", h.GetSnapshot)
		r.Post("/capture", h.Capture)
	})

	return r
}

func healthHandler(storage IndexLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if _, err := storage.ListIndex(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":    "error",
				"storage":   "disconnected",
				"timestamp": time.Now().UTC(),
				"error":     err.Error(),
			})
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"storage":   "connected",
			"timestamp": time.Now().UTC(),
		})
	}
}
