package moderation

import (
	"github.com/go-chi/chi/v5"
)

// Routes returns moderation routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Called by post/comment/chat submission handlers
	r.Post("/evaluate", h.Evaluate)

	// Review surface for the admin collaborator
	r.Get("/reports", h.ListReports)
	r.Get("/reports/{id}", h.GetReport)
	r.Post("/reports/{id}/resolve", h.ResolveReport)

	// Audit trail, read-only
	r.Get("/logs", h.ListLogs)

	return r
}
