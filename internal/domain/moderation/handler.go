package moderation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mindhaven/mindhaven-api/internal/pkg/errorhandler"
	"github.com/mindhaven/mindhaven-api/internal/pkg/response"
	"github.com/mindhaven/mindhaven-api/internal/pkg/validator"
)

// Handler handles moderation HTTP requests
type Handler struct {
	pipeline *Pipeline
	reviews  *ReviewService
}

// NewHandler creates moderation handler
func NewHandler(pipeline *Pipeline, reviews *ReviewService) *Handler {
	return &Handler{
		pipeline: pipeline,
		reviews:  reviews,
	}
}

// Evaluate runs the moderation pipeline over one content submission.
// The response is the flat verdict shape the submission handlers consume,
// not the standard envelope. Whatever goes wrong internally, the caller
// gets a well-formed non-flagging body: moderation malfunction must never
// block content creation upstream.
// POST /moderation/evaluate
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.Raw(w, http.StatusBadRequest, EvaluateError{Error: "Invalid request body"})
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.Raw(w, http.StatusBadRequest, EvaluateError{Error: "Invalid content type"})
		return
	}

	verdict, err := h.pipeline.Evaluate(r.Context(), req.Submission())
	if err != nil {
		if errors.Is(err, ErrContentRequired) {
			response.Raw(w, http.StatusBadRequest, EvaluateError{Error: "Content required"})
			return
		}

		log.Error().Err(err).Msg("Moderation pipeline failed")
		response.Raw(w, http.StatusInternalServerError, EvaluateError{Error: "Service error - content not moderated"})
		return
	}

	response.Raw(w, http.StatusOK, NewVerdictResponse(verdict))
}

// ListReports lists AI-filed reports for review
// GET /moderation/reports
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	filter := &ListReportsFilter{
		Status: ReportStatus(r.URL.Query().Get("status")),
		Limit:  parseQueryInt(r, "limit", 50),
		Offset: parseQueryInt(r, "offset", 0),
	}

	reports, err := h.reviews.ListReports(r.Context(), filter)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list reports", err)
		return
	}

	total, _ := h.reviews.CountReports(r.Context(), filter)

	response.WithMeta(w, reports, response.Meta{
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetReport returns a single report
// GET /moderation/reports/{id}
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid report ID")
		return
	}

	report, err := h.reviews.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			response.NotFound(w, "Report not found")
			return
		}
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get report", err)
		return
	}

	response.OK(w, report)
}

// ResolveReport applies an admin decision to a report
// POST /moderation/reports/{id}/resolve
func (h *Handler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid report ID")
		return
	}

	var req ResolveReportRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if err := h.reviews.ResolveReport(r.Context(), id, &req); err != nil {
		switch {
		case errors.Is(err, ErrReportNotFound):
			response.NotFound(w, "Report not found")
		case errors.Is(err, ErrReportClosed):
			response.Conflict(w, "Report already reviewed")
		case errors.Is(err, ErrInvalidAction):
			response.BadRequest(w, "Invalid action")
		default:
			errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to resolve report", err)
		}
		return
	}

	response.OK(w, map[string]string{"message": "Report updated successfully"})
}

// ListLogs exposes the audit trail, read-only
// GET /moderation/logs
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	filter := &ListLogsFilter{
		ContentType: ContentType(r.URL.Query().Get("contentType")),
		Limit:       parseQueryInt(r, "limit", 50),
		Offset:      parseQueryInt(r, "offset", 0),
	}

	entries, err := h.reviews.ListLogEntries(r.Context(), filter)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list log entries", err)
		return
	}

	total, _ := h.reviews.CountLogEntries(r.Context(), filter)

	response.WithMeta(w, entries, response.Meta{
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func parseQueryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}
