package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mailforge/campaign-pipeline/internal/domain"
	"github.com/mailforge/campaign-pipeline/internal/service"
	"github.com/mailforge/campaign-pipeline/internal/tracing"
)

// CampaignHandler handles campaign CRUD and lifecycle endpoints. The acting
// user comes from the X-User-ID header; authentication is terminated
// upstream.
type CampaignHandler struct {
	svc    *service.CampaignService
	logger *zap.Logger
}

func NewCampaignHandler(svc *service.CampaignService, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{svc: svc, logger: logger}
}

// Create handles POST /api/v1/campaigns
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req domain.CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	c, err := h.svc.Create(r.Context(), userID, req)
	if err != nil {
		h.logger.Warn("create campaign failed",
			zap.String("trace_id", tracing.TraceID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// List handles GET /api/v1/campaigns
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	filter := parseListFilter(r)
	campaigns, total, err := h.svc.List(r.Context(), userID, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"data":  campaigns,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
	})
}

// GetByID handles GET /api/v1/campaigns/{id}
func (h *CampaignHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Update handles PATCH /api/v1/campaigns/{id}
func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req domain.UpdateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	c, err := h.svc.Update(r.Context(), userID, chi.URLParam(r, "id"), req)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/v1/campaigns/{id}
func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Prepare handles POST /api/v1/campaigns/{id}/prepare
func (h *CampaignHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Prepare(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Warn("prepare campaign failed",
			zap.String("trace_id", tracing.TraceID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Start handles POST /api/v1/campaigns/{id}/start
func (h *CampaignHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Start(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Warn("start campaign failed",
			zap.String("trace_id", tracing.TraceID(r.Context())),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, res)
}

// Metrics handles GET /api/v1/campaigns/{id}/metrics
func (h *CampaignHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	c, stats, err := h.svc.Status(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	progress := 0.0
	if c.TotalRecipients > 0 {
		progress = float64(stats.Settled()) / float64(c.TotalRecipients)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":               c.ID,
		"total_recipients": c.TotalRecipients,
		"sent":             stats.Sent,
		"failed":           stats.Failed,
		"pending":          stats.Pending,
		"settled":          stats.Settled(),
		"progress":         progress,
	})
}

// Status handles GET /api/v1/campaigns/{id}/status
func (h *CampaignHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	c, stats, err := h.svc.Status(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":               c.ID,
		"status":           c.Status,
		"total_recipients": c.TotalRecipients,
		"sent":             stats.Sent,
		"failed":           stats.Failed,
		"pending":          stats.Pending,
	})
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return "", false
	}
	return userID, true
}

func parseListFilter(r *http.Request) domain.ListFilter {
	q := r.URL.Query()
	filter := domain.ListFilter{Page: 1, Limit: 20}

	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		filter.Page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l <= 100 {
		filter.Limit = l
	}
	if s := q.Get("status"); s != "" {
		st := domain.CampaignStatus(s)
		filter.Status = &st
	}
	return filter
}
