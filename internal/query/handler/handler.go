package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"credreg/internal/credential/models"
	"credreg/internal/query"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	audit "credreg/pkg/platform/audit"
	"credreg/pkg/platform/httputil"
	"credreg/pkg/requestcontext"
)

type Service interface {
	ListAllSubjectPrincipals(ctx context.Context, actor id.Principal) ([]id.Principal, error)
	ListAllRecordsAcrossSubjects(ctx context.Context, actor id.Principal, d id.Domain) ([]*models.Record, error)
	ListPendingAcrossDomains(ctx context.Context, actor id.Principal) ([]*models.Record, error)
	Dashboard(ctx context.Context, actor id.Principal) (*query.Dashboard, error)
	ReadAudit(ctx context.Context, actor, principal id.Principal, limit int) ([]audit.Event, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/subjects", h.HandleSubjects)
	r.Get("/dashboard", h.HandleDashboard)
	r.Get("/pending", h.HandlePending)
	r.Get("/admin/{domain}/records", h.HandleAllRecords)
	r.Get("/admin/audit", h.HandleAudit)
}

type principalsResponse struct {
	Principals []id.Principal `json:"principals"`
}

type recordsResponse struct {
	Records []*models.Record `json:"records"`
}

type eventsResponse struct {
	Events []audit.Event `json:"events"`
}

func (h *Handler) HandleSubjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.service.ListAllSubjectPrincipals(ctx, requestcontext.Actor(ctx))
	if err != nil {
		h.fail(ctx, w, "list subjects failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, principalsResponse{Principals: out})
}

func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.service.Dashboard(ctx, requestcontext.Actor(ctx))
	if err != nil {
		h.fail(ctx, w, "dashboard failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.service.ListPendingAcrossDomains(ctx, requestcontext.Actor(ctx))
	if err != nil {
		h.fail(ctx, w, "list pending failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recordsResponse{Records: out})
}

func (h *Handler) HandleAllRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := id.ParseDomain(chi.URLParam(r, "domain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.service.ListAllRecordsAcrossSubjects(ctx, requestcontext.Actor(ctx), d)
	if err != nil {
		h.fail(ctx, w, "list all records failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recordsResponse{Records: out})
}

// HandleAudit serves GET /admin/audit?principal=&limit=.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var principal id.Principal
	if raw := q.Get("principal"); raw != "" {
		p, err := id.ParsePrincipal(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		principal = p
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	out, err := h.service.ReadAudit(ctx, requestcontext.Actor(ctx), principal, limit)
	if err != nil {
		h.fail(ctx, w, "read audit failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eventsResponse{Events: out})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"actor", requestcontext.Actor(ctx),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
