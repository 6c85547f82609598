package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"credreg/internal/credential/models"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	"credreg/pkg/platform/httputil"
	"credreg/pkg/requestcontext"
)

// Service is the credential engine as seen by HTTP.
type Service interface {
	RegisterIssuer(ctx context.Context, d id.Domain, actor id.Principal, orgName string, metadata map[string]string, ref string) (*models.IssuerRegistration, error)
	GetIssuer(ctx context.Context, d id.Domain, actor, p id.Principal) (*models.IssuerRegistration, error)
	ListIssuers(ctx context.Context, d id.Domain, actor id.Principal) ([]*models.IssuerRegistration, error)
	CreateRecord(ctx context.Context, d id.Domain, actor, subject id.Principal, payload json.RawMessage, documentRef string) (*models.Record, error)
	GetRecord(ctx context.Context, d id.Domain, actor id.Principal, rid uint64) (*models.Record, error)
	ListRecordsOfSubject(ctx context.Context, d id.Domain, actor, subject id.Principal) ([]*models.Record, error)
	RequestVerification(ctx context.Context, d id.Domain, actor id.Principal, rid uint64) (*models.Record, error)
	ApproveVerification(ctx context.Context, d id.Domain, actor id.Principal, rid uint64) (*models.Record, error)
	RejectVerification(ctx context.Context, d id.Domain, actor id.Principal, rid uint64, reason string) (*models.Record, error)
	ListPendingForIssuer(ctx context.Context, d id.Domain, actor, issuer id.Principal) ([]*models.Record, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the same endpoint set under /{domain} for every domain.
func (h *Handler) Register(r chi.Router) {
	for _, d := range id.AllDomains() {
		r.Route("/"+string(d), func(r chi.Router) {
			h.mount(r, d)
		})
	}
}

func (h *Handler) mount(r chi.Router, d id.Domain) {
	r.Post("/issuers", func(w http.ResponseWriter, r *http.Request) { h.handleRegisterIssuer(w, r, d) })
	r.Get("/issuers", func(w http.ResponseWriter, r *http.Request) { h.handleListIssuers(w, r, d) })
	r.Get("/issuers/{principal}", func(w http.ResponseWriter, r *http.Request) { h.handleGetIssuer(w, r, d) })
	r.Post("/records", func(w http.ResponseWriter, r *http.Request) { h.handleCreateRecord(w, r, d) })
	r.Get("/records", func(w http.ResponseWriter, r *http.Request) { h.handleListRecords(w, r, d) })
	r.Get("/records/{id}", func(w http.ResponseWriter, r *http.Request) { h.handleGetRecord(w, r, d) })
	r.Post("/records/{id}/request-verification", func(w http.ResponseWriter, r *http.Request) {
		h.decide(w, r, d, h.service.RequestVerification)
	})
	r.Post("/records/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		h.decide(w, r, d, h.service.ApproveVerification)
	})
	r.Post("/records/{id}/reject", func(w http.ResponseWriter, r *http.Request) { h.handleReject(w, r, d) })
	r.Get("/pending", func(w http.ResponseWriter, r *http.Request) { h.handlePending(w, r, d) })
}

type issuersResponse struct {
	Issuers []*models.IssuerRegistration `json:"issuers"`
}

type recordsResponse struct {
	Records []*models.Record `json:"records"`
}

func (h *Handler) handleRegisterIssuer(w http.ResponseWriter, r *http.Request, d id.Domain) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.RegisterIssuerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	reg, err := h.service.RegisterIssuer(ctx, d, requestcontext.Actor(ctx), req.OrgName, req.OrgMetadata, req.RegistrationRef)
	if err != nil {
		h.fail(ctx, w, "register issuer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, reg)
}

func (h *Handler) handleListIssuers(w http.ResponseWriter, r *http.Request, d id.Domain) {
	ctx := r.Context()
	regs, err := h.service.ListIssuers(ctx, d, requestcontext.Actor(ctx))
	if err != nil {
		h.fail(ctx, w, "list issuers failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, issuersResponse{Issuers: regs})
}

func (h *Handler) handleGetIssuer(w http.ResponseWriter, r *http.Request, d id.Domain) {
	ctx := r.Context()
	p, err := id.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reg, err := h.service.GetIssuer(ctx, d, requestcontext.Actor(ctx), p)
	if err != nil {
		h.fail(ctx, w, "get issuer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reg)
}

func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request, d id.Domain) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateRecordRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	rec, err := h.service.CreateRecord(ctx, d, requestcontext.Actor(ctx), req.ParsedSubject(), req.Payload, req.DocumentRef)
	if err != nil {
		h.fail(ctx, w, "create record failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

// handleListRecords serves GET /records?subject=. Without a subject the actor
// lists its own records.
func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request, d id.Domain) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	subject := actor
	if raw := r.URL.Query().Get("subject"); raw != "" {
		p, err := id.ParsePrincipal(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		subject = p
	}
	recs, err := h.service.ListRecordsOfSubject(ctx, d, actor, subject)
	if err != nil {
		h.fail(ctx, w, "list records failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recordsResponse{Records: recs})
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request, d id.Domain) {
	ctx := r.Context()
	rid, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.GetRecord(ctx, d, requestcontext.Actor(ctx), rid)
	if err != nil {
		h.fail(ctx, w, "get record failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, d id.Domain, fn func(context.Context, id.Domain, id.Principal, uint64) (*models.Record, error)) {
	ctx := r.Context()
	rid, ok := recordID(w, r)
	if !ok {
		return
	}
	rec, err := fn(ctx, d, requestcontext.Actor(ctx), rid)
	if err != nil {
		h.fail(ctx, w, "verification transition failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// handleReject accepts an empty body; the reason then defaults.
func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request, d id.Domain) {
	ctx := r.Context()
	rid, ok := recordID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeOptionalAndPrepare[models.RejectRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	rec, err := h.service.RejectVerification(ctx, d, requestcontext.Actor(ctx), rid, req.Reason)
	if err != nil {
		h.fail(ctx, w, "reject verification failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handlePending(w http.ResponseWriter, r *http.Request, d id.Domain) {
	ctx := r.Context()
	var issuer id.Principal
	if raw := r.URL.Query().Get("issuer"); raw != "" {
		p, err := id.ParsePrincipal(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		issuer = p
	}
	recs, err := h.service.ListPendingForIssuer(ctx, d, requestcontext.Actor(ctx), issuer)
	if err != nil {
		h.fail(ctx, w, "list pending failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recordsResponse{Records: recs})
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

func recordID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	rid, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || rid == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "record id must be a positive integer"))
		return 0, false
	}
	return rid, true
}
