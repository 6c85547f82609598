package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"credreg/internal/identity/models"
	id "credreg/pkg/domain"
	dErrors "credreg/pkg/domain-errors"
	"credreg/pkg/platform/httputil"
	"credreg/pkg/requestcontext"
)

// Service is the identity registry as seen by HTTP.
type Service interface {
	RegisterUser(ctx context.Context, actor, p id.Principal, role id.Role, name, org, mail string) (*models.User, error)
	Deactivate(ctx context.Context, actor, p id.Principal) (*models.User, error)
	Reactivate(ctx context.Context, actor, p id.Principal) (*models.User, error)
	GetProfile(ctx context.Context, actor, p id.Principal) (*models.User, error)
	UpdateProfile(ctx context.Context, actor id.Principal, upd models.ProfileUpdate) (*models.User, error)
	ListByRole(ctx context.Context, actor id.Principal, role id.Role) ([]id.Principal, error)
	ListAll(ctx context.Context, actor id.Principal) ([]id.Principal, error)
	AuthorizeViewer(ctx context.Context, actor, viewer id.Principal) ([]id.Principal, error)
	RevokeViewer(ctx context.Context, actor, viewer id.Principal) ([]id.Principal, error)
	ListViewers(ctx context.Context, actor, owner id.Principal) ([]id.Principal, error)
	IsAuthorizedViewer(ctx context.Context, actor, owner, viewer id.Principal) (bool, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts identity endpoints. Callers apply authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/me", h.HandleGetMe)
	r.Patch("/me", h.HandleUpdateMe)
	r.Get("/me/viewers", h.HandleListMyViewers)
	r.Post("/me/viewers", h.HandleAuthorizeViewer)
	r.Delete("/me/viewers/{viewer}", h.HandleRevokeViewer)
	r.Post("/users", h.HandleRegisterUser)
	r.Get("/users", h.HandleListUsers)
	r.Get("/users/{principal}", h.HandleGetUser)
	r.Post("/users/{principal}/deactivate", h.HandleDeactivate)
	r.Post("/users/{principal}/reactivate", h.HandleReactivate)
	r.Get("/users/{principal}/viewers", h.HandleListViewers)
	r.Get("/users/{principal}/viewers/{viewer}", h.HandleCheckViewer)
}

type principalsResponse struct {
	Principals []id.Principal `json:"principals"`
}

type viewerCheckResponse struct {
	Owner      id.Principal `json:"owner"`
	Viewer     id.Principal `json:"viewer"`
	Authorized bool         `json:"authorized"`
}

func (h *Handler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	u, err := h.service.GetProfile(ctx, actor, actor)
	if err != nil {
		h.fail(ctx, w, "get profile failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.ProfileUpdate](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	u, err := h.service.UpdateProfile(ctx, requestcontext.Actor(ctx), *req)
	if err != nil {
		h.fail(ctx, w, "update profile failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) HandleRegisterUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.RegisterUserRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	u, err := h.service.RegisterUser(ctx, requestcontext.Actor(ctx),
		req.ParsedPrincipal(), req.ParsedRole(), req.DisplayName, req.OrganizationName, req.Email)
	if err != nil {
		h.fail(ctx, w, "register user failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, u)
}

// HandleListUsers serves GET /users (Admin) and GET /users?role=.
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	var (
		out []id.Principal
		err error
	)
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, perr := id.ParseRole(raw)
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		out, err = h.service.ListByRole(ctx, actor, role)
	} else {
		out, err = h.service.ListAll(ctx, actor)
	}
	if err != nil {
		h.fail(ctx, w, "list users failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, principalsResponse{Principals: out})
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := principalParam(w, r)
	if !ok {
		return
	}
	u, err := h.service.GetProfile(ctx, requestcontext.Actor(ctx), p)
	if err != nil {
		h.fail(ctx, w, "get user failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) HandleListMyViewers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)
	out, err := h.service.ListViewers(ctx, actor, actor)
	if err != nil {
		h.fail(ctx, w, "list viewers failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, principalsResponse{Principals: out})
}

func (h *Handler) HandleAuthorizeViewer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.ViewerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	out, err := h.service.AuthorizeViewer(ctx, requestcontext.Actor(ctx), req.ParsedViewer())
	if err != nil {
		h.fail(ctx, w, "authorize viewer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, principalsResponse{Principals: out})
}

func (h *Handler) HandleRevokeViewer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewer, ok := pathPrincipal(w, r, "viewer")
	if !ok {
		return
	}
	out, err := h.service.RevokeViewer(ctx, requestcontext.Actor(ctx), viewer)
	if err != nil {
		h.fail(ctx, w, "revoke viewer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, principalsResponse{Principals: out})
}

func (h *Handler) HandleListViewers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := principalParam(w, r)
	if !ok {
		return
	}
	out, err := h.service.ListViewers(ctx, requestcontext.Actor(ctx), owner)
	if err != nil {
		h.fail(ctx, w, "list viewers failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, principalsResponse{Principals: out})
}

func (h *Handler) HandleCheckViewer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, ok := principalParam(w, r)
	if !ok {
		return
	}
	viewer, ok := pathPrincipal(w, r, "viewer")
	if !ok {
		return
	}
	authorized, err := h.service.IsAuthorizedViewer(ctx, requestcontext.Actor(ctx), owner, viewer)
	if err != nil {
		h.fail(ctx, w, "check viewer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewerCheckResponse{Owner: owner, Viewer: viewer, Authorized: authorized})
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.Deactivate)
}

func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.Reactivate)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.Principal, id.Principal) (*models.User, error)) {
	ctx := r.Context()
	p, ok := principalParam(w, r)
	if !ok {
		return
	}
	u, err := fn(ctx, requestcontext.Actor(ctx), p)
	if err != nil {
		h.fail(ctx, w, "update user status failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
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

func principalParam(w http.ResponseWriter, r *http.Request) (id.Principal, bool) {
	return pathPrincipal(w, r, "principal")
}

func pathPrincipal(w http.ResponseWriter, r *http.Request, name string) (id.Principal, bool) {
	p, err := id.ParsePrincipal(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return p, true
}
