package roles

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartsprint/smartsprint/internal/platform/httpx"
	"github.com/smartsprint/smartsprint/internal/rbac"
	"github.com/smartsprint/smartsprint/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

type roleResponse struct {
	ID        int64     `json:"id"`
	Key       string    `json:"role_key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type renameRequest struct {
	Name string `json:"name" validate:"required"`
}

func toResponse(role Role) roleResponse {
	return roleResponse{ID: role.ID, Key: role.Key, Name: role.Name, CreatedAt: role.CreatedAt}
}

// MountRoutes registers role routes on the /api router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.list)
	r.Get("/roles/{roleID}", h.get)
	r.With(h.rbac.RequireAny(shared.PermRolesEdit)).Patch("/roles/{roleID}", h.rename)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toResponse(role))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(role))
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req renameRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.RenameRole(r.Context(), id, req.Name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(role))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if shared.Kind(err) == "persistence_failure" && h.logger != nil {
		h.logger.ErrorContext(r.Context(), "roles request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
