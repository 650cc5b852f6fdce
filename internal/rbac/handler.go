package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/smartsprint/smartsprint/internal/platform/httpx"
	"github.com/smartsprint/smartsprint/internal/shared"
)

// Handler exposes the permission API.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      Middleware
	rateLimit func(http.Handler) http.Handler
}

// NewHandler builds a Handler. mutationsPerMinute bounds writes per acting
// user; zero disables the limiter.
func NewHandler(logger *slog.Logger, service *Service, rbac Middleware, mutationsPerMinute int) *Handler {
	limiter := func(next http.Handler) http.Handler { return next }
	if mutationsPerMinute > 0 {
		limiter = httprate.Limit(mutationsPerMinute, time.Minute,
			httprate.WithKeyFuncs(RateLimitKey),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "rate_limited", "Too Many Requests", "")
			}),
		)
	}
	return &Handler{logger: logger, service: service, rbac: rbac, rateLimit: limiter}
}

// MountRoutes registers permission, role grant and user override routes on
// the /api router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions", h.listPermissions)
	r.Get("/permissions/categories", h.listCategories)
	r.Get("/permissions/by-key/{key}", h.getPermissionByKey)
	r.Get("/permissions/{permissionID}", h.getPermission)
	r.Get("/roles/{roleID}/permissions", h.getRolePermissions)
	r.Get("/users/{userID}/permissions", h.getUserPermissions)
	r.Get("/users/{userID}/permissions/overrides", h.listOverrides)
	r.Get("/users/{userID}/permissions/effective", h.getEffectivePermissions)

	r.Group(func(r chi.Router) {
		r.Use(h.rateLimit)
		r.With(h.rbac.RequireAll(shared.PermPermissionsManage, shared.PermRolesEdit)).
			Put("/roles/{roleID}/permissions", h.replaceRolePermissions)
		r.With(h.rbac.RequireAny(shared.PermPermissionsManage)).
			Put("/users/{userID}/permissions/{key}", h.setOverride)
		r.With(h.rbac.RequireAny(shared.PermPermissionsManage)).
			Delete("/users/{userID}/permissions/{key}", h.clearOverride)
	})
}

// RateLimitKey keys the limiter by acting user, falling back to the client IP.
func RateLimitKey(r *http.Request) (string, error) {
	if actorID, ok := shared.ActorFromContext(r.Context()); ok {
		return "actor:" + strconv.FormatInt(actorID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.fail(w, r, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionResponses(perms))
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.fail(w, r, "list categories", err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "permissionID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	perm, err := h.service.GetPermission(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionResponse(perm))
}

func (h *Handler) getPermissionByKey(w http.ResponseWriter, r *http.Request) {
	perm, err := h.service.GetPermissionByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.fail(w, r, "get permission by key", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionResponse(perm))
}

func (h *Handler) getRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := httpx.IDParam(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	grants, err := h.service.RolePermissions(r.Context(), roleID)
	if err != nil {
		h.fail(w, r, "role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRolePermissionsResponse(grants))
}

func (h *Handler) replaceRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err := httpx.IDParam(r, "roleID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req replaceGrantsRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	grants, err := h.service.ReplaceRolePermissions(r.Context(), roleID, req.PermissionIDs)
	if err != nil {
		h.fail(w, r, "replace role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRolePermissionsResponse(grants))
}

func (h *Handler) getUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondResolved(w, r, userID)
}

func (h *Handler) getEffectivePermissions(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	keys, err := h.service.EffectivePermissions(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "effective permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, effectivePermissionsResponse{UserID: userID, Permissions: keys})
}

func (h *Handler) listOverrides(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	overrides, err := h.service.ListOverrides(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "list overrides", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOverrideResponses(overrides))
}

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	var req setOverrideRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if bodyKey := strings.TrimSpace(req.PermissionKey); bodyKey != "" && bodyKey != key {
		httpx.RespondError(w, invalid("permission_key %q does not match path key %q", bodyKey, key))
		return
	}
	if _, err := h.service.SetOverride(r.Context(), userID, key, *req.Granted, shared.ActorRef(r.Context())); err != nil {
		h.fail(w, r, "set override", err)
		return
	}
	h.respondResolved(w, r, userID)
}

func (h *Handler) clearOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.IDParam(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.ClearOverride(r.Context(), userID, chi.URLParam(r, "key")); err != nil {
		h.fail(w, r, "clear override", err)
		return
	}
	h.respondResolved(w, r, userID)
}

func (h *Handler) respondResolved(w http.ResponseWriter, r *http.Request, userID int64) {
	view, err := h.service.Resolve(r.Context(), userID)
	if err != nil {
		h.fail(w, r, "resolve permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserPermissionsResponse(view))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if shared.Kind(err) == "persistence_failure" && h.logger != nil {
		h.logger.ErrorContext(r.Context(), "rbac "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
