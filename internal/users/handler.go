package users

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartsprint/smartsprint/internal/platform/httpx"
	"github.com/smartsprint/smartsprint/internal/rbac"
	"github.com/smartsprint/smartsprint/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes on the /api router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users", h.listUsers)
	r.Get("/users/{userID}", h.getUser)
	r.With(h.rbac.RequireAny(shared.PermUsersEdit)).Put("/users/{userID}/role", h.setRole)
}

type userResponse struct {
	ID            int64      `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	RoleID        *int64     `json:"role_id"`
	RoleKey       *string    `json:"role_key"`
	RoleName      *string    `json:"role_name"`
	AvatarURL     *string    `json:"avatar_url"`
	IsActive      bool       `json:"is_active"`
	EmailVerified bool       `json:"email_verified"`
	LastLogin     *time.Time `json:"last_login"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RoleID is a pointer so an explicit null clears the role.
type setRoleRequest struct {
	RoleID *int64 `json:"role_id" validate:"omitempty,gt=0"`
}

func toResponse(u User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		RoleID:        u.RoleID,
		RoleKey:       u.RoleKey,
		RoleName:      u.RoleName,
		AvatarURL:     u.AvatarURL,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	users, err := h.service.ListUsers(r.Context(), filters)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toResponse(u))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(user))
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "userID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req setRoleRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.SetRole(r.Context(), id, req.RoleID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(user))
}

func parseFilters(r *http.Request) (ListFilters, error) {
	q := r.URL.Query()
	skip, err := intParam(q.Get("skip"), "skip")
	if err != nil {
		return ListFilters{}, err
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		return ListFilters{}, err
	}
	page, err := shared.NewPage(skip, limit)
	if err != nil {
		return ListFilters{}, err
	}
	filters := ListFilters{Page: page, RoleKey: q.Get("role_key")}
	if raw := q.Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return ListFilters{}, fmt.Errorf("invalid is_active %q: %w", raw, shared.ErrValidation)
		}
		filters.IsActive = &active
	}
	return filters, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, shared.ErrValidation)
	}
	return v, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if shared.Kind(err) == "persistence_failure" && h.logger != nil {
		h.logger.ErrorContext(r.Context(), "users request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
