package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smartsprint/smartsprint/internal/observability"
	"github.com/smartsprint/smartsprint/internal/platform/httpx"
	"github.com/smartsprint/smartsprint/internal/rbac"
	"github.com/smartsprint/smartsprint/internal/roles"
	"github.com/smartsprint/smartsprint/internal/users"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VersionReporter exposes the permission change counter.
type VersionReporter interface {
	Version(ctx context.Context) (int64, error)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	PermissionsHandler *rbac.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	Database           Pinger
	ChangeVersion      VersionReporter
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with SmartSprint defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if params.Database != nil {
			if err := params.Database.Ping(ctx); err != nil {
				if params.Logger != nil {
					params.Logger.Warn("readiness check failed", slog.Any("error", err))
				}
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		body := map[string]any{"status": "ready"}
		if params.ChangeVersion != nil {
			// Redis is optional; a failed read only drops the field.
			if version, err := params.ChangeVersion.Version(ctx); err == nil {
				body["permissions_version"] = version
			} else if params.Logger != nil {
				params.Logger.Warn("permission version unavailable", slog.Any("error", err))
			}
		}
		httpx.JSON(w, http.StatusOK, body)
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if params.PermissionsHandler != nil {
			params.PermissionsHandler.MountRoutes(r)
		}
		if params.RolesHandler != nil {
			params.RolesHandler.MountRoutes(r)
		}
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
	})

	return r
}
