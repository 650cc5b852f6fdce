package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/smartsprint/smartsprint/internal/platform/httpx"
	"github.com/smartsprint/smartsprint/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers. Checks are
// skipped unless Enforce is set.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Enforce bool
}

// RequireAny ensures the acting user holds at least one of the permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.require("require any", normalizePermissions(perms), func(view EffectivePermissions, required []string) bool {
		for _, key := range required {
			if view.Allows(key) {
				return true
			}
		}
		return false
	})
}

// RequireAll ensures the acting user holds every permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.require("require all", normalizePermissions(perms), func(view EffectivePermissions, required []string) bool {
		for _, key := range required {
			if !view.Allows(key) {
				return false
			}
		}
		return true
	})
}

func (m Middleware) require(name string, required []string, check func(EffectivePermissions, []string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.Enforce || len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actorID, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, fmt.Errorf("acting user required: %w", httpx.ErrUnauthorized))
				return
			}
			view, err := m.Service.Resolve(r.Context(), actorID)
			if err != nil {
				if isNotFound(err) {
					httpx.RespondError(w, fmt.Errorf("unknown acting user: %w", httpx.ErrForbidden))
					return
				}
				if m.Logger != nil {
					m.Logger.Error("rbac "+name, slog.Int64("actor_id", actorID), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			if !check(view, required) {
				httpx.RespondError(w, fmt.Errorf("missing permission %s: %w", strings.Join(required, ", "), httpx.ErrForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
