package users

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/smartsprint/smartsprint/internal/rbac"
	"github.com/smartsprint/smartsprint/internal/roles"
	"github.com/smartsprint/smartsprint/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filters ListFilters) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	SetRole(ctx context.Context, userID int64, roleID *int64) error
}

// RoleLookup resolves role ids before assignment.
type RoleLookup interface {
	GetRole(ctx context.Context, id int64) (roles.Role, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig carries the optional collaborators of Service.
type ServiceConfig struct {
	Audit    AuditPort
	Notifier rbac.Notifier
	Metrics  rbac.ChangeCounter
	Logger   *slog.Logger
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	roles    RoleLookup
	audit    AuditPort
	notifier rbac.Notifier
	metrics  rbac.ChangeCounter
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RoleLookup, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, roles: roles, audit: cfg.Audit, notifier: cfg.Notifier, metrics: cfg.Metrics, logger: logger}
}

// ListUsers returns users matching filters.
func (s *Service) ListUsers(ctx context.Context, filters ListFilters) ([]User, error) {
	filters.RoleKey = strings.TrimSpace(filters.RoleKey)
	return s.repo.ListUsers(ctx, filters)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// SetRole assigns a role to the user. A nil roleID leaves the user without a
// role, which contributes no permissions.
func (s *Service) SetRole(ctx context.Context, userID int64, roleID *int64) (User, error) {
	if _, err := s.repo.GetUser(ctx, userID); err != nil {
		return User{}, err
	}
	if roleID != nil {
		if _, err := s.roles.GetRole(ctx, *roleID); err != nil {
			return User{}, err
		}
	}
	if err := s.repo.SetRole(ctx, userID, roleID); err != nil {
		return User{}, err
	}

	if s.metrics != nil {
		s.metrics.PermissionChanged("set_user_role")
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorRef(ctx),
			Action:   "users.role.set",
			Entity:   "user",
			EntityID: strconv.FormatInt(userID, 10),
			Meta:     map[string]any{"role_id": roleID},
		}); err != nil {
			s.logger.WarnContext(ctx, "users audit failed", slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, rbac.Change{Kind: rbac.ChangeUserRole, UserID: &userID, RoleID: roleID}); err != nil {
			s.logger.WarnContext(ctx, "users change notification failed", slog.Any("error", err))
		}
	}
	return s.repo.GetUser(ctx, userID)
}
