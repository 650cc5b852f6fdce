package roles

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/smartsprint/smartsprint/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	RenameRole(ctx context.Context, id int64, name string) (Role, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles role business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns one role.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// RenameRole changes the display name. Blank names are rejected.
func (s *Service) RenameRole(ctx context.Context, id int64, name string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("roles: name required: %w", shared.ErrValidation)
	}
	before, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	role, err := s.repo.RenameRole(ctx, id, name)
	if err != nil {
		return Role{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorRef(ctx),
			Action:   "roles.rename",
			Entity:   "role",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     map[string]any{"from": before.Name, "to": role.Name},
		})
	}
	return role, nil
}
