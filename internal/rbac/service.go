package rbac

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/smartsprint/smartsprint/internal/shared"
)

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ChangeCounter counts committed mutations per operation.
type ChangeCounter interface {
	PermissionChanged(operation string)
}

// ServiceConfig carries the optional collaborators of Service.
type ServiceConfig struct {
	Audit    AuditPort
	Notifier Notifier
	Metrics  ChangeCounter
	Logger   *slog.Logger
}

// Service orchestrates catalog reads, role grants, user overrides and resolution.
type Service struct {
	repo     Repository
	audit    AuditPort
	notifier Notifier
	metrics  ChangeCounter
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		repo:     repo,
		audit:    cfg.Audit,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// ListPermissions returns the catalog sorted by category, name and key. A blank
// category lists everything.
func (s *Service) ListPermissions(ctx context.Context, category string) ([]Permission, error) {
	perms, err := s.repo.ListPermissions(ctx, strings.TrimSpace(category))
	if err != nil {
		return nil, err
	}
	sortPermissions(perms)
	return perms, nil
}

// ListCategories returns the distinct catalog categories.
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(categories)
	return categories, nil
}

// GetPermission fetches a catalog entry by id.
func (s *Service) GetPermission(ctx context.Context, id int64) (Permission, error) {
	if id <= 0 {
		return Permission{}, invalid("permission id must be positive")
	}
	return s.repo.GetPermission(ctx, id)
}

// GetPermissionByKey fetches a catalog entry by key.
func (s *Service) GetPermissionByKey(ctx context.Context, key string) (Permission, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return Permission{}, err
	}
	return s.repo.GetPermissionByKey(ctx, key)
}

// RolePermissions returns a role together with its granted permissions.
func (s *Service) RolePermissions(ctx context.Context, roleID int64) (RoleGrants, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return RoleGrants{}, err
	}
	perms, err := s.repo.RolePermissions(ctx, roleID)
	if err != nil {
		return RoleGrants{}, err
	}
	sortPermissions(perms)
	return RoleGrants{Role: role, Permissions: perms}, nil
}

// ReplaceRolePermissions makes permissionIDs the exact grant set of the role.
// Duplicates collapse. Every id is checked before anything is written; the
// delete and insert then run in one transaction.
func (s *Service) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (RoleGrants, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return RoleGrants{}, err
	}
	ids := dedupeIDs(permissionIDs)
	known, err := s.repo.PermissionsByIDs(ctx, ids)
	if err != nil {
		return RoleGrants{}, err
	}
	if missing := missingIDs(ids, known); len(missing) > 0 {
		return RoleGrants{}, &UnknownPermissionsError{IDs: missing}
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteRoleGrants(ctx, roleID); err != nil {
			return err
		}
		return tx.InsertRoleGrants(ctx, roleID, ids)
	})
	if err != nil {
		return RoleGrants{}, err
	}

	actor := shared.ActorRef(ctx)
	s.committed(ctx, "replace_role_grants", shared.AuditLog{
		ActorID:  actor,
		Action:   "rbac.role_grants.replace",
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     map[string]any{"permission_ids": ids},
	}, Change{Kind: ChangeRoleGrants, RoleID: &roleID})

	return s.RolePermissions(ctx, roleID)
}

// ListOverrides returns the overrides of a user in creation order.
func (s *Service) ListOverrides(ctx context.Context, userID int64) ([]Override, error) {
	if _, err := s.repo.GetSubject(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListOverrides(ctx, userID)
}

// SetOverride grants or denies key for the user, replacing any previous
// override for the same key.
func (s *Service) SetOverride(ctx context.Context, userID int64, key string, granted bool, grantedBy *int64) (Override, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return Override{}, err
	}
	if _, err := s.repo.GetSubject(ctx, userID); err != nil {
		return Override{}, err
	}
	if _, err := s.repo.GetPermissionByKey(ctx, key); err != nil {
		return Override{}, err
	}
	override, err := s.repo.UpsertOverride(ctx, Override{
		UserID:        userID,
		PermissionKey: key,
		Granted:       granted,
		GrantedBy:     grantedBy,
	})
	if err != nil {
		return Override{}, err
	}

	s.committed(ctx, "set_override", shared.AuditLog{
		ActorID:  grantedBy,
		Action:   "rbac.override.set",
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"permission_key": key, "granted": granted},
	}, Change{Kind: ChangeOverrideSet, UserID: &userID, PermissionKey: key})
	return override, nil
}

// ClearOverride removes the override for key. Clearing a missing override is a no-op.
func (s *Service) ClearOverride(ctx context.Context, userID int64, key string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetSubject(ctx, userID); err != nil {
		return err
	}
	removed, err := s.repo.DeleteOverride(ctx, userID, key)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	s.committed(ctx, "clear_override", shared.AuditLog{
		ActorID:  shared.ActorRef(ctx),
		Action:   "rbac.override.clear",
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"permission_key": key},
	}, Change{Kind: ChangeOverrideClear, UserID: &userID, PermissionKey: key})
	return nil
}

// EffectivePermissions returns the sorted keys the user is allowed.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	view, err := s.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return view.GrantedKeys(), nil
}

// committed runs the post-commit side effects. Failures are logged only; the
// write has already succeeded.
func (s *Service) committed(ctx context.Context, operation string, entry shared.AuditLog, change Change) {
	at := s.now().UTC()
	if s.metrics != nil {
		s.metrics.PermissionChanged(operation)
	}
	if s.audit != nil {
		entry.At = at
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.WarnContext(ctx, "rbac audit failed", slog.String("operation", operation), slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		change.At = at
		if err := s.notifier.Notify(ctx, change); err != nil {
			s.logger.WarnContext(ctx, "rbac change notification failed", slog.String("operation", operation), slog.Any("error", err))
		}
	}
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", invalid("permission key required")
	}
	return key, nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(ids []int64, known []Permission) []int64 {
	found := make(map[int64]struct{}, len(known))
	for _, p := range known {
		found[p.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
