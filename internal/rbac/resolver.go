package rbac

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Resolve builds the effective permission view of a user. Role grants and
// overrides are returned separately; callers apply the precedence rule through
// EffectivePermissions.Decide. Nothing is cached.
func (s *Service) Resolve(ctx context.Context, userID int64) (EffectivePermissions, error) {
	subject, err := s.repo.GetSubject(ctx, userID)
	if err != nil {
		return EffectivePermissions{}, err
	}

	var (
		granted   []Permission
		overrides []Override
	)
	g, gctx := errgroup.WithContext(ctx)
	if subject.RoleID != nil {
		roleID := *subject.RoleID
		g.Go(func() error {
			perms, err := s.repo.RolePermissions(gctx, roleID)
			if err != nil && !isNotFound(err) {
				return err
			}
			granted = perms
			return nil
		})
	}
	g.Go(func() error {
		var err error
		overrides, err = s.repo.ListOverrides(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return EffectivePermissions{}, err
	}

	explicit, err := s.explicitEntries(ctx, overrides)
	if err != nil {
		return EffectivePermissions{}, err
	}

	sortPermissions(granted)
	role := make([]Entry, 0, len(granted))
	for _, p := range granted {
		role = append(role, Entry{Key: p.Key, Name: p.Name, Category: p.Category, Granted: true, Source: SourceRole})
	}
	return EffectivePermissions{UserID: subject.UserID, Role: role, Explicit: explicit}, nil
}

// explicitEntries resolves overrides against the catalog, keeping their order.
// Keys that left the catalog still produce an entry labelled UnknownCategory.
func (s *Service) explicitEntries(ctx context.Context, overrides []Override) ([]Entry, error) {
	entries := make([]Entry, 0, len(overrides))
	if len(overrides) == 0 {
		return entries, nil
	}
	keys := make([]string, 0, len(overrides))
	for _, o := range overrides {
		keys = append(keys, o.PermissionKey)
	}
	perms, err := s.repo.PermissionsByKeys(ctx, keys)
	if err != nil {
		return nil, err
	}
	catalog := make(map[string]Permission, len(perms))
	for _, p := range perms {
		catalog[p.Key] = p
	}
	for _, o := range overrides {
		entry := Entry{Key: o.PermissionKey, Name: o.PermissionKey, Category: UnknownCategory, Granted: o.Granted, Source: SourceExplicit}
		if p, ok := catalog[o.PermissionKey]; ok {
			entry.Name = p.Name
			entry.Category = p.Category
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
