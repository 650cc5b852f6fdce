package rbac

import (
	"sort"
	"time"
)

// Permission is a catalog entry describing an atomic capability.
type Permission struct {
	ID        int64
	Key       string
	Name      string
	Category  string
	CreatedAt time.Time
}

// Role represents a named grouping of permissions.
type Role struct {
	ID        int64
	Key       string
	Name      string
	CreatedAt time.Time
}

// RoleGrants is a role together with the permissions granted to it.
type RoleGrants struct {
	Role        Role
	Permissions []Permission
}

// Subject is the part of a user account the resolver needs. RoleID is nil for
// users without a role.
type Subject struct {
	UserID int64
	RoleID *int64
}

// Override is an explicit per-user grant or deny. PermissionKey is deliberately
// not a foreign key: overrides outlive catalog entries.
type Override struct {
	ID            int64
	UserID        int64
	PermissionKey string
	Granted       bool
	GrantedBy     *int64
	GrantedAt     time.Time
}

// Source tells where an effective entry comes from.
type Source string

const (
	SourceRole     Source = "role"
	SourceExplicit Source = "explicit"
)

// UnknownCategory labels explicit entries whose key is missing from the catalog.
const UnknownCategory = "unknown"

// Entry is one line of a resolved permission view.
type Entry struct {
	Key      string
	Name     string
	Category string
	Granted  bool
	Source   Source
}

// EffectivePermissions is the resolved view for one user, split by source so
// callers can show why a permission is granted or denied.
type EffectivePermissions struct {
	UserID   int64
	Role     []Entry
	Explicit []Entry
}

// Decide applies the precedence rule for key: an explicit entry wins, the role
// entry is the fallback. found is false when neither list mentions key.
func (e EffectivePermissions) Decide(key string) (granted bool, source Source, found bool) {
	for _, entry := range e.Explicit {
		if entry.Key == key {
			return entry.Granted, SourceExplicit, true
		}
	}
	for _, entry := range e.Role {
		if entry.Key == key {
			return entry.Granted, SourceRole, true
		}
	}
	return false, "", false
}

// Allows reports whether the effective decision for key is a grant.
func (e EffectivePermissions) Allows(key string) bool {
	granted, _, _ := e.Decide(key)
	return granted
}

// GrantedKeys flattens the view into the sorted set of keys that are allowed.
func (e EffectivePermissions) GrantedKeys() []string {
	decided := make(map[string]bool, len(e.Role)+len(e.Explicit))
	for _, entry := range e.Role {
		decided[entry.Key] = entry.Granted
	}
	for _, entry := range e.Explicit {
		decided[entry.Key] = entry.Granted
	}
	keys := make([]string, 0, len(decided))
	for key, granted := range decided {
		if granted {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// sortPermissions orders by category, then name, then key. Byte-wise comparison
// keeps the order case-sensitive and independent of database collation.
func sortPermissions(perms []Permission) {
	sort.SliceStable(perms, func(i, j int) bool {
		a, b := perms[i], perms[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Key < b.Key
	})
}
