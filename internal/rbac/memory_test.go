package rbac

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smartsprint/smartsprint/internal/shared"
)

type memoryRepo struct {
	mu          sync.Mutex
	permissions map[int64]Permission
	roles       map[int64]Role
	grants      map[int64]map[int64]struct{}
	users       map[int64]Subject
	overrides   []Override
	nextID      int64

	failInsert    error
	failOverrides error
	txCalls       int
}

type memoryTx struct {
	grants     map[int64]map[int64]struct{}
	catalog    map[int64]Permission
	failInsert error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		permissions: make(map[int64]Permission),
		roles:       make(map[int64]Role),
		grants:      make(map[int64]map[int64]struct{}),
		users:       make(map[int64]Subject),
	}
}

func (r *memoryRepo) addPermission(id int64, key, name, category string) Permission {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := Permission{ID: id, Key: key, Name: name, Category: category, CreatedAt: time.Unix(0, 0).UTC()}
	r.permissions[id] = p
	return p
}

func (r *memoryRepo) removePermission(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.permissions {
		if p.Key == key {
			delete(r.permissions, id)
			for _, set := range r.grants {
				delete(set, id)
			}
		}
	}
}

func (r *memoryRepo) addRole(id int64, key, name string, permissionIDs ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[id] = Role{ID: id, Key: key, Name: name}
	set := make(map[int64]struct{}, len(permissionIDs))
	for _, pid := range permissionIDs {
		set[pid] = struct{}{}
	}
	r.grants[id] = set
}

func (r *memoryRepo) addUser(id int64, roleID *int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = Subject{UserID: id, RoleID: roleID}
}

func (r *memoryRepo) grantIDs(roleID int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id := range r.grants[roleID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *memoryRepo) overrideCount(userID int64, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.overrides {
		if o.UserID == userID && o.PermissionKey == key {
			n++
		}
	}
	return n
}

func (r *memoryRepo) ListPermissions(ctx context.Context, category string) ([]Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Permission
	for _, p := range r.permissions {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListCategories(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]struct{}{}
	var out []string
	for _, p := range r.permissions {
		if _, ok := seen[p.Category]; !ok {
			seen[p.Category] = struct{}{}
			out = append(out, p.Category)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetPermission(ctx context.Context, id int64) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.permissions[id]
	if !ok {
		return Permission{}, fmt.Errorf("permission %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (r *memoryRepo) GetPermissionByKey(ctx context.Context, key string) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.permissions {
		if p.Key == key {
			return p, nil
		}
	}
	return Permission{}, fmt.Errorf("permission %q: %w", key, shared.ErrNotFound)
}

func (r *memoryRepo) PermissionsByIDs(ctx context.Context, ids []int64) ([]Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Permission
	for _, id := range ids {
		if p, ok := r.permissions[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) PermissionsByKeys(ctx context.Context, keys []string) ([]Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[k] = struct{}{}
	}
	var out []Permission
	for _, p := range r.permissions {
		if _, ok := want[p.Key]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[id]
	if !ok {
		return Role{}, fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
	}
	return role, nil
}

func (r *memoryRepo) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Permission
	for id := range r.grants[roleID] {
		if p, ok := r.permissions[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetSubject(ctx context.Context, userID int64) (Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.users[userID]
	if !ok {
		return Subject{}, fmt.Errorf("user %d: %w", userID, shared.ErrNotFound)
	}
	return s, nil
}

func (r *memoryRepo) ListOverrides(ctx context.Context, userID int64) ([]Override, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOverrides != nil {
		return nil, r.failOverrides
	}
	var out []Override
	for _, o := range r.overrides {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memoryRepo) UpsertOverride(ctx context.Context, o Override) (Override, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.overrides {
		if existing.UserID == o.UserID && existing.PermissionKey == o.PermissionKey {
			existing.Granted = o.Granted
			existing.GrantedBy = o.GrantedBy
			existing.GrantedAt = time.Now().UTC()
			r.overrides[i] = existing
			return existing, nil
		}
	}
	r.nextID++
	o.ID = r.nextID
	o.GrantedAt = time.Now().UTC()
	r.overrides = append(r.overrides, o)
	return o, nil
}

func (r *memoryRepo) DeleteOverride(ctx context.Context, userID int64, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, o := range r.overrides {
		if o.UserID == userID && o.PermissionKey == key {
			r.overrides = append(r.overrides[:i], r.overrides[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// WithTx stages grant changes on a copy and applies them only when fn succeeds.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	r.txCalls++
	staged := make(map[int64]map[int64]struct{}, len(r.grants))
	for roleID, set := range r.grants {
		cp := make(map[int64]struct{}, len(set))
		for id := range set {
			cp[id] = struct{}{}
		}
		staged[roleID] = cp
	}
	catalog := make(map[int64]Permission, len(r.permissions))
	for id, p := range r.permissions {
		catalog[id] = p
	}
	tx := &memoryTx{grants: staged, catalog: catalog, failInsert: r.failInsert}
	r.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.mu.Lock()
	r.grants = tx.grants
	r.mu.Unlock()
	return nil
}

func (tx *memoryTx) DeleteRoleGrants(ctx context.Context, roleID int64) error {
	tx.grants[roleID] = make(map[int64]struct{})
	return nil
}

func (tx *memoryTx) InsertRoleGrants(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if tx.failInsert != nil {
		return tx.failInsert
	}
	for _, id := range permissionIDs {
		if _, ok := tx.catalog[id]; !ok {
			return fmt.Errorf("permission %d: %w", id, shared.ErrValidation)
		}
		tx.grants[roleID][id] = struct{}{}
	}
	return nil
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
	err  error
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return a.err
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []Change
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, change Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return n.err
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) PermissionChanged(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[operation]++
}

func int64Ptr(v int64) *int64 { return &v }

// fixture builds the catalog used across tests:
//
//	1 task.view     "View Tasks"    task
//	2 task.edit     "Edit Tasks"    task
//	3 task.delete   "Delete Tasks"  task
//	4 project.view  "View Projects" project
//
// Role 10 "developer" holds task.view and task.edit. User 1 is a developer,
// user 2 has no role.
func fixture() *memoryRepo {
	repo := newMemoryRepo()
	repo.addPermission(1, "task.view", "View Tasks", "task")
	repo.addPermission(2, "task.edit", "Edit Tasks", "task")
	repo.addPermission(3, "task.delete", "Delete Tasks", "task")
	repo.addPermission(4, "project.view", "View Projects", "project")
	repo.addRole(10, "developer", "Developer", 1, 2)
	repo.addRole(11, "viewer", "Viewer")
	repo.addUser(1, int64Ptr(10))
	repo.addUser(2, nil)
	return repo
}
