package users

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartsprint/smartsprint/internal/rbac"
	"github.com/smartsprint/smartsprint/internal/roles"
	"github.com/smartsprint/smartsprint/internal/shared"
	_ "github.com/smartsprint/smartsprint/internal/testing/guard"
)

type memoryRepo struct {
	users map[int64]User
	roles map[int64]roles.Role
	last  ListFilters
}

func (m *memoryRepo) ListUsers(ctx context.Context, filters ListFilters) ([]User, error) {
	m.last = filters
	var out []User
	for id := int64(1); id <= int64(len(m.users)); id++ {
		u, ok := m.users[id]
		if !ok {
			continue
		}
		if filters.IsActive != nil && u.IsActive != *filters.IsActive {
			continue
		}
		if filters.RoleKey != "" && (u.RoleKey == nil || *u.RoleKey != filters.RoleKey) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return u, nil
}

func (m *memoryRepo) SetRole(ctx context.Context, userID int64, roleID *int64) error {
	u := m.users[userID]
	u.RoleID, u.RoleKey, u.RoleName = roleID, nil, nil
	if roleID != nil {
		role := m.roles[*roleID]
		u.RoleKey, u.RoleName = &role.Key, &role.Name
	}
	m.users[userID] = u
	return nil
}

func (m *memoryRepo) GetRole(ctx context.Context, id int64) (roles.Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return roles.Role{}, fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
	}
	return r, nil
}

type notifierStub struct{ changes []rbac.Change }

func (n *notifierStub) Notify(ctx context.Context, c rbac.Change) error {
	n.changes = append(n.changes, c)
	return nil
}

func strPtr(s string) *string { return &s }
func idPtr(v int64) *int64    { return &v }

func newRepo() *memoryRepo {
	return &memoryRepo{
		roles: map[int64]roles.Role{1: {ID: 1, Key: "developer", Name: "Developer"}, 2: {ID: 2, Key: "pm", Name: "Project Manager"}},
		users: map[int64]User{
			1: {ID: 1, Email: "alice@example.com", FirstName: "Alice", IsActive: true, RoleID: idPtr(1), RoleKey: strPtr("developer"), RoleName: strPtr("Developer")},
			2: {ID: 2, Email: "bob@example.com", FirstName: "Bob", IsActive: false},
			3: {ID: 3, Email: "carol@example.com", FirstName: "Carol", IsActive: true, RoleID: idPtr(2), RoleKey: strPtr("pm"), RoleName: strPtr("Project Manager")},
		},
	}
}

func TestSetRole(t *testing.T) {
	repo := newRepo()
	notifier := &notifierStub{}
	svc := NewService(repo, repo, ServiceConfig{Notifier: notifier})
	ctx := context.Background()

	u, err := svc.SetRole(ctx, 2, idPtr(2))
	require.NoError(t, err)
	require.NotNil(t, u.RoleKey)
	assert.Equal(t, "pm", *u.RoleKey)

	u, err = svc.SetRole(ctx, 2, nil)
	require.NoError(t, err)
	assert.Nil(t, u.RoleID)
	assert.Nil(t, u.RoleKey)

	_, err = svc.SetRole(ctx, 2, idPtr(99))
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.SetRole(ctx, 99, idPtr(1))
	assert.ErrorIs(t, err, shared.ErrNotFound)

	require.Len(t, notifier.changes, 2)
	assert.Equal(t, rbac.ChangeUserRole, notifier.changes[0].Kind)
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, rbac.Change) error { return errors.New("redis down") }

func TestSetRoleWithoutLoggerStaysQuiet(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	repo := newRepo()
	svc := NewService(repo, repo, ServiceConfig{Notifier: failingNotifier{}})
	_, err := svc.SetRole(context.Background(), 2, idPtr(1))
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	var logged bytes.Buffer
	svc = NewService(repo, repo, ServiceConfig{Notifier: failingNotifier{}, Logger: slog.New(slog.NewTextHandler(&logged, nil))})
	_, err = svc.SetRole(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.Contains(t, logged.String(), "users change notification failed")
}

func TestHandler(t *testing.T) {
	repo := newRepo()
	svc := NewService(repo, repo, ServiceConfig{})
	r := chi.NewRouter()
	r.Route("/api", NewHandler(nil, svc, rbac.Middleware{}).MountRoutes)

	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}

	rr := get("/api/users?is_active=true&role_key=pm")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []userResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "carol@example.com", list[0].Email)

	rr = get("/api/users")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, shared.DefaultLimit, repo.last.Page.Limit)

	assert.Equal(t, http.StatusBadRequest, get("/api/users?limit=abc").Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/users?skip=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/users?is_active=maybe").Code)

	rr = get("/api/users/2")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role_key":null`)
	assert.Equal(t, http.StatusNotFound, get("/api/users/9").Code)

	put := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/users/2/role", strings.NewReader(body)))
		return rr
	}
	rr = put(`{"role_id":1}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role_key":"developer"`)
	rr = put(`{"role_id":null}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role_id":null`)
	assert.Equal(t, http.StatusNotFound, put(`{"role_id":77}`).Code)
	assert.Equal(t, http.StatusBadRequest, put(`{"role_id":0}`).Code)
}
