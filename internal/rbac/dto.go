package rbac

import "time"

type permissionResponse struct {
	ID        int64     `json:"id"`
	Key       string    `json:"perm_key"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

type rolePermissionsResponse struct {
	RoleID      int64                `json:"role_id"`
	RoleKey     string               `json:"role_key"`
	RoleName    string               `json:"role_name"`
	Permissions []permissionResponse `json:"permissions"`
}

type permissionDetailResponse struct {
	PermissionKey  string `json:"permission_key"`
	PermissionName string `json:"permission_name"`
	Category       string `json:"category"`
	Granted        bool   `json:"granted"`
	Source         Source `json:"source"`
}

type userPermissionsResponse struct {
	UserID              int64                      `json:"user_id"`
	RolePermissions     []permissionDetailResponse `json:"role_permissions"`
	ExplicitPermissions []permissionDetailResponse `json:"explicit_permissions"`
}

type effectivePermissionsResponse struct {
	UserID      int64    `json:"user_id"`
	Permissions []string `json:"permissions"`
}

type overrideResponse struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	PermissionKey string    `json:"permission_key"`
	Granted       bool      `json:"granted"`
	GrantedBy     *int64    `json:"granted_by"`
	GrantedAt     time.Time `json:"granted_at"`
}

type replaceGrantsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required"`
}

type setOverrideRequest struct {
	PermissionKey string `json:"permission_key"`
	Granted       *bool  `json:"granted" validate:"required"`
}

func toPermissionResponse(p Permission) permissionResponse {
	return permissionResponse{ID: p.ID, Key: p.Key, Name: p.Name, Category: p.Category, CreatedAt: p.CreatedAt}
}

func toPermissionResponses(perms []Permission) []permissionResponse {
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, toPermissionResponse(p))
	}
	return out
}

func toRolePermissionsResponse(g RoleGrants) rolePermissionsResponse {
	return rolePermissionsResponse{
		RoleID:      g.Role.ID,
		RoleKey:     g.Role.Key,
		RoleName:    g.Role.Name,
		Permissions: toPermissionResponses(g.Permissions),
	}
}

func toDetails(entries []Entry) []permissionDetailResponse {
	out := make([]permissionDetailResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, permissionDetailResponse{
			PermissionKey:  e.Key,
			PermissionName: e.Name,
			Category:       e.Category,
			Granted:        e.Granted,
			Source:         e.Source,
		})
	}
	return out
}

func toUserPermissionsResponse(view EffectivePermissions) userPermissionsResponse {
	return userPermissionsResponse{
		UserID:              view.UserID,
		RolePermissions:     toDetails(view.Role),
		ExplicitPermissions: toDetails(view.Explicit),
	}
}

func toOverrideResponses(overrides []Override) []overrideResponse {
	out := make([]overrideResponse, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, overrideResponse{
			ID:            o.ID,
			UserID:        o.UserID,
			PermissionKey: o.PermissionKey,
			Granted:       o.Granted,
			GrantedBy:     o.GrantedBy,
			GrantedAt:     o.GrantedAt,
		})
	}
	return out
}
