package shared

// Core platform permissions.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermPermissionsView   = "permissions.view"
	PermPermissionsManage = "permissions.manage"
)

// Project management permissions.
const (
	PermProjectView   = "project.view"
	PermProjectCreate = "project.create"
	PermProjectEdit   = "project.edit"
	PermProjectDelete = "project.delete"

	PermSprintManage = "sprint.manage"

	PermTaskView   = "task.view"
	PermTaskCreate = "task.create"
	PermTaskEdit   = "task.edit"
	PermTaskDelete = "task.delete"
	PermTaskAssign = "task.assign"

	PermDocumentView   = "document.view"
	PermDocumentUpload = "document.upload"
	PermDocumentDelete = "document.delete"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
		PermPermissionsManage,
	}
}

// ProjectScopes lists the project management permissions.
func ProjectScopes() []string {
	return []string{
		PermProjectView,
		PermProjectCreate,
		PermProjectEdit,
		PermProjectDelete,
		PermSprintManage,
		PermTaskView,
		PermTaskCreate,
		PermTaskEdit,
		PermTaskDelete,
		PermTaskAssign,
		PermDocumentView,
		PermDocumentUpload,
		PermDocumentDelete,
	}
}
