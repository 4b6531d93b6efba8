package shared

// Modules of the core platform surface.
const (
	ModuleUsers       = "users"
	ModuleRoles       = "roles"
	ModulePermissions = "permissions"
	ModuleActivity    = "activity"
)

// Actions shared across modules.
const (
	ActionRead    = "read"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionExecute = "execute"
	ActionAssign  = "assign"
)

// CoreScopes lists the module:action pairs seeded for the core platform.
func CoreScopes() [][2]string {
	return [][2]string{
		{ModuleUsers, ActionRead},
		{ModuleUsers, ActionCreate},
		{ModuleUsers, ActionUpdate},
		{ModuleUsers, ActionAssign},
		{ModuleRoles, ActionRead},
		{ModuleRoles, ActionCreate},
		{ModuleRoles, ActionUpdate},
		{ModuleRoles, ActionDelete},
		{ModulePermissions, ActionRead},
		{ModuleActivity, ActionRead},
	}
}
