package constants

const (
	CreateOrganization = "create_organization"
	ManageOrganization = "manage_organization"
	AssignMembership   = "assign_membership"
)

// PermissionRoles maps each permission to roles allowed to perform it.
var PermissionRoles = map[string][]string{
	CreateOrganization: {Admin},
	ManageOrganization: {Admin},
	AssignMembership:   {Admin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
