package constants

const (
	Admin  = "ADMIN"
	Worker = "WORKER"
)

// ValidRoles is the set of allowed values for users.role.
var ValidRoles = []string{Admin, Worker}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
