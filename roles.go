package auth

// Role is the principal's role. The set is closed.
type Role string

const (
	// RolePlatformAdmin manages tenants and sits outside any workspace
	RolePlatformAdmin Role = "platform_admin"
	// RoleMaster owns a workspace (school director)
	RoleMaster Role = "master"
	// RoleCoordenador coordinates inclusion work inside a workspace
	RoleCoordenador Role = "coordenador"
	// RoleProfessor is a classroom professor in the workspace
	RoleProfessor Role = "professor"
	// RoleFamily is a guardian linked to a family responsible record
	RoleFamily Role = "family"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RolePlatformAdmin, RoleMaster, RoleCoordenador, RoleProfessor, RoleFamily:
		return true
	default:
		return false
	}
}

// IsWorkspaceRole reports whether the role lives inside a workspace.
func (r Role) IsWorkspaceRole() bool {
	return r.IsValid() && r != RolePlatformAdmin
}

func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RolePlatformAdmin,
		RoleMaster,
		RoleCoordenador,
		RoleProfessor,
		RoleFamily,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}
