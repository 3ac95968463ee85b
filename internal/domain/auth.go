package domain

// Role enumerates actor roles resolved upstream of the engine.
type Role string

const (
	RoleRequester  Role = "requester"
	RoleTechnician Role = "technician"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleTechnician, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// CanOverride reports whether the role may force administrative overrides.
func (r Role) CanOverride() bool {
	return r == RoleAdmin || r == RoleSupervisor
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   string
	Name string
	Role Role
}
