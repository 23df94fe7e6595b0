package access

import (
	"errors"
	"fmt"
)

// Role is a capability tier assigned to a user.
type Role string

const (
	RoleUser                 Role = "user"
	RoleProjectManager       Role = "project_manager"
	RoleSeniorProjectManager Role = "senior_project_manager"
	RoleProgramManager       Role = "program_manager"
	RolePMO                  Role = "pmo"
	RoleAdmin                Role = "admin"
)

var ErrUnknownRole = errors.New("unknown role")

// rankedRoles lists the ranked roles in ascending order. Admin is kept out of
// the ladder: it outranks everything and is checked as a separate flag.
var rankedRoles = []Role{
	RoleUser,
	RoleProjectManager,
	RoleSeniorProjectManager,
	RoleProgramManager,
	RolePMO,
}

var roleWeights = map[Role]int{
	RoleUser:                 10,
	RoleProjectManager:       20,
	RoleSeniorProjectManager: 30,
	RoleProgramManager:       40,
	RolePMO:                  50,
	RoleAdmin:                100,
}

// ParseRole decodes a stored or submitted role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleWeights[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleWeights[r]
	return ok
}

func (r Role) String() string { return string(r) }

// Rank returns the weight of a role. Unknown and empty roles rank 0.
func Rank(r Role) int {
	return roleWeights[r]
}

// HasMinimumRank reports whether role ranks at least as high as minRole.
func HasMinimumRank(role, minRole Role) bool {
	return Rank(role) >= Rank(minRole)
}

// RankedRoles returns the ranked roles from lowest to highest, admin excluded.
func RankedRoles() []Role {
	out := make([]Role, len(rankedRoles))
	copy(out, rankedRoles)
	return out
}

// AllRoles returns every known role, admin last.
func AllRoles() []Role {
	return append(RankedRoles(), RoleAdmin)
}

// HighestRole picks the best ranked non-admin role from a set of assignments.
// The second result is true when an admin assignment is present.
func HighestRole(roles []Role) (Role, bool) {
	var best Role
	isAdmin := false
	for _, r := range roles {
		if r == RoleAdmin {
			isAdmin = true
			continue
		}
		if Rank(r) > Rank(best) {
			best = r
		}
	}
	return best, isAdmin
}
