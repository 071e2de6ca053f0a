// Package authz is the multi-tenant authorization core: it resolves which
// organization a request acts within, loads the caller's role from the
// membership store, and evaluates role and capability requirements. Roles are
// strictly per-organization; nothing in this package accepts a client-supplied
// role.
package authz

import "github.com/clipstack/backend/internal/models"

// Role ranks, ordered. Higher rank satisfies every lower requirement.
const (
	rankViewer = 1
	rankEditor = 2
	rankAdmin  = 3
)

// Rank returns the ordinal rank of a role. Any value outside the fixed set
// ranks as 0: an unrecognized role never satisfies any requirement, and a
// requirement that fails to parse can never be satisfied. This is the
// fail-closed default for role strings that reach us from storage.
func Rank(r models.Role) int {
	switch r {
	case models.RoleViewer:
		return rankViewer
	case models.RoleEditor:
		return rankEditor
	case models.RoleAdmin:
		return rankAdmin
	}
	return 0
}

// Satisfies reports whether a membership role meets a minimum role
// requirement: Rank(actual) >= Rank(required). An unknown actual role
// satisfies nothing, and an unknown required role is satisfied by nothing.
func Satisfies(actual, required models.Role) bool {
	ar, rr := Rank(actual), Rank(required)
	if ar == 0 || rr == 0 {
		return false
	}
	return ar >= rr
}
