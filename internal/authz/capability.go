package authz

import (
	"fmt"
	"sort"

	"github.com/clipstack/backend/internal/models"
)

// Capability is a single fine-grained permission derived from a role.
type Capability string

const (
	CapUploadVideo    Capability = "video:upload"
	CapDeleteAnyVideo Capability = "video:delete_any"
	CapViewAllVideos  Capability = "video:view_all"
	CapManageMembers  Capability = "org:manage_members"
	CapManageSettings Capability = "org:manage_settings"
)

// allCapabilities is the closed set of capability tags.
var allCapabilities = []Capability{
	CapUploadVideo,
	CapDeleteAnyVideo,
	CapViewAllVideos,
	CapManageMembers,
	CapManageSettings,
}

// capabilityMatrix is the single source of truth mapping each role to its
// capability set. Every role enumerates every capability explicitly, including
// the denied ones; ValidateCapabilityMatrix enforces that at startup so the
// table cannot silently drift from the role hierarchy.
var capabilityMatrix = map[models.Role]map[Capability]bool{
	models.RoleAdmin: {
		CapUploadVideo:    true,
		CapDeleteAnyVideo: true,
		CapViewAllVideos:  true,
		CapManageMembers:  true,
		CapManageSettings: true,
	},
	models.RoleEditor: {
		CapUploadVideo:    true,
		CapDeleteAnyVideo: true,
		CapViewAllVideos:  false,
		CapManageMembers:  false,
		CapManageSettings: false,
	},
	models.RoleViewer: {
		CapUploadVideo:    false,
		CapDeleteAnyVideo: false,
		CapViewAllVideos:  false,
		CapManageMembers:  false,
		CapManageSettings: false,
	},
}

// RoleAllows reports whether the role grants the capability. Unknown roles and
// unknown capabilities grant nothing.
func RoleAllows(role models.Role, cap Capability) bool {
	caps, ok := capabilityMatrix[role]
	if !ok {
		return false
	}
	return caps[cap]
}

// CapabilitiesFor returns the sorted capability set granted to a role.
func CapabilitiesFor(role models.Role) []Capability {
	caps, ok := capabilityMatrix[role]
	if !ok {
		return nil
	}
	out := make([]Capability, 0, len(caps))
	for c, allowed := range caps {
		if allowed {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateCapabilityMatrix checks the matrix at startup: every known role
// defines every capability key (completeness), no unknown roles or
// capabilities appear, and capability grants are monotonic in role rank (a
// higher role never lacks a capability a lower role holds). The monotonicity
// check is what keeps the capability table and the role hierarchy provably
// consistent: RequireRole and RequirePermission cannot disagree about
// ordering.
func ValidateCapabilityMatrix() error {
	roles := []models.Role{models.RoleViewer, models.RoleEditor, models.RoleAdmin}

	known := make(map[Capability]bool, len(allCapabilities))
	for _, c := range allCapabilities {
		known[c] = true
	}

	for _, role := range roles {
		caps, ok := capabilityMatrix[role]
		if !ok {
			return fmt.Errorf("capability matrix: role %q missing", role)
		}
		for _, c := range allCapabilities {
			if _, ok := caps[c]; !ok {
				return fmt.Errorf("capability matrix: role %q does not define %q", role, c)
			}
		}
		for c := range caps {
			if !known[c] {
				return fmt.Errorf("capability matrix: role %q defines unknown capability %q", role, c)
			}
		}
	}
	for role := range capabilityMatrix {
		if Rank(role) == 0 {
			return fmt.Errorf("capability matrix: unknown role %q", role)
		}
	}

	// Monotonicity: ranks are ordered viewer < editor < admin, so each role
	// must grant a superset of the capabilities of every lower role.
	for i := 1; i < len(roles); i++ {
		lower, higher := roles[i-1], roles[i]
		for _, c := range allCapabilities {
			if capabilityMatrix[lower][c] && !capabilityMatrix[higher][c] {
				return fmt.Errorf("capability matrix: %q grants %q but higher role %q does not", lower, c, higher)
			}
		}
	}
	return nil
}
