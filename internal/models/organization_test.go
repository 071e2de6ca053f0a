package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidSlug(t *testing.T) {
	valid := []string{"acme", "acme-corp", "a1", "video-team-2", "00"}
	for _, s := range valid {
		assert.True(t, ValidSlug(s), "expected %q to be valid", s)
	}

	invalid := []string{"", "a", "Acme", "acme_corp", "-acme", "acme corp", "café"}
	for _, s := range invalid {
		assert.False(t, ValidSlug(s), "expected %q to be invalid", s)
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleEditor.Valid())
	assert.True(t, RoleViewer.Valid())
	assert.False(t, Role("owner").Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("Admin").Valid())
}

func TestOrganizationIsActive(t *testing.T) {
	assert.True(t, (&Organization{Status: OrgStatusActive}).IsActive())
	assert.False(t, (&Organization{Status: OrgStatusSuspended}).IsActive())
	assert.False(t, (&Organization{Status: OrgStatusDeleted}).IsActive())
	assert.False(t, (&Organization{}).IsActive())
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 100, s.MaxVideos)
	assert.Equal(t, int64(10<<30), s.MaxStorageBytes)
	assert.Equal(t, VisibilityOrganization, s.DefaultVisibility)
}
