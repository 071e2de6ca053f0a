package videos

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/clipstack/backend/internal/authz"
	"github.com/clipstack/backend/internal/models"
)

func TestCanView(t *testing.T) {
	owner, other := uuid.New(), uuid.New()
	orgVideo := &models.Video{UserID: owner, Visibility: models.VisibilityOrganization}
	privateVideo := &models.Video{UserID: owner, Visibility: models.VisibilityPrivate}

	tests := []struct {
		name  string
		grant *authz.Grant
		video *models.Video
		want  bool
	}{
		{"owner sees own private video", &authz.Grant{UserID: owner, Role: models.RoleViewer}, privateVideo, true},
		{"member sees org-visible video", &authz.Grant{UserID: other, Role: models.RoleViewer}, orgVideo, true},
		{"member blocked from private video", &authz.Grant{UserID: other, Role: models.RoleEditor}, privateVideo, false},
		{"admin sees private video via view_all", &authz.Grant{UserID: other, Role: models.RoleAdmin}, privateVideo, true},
		{"unknown role blocked from private video", &authz.Grant{UserID: other, Role: models.Role("owner")}, privateVideo, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canView(tt.grant, tt.video))
		})
	}
}

func TestParseVisibility(t *testing.T) {
	v, ok := parseVisibility("private", models.VisibilityOrganization)
	assert.True(t, ok)
	assert.Equal(t, models.VisibilityPrivate, v)

	v, ok = parseVisibility("organization", models.VisibilityPrivate)
	assert.True(t, ok)
	assert.Equal(t, models.VisibilityOrganization, v)

	v, ok = parseVisibility("", models.VisibilityPrivate)
	assert.True(t, ok)
	assert.Equal(t, models.VisibilityPrivate, v, "empty input falls back to the organization default")

	v, ok = parseVisibility("", "")
	assert.True(t, ok)
	assert.Equal(t, models.VisibilityOrganization, v, "no default falls back to organization-visible")

	_, ok = parseVisibility("public", models.VisibilityOrganization)
	assert.False(t, ok)
}
