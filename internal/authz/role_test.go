package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clipstack/backend/internal/models"
)

func TestRank(t *testing.T) {
	tests := []struct {
		role models.Role
		rank int
	}{
		{models.RoleViewer, 1},
		{models.RoleEditor, 2},
		{models.RoleAdmin, 3},
		{models.Role(""), 0},
		{models.Role("owner"), 0},
		{models.Role("ADMIN"), 0}, // case-sensitive on purpose
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.rank, Rank(tt.role))
		})
	}
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		name     string
		actual   models.Role
		required models.Role
		want     bool
	}{
		{"viewer meets viewer", models.RoleViewer, models.RoleViewer, true},
		{"viewer below editor", models.RoleViewer, models.RoleEditor, false},
		{"viewer below admin", models.RoleViewer, models.RoleAdmin, false},
		{"editor meets viewer", models.RoleEditor, models.RoleViewer, true},
		{"editor meets editor", models.RoleEditor, models.RoleEditor, true},
		{"editor below admin", models.RoleEditor, models.RoleAdmin, false},
		{"admin meets everything", models.RoleAdmin, models.RoleViewer, true},
		{"admin meets admin", models.RoleAdmin, models.RoleAdmin, true},
		{"unknown actual satisfies nothing", models.Role("owner"), models.RoleViewer, false},
		{"empty actual satisfies nothing", models.Role(""), models.RoleViewer, false},
		{"unknown requirement satisfied by nothing", models.RoleAdmin, models.Role("superuser"), false},
		{"both unknown", models.Role("x"), models.Role("y"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Satisfies(tt.actual, tt.required))
		})
	}
}
