package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	userID, orgID := uuid.New(), uuid.New()

	token, err := svc.Generate(userID, "alice@example.com", &orgID)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	require.NotNil(t, claims.OrgID)
	assert.Equal(t, orgID, *claims.OrgID)
}

func TestJWTWithoutOrganizationHint(t *testing.T) {
	svc := NewJWTService("test-secret", 1)

	token, err := svc.Generate(uuid.New(), "bob@example.com", nil)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Nil(t, claims.OrgID)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", 1).Generate(uuid.New(), "a@example.com", nil)
	require.NoError(t, err)

	_, err = NewJWTService("secret-b", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTRejectsGarbage(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	for _, tok := range []string{"", "not a token", "a.b.c"} {
		_, err := svc.Validate(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret", -1) // already expired at issue time

	token, err := svc.Generate(uuid.New(), "old@example.com", nil)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// Tokens identify the user and hint at an organization, nothing more. A role
// claim in the token would bypass per-request membership resolution, so its
// absence is load-bearing.
func TestJWTCarriesNoRoleClaim(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	orgID := uuid.New()

	token, err := svc.Generate(uuid.New(), "carol@example.com", &orgID)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))
	assert.NotContains(t, claims, "role")
	assert.Contains(t, claims, "user_id")
	assert.Contains(t, claims, "org_id")
}
