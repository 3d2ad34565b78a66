package cognito

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsignedToken(t *testing.T, claims *Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-verified"))
	require.NoError(t, err)
	return s
}

func TestExtractClaims(t *testing.T) {
	claims, err := ExtractClaims(unsignedToken(t, testClaims()))
	require.NoError(t, err)

	assert.Equal(t, "7d1f0c2e-1111-4c1a-9f00-3a5b9d2e0001", claims.Sub)
	assert.Equal(t, "dana@example.org", claims.Email)
	assert.Equal(t, []string{"staff", AdminGroup}, claims.Groups)
	assert.False(t, claims.ExpiresAt.IsZero())
}

func TestExtractClaims_AccessTokenUsername(t *testing.T) {
	c := testClaims()
	c.CognitoUsername = ""
	c.Username = "access-user"

	claims, err := ExtractClaims(unsignedToken(t, c))
	require.NoError(t, err)
	assert.Equal(t, "access-user", claims.Username)
}

func TestExtractClaims_Invalid(t *testing.T) {
	_, err := ExtractClaims("not-a-token")
	assert.Error(t, err)

	c := testClaims()
	c.Subject = ""
	_, err = ExtractClaims(unsignedToken(t, c))
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestParsedClaims_Groups(t *testing.T) {
	p := &ParsedClaims{Sub: "s", Groups: []string{"staff"}}
	assert.True(t, p.HasGroup("staff"))
	assert.False(t, p.IsAdmin())

	p.Groups = append(p.Groups, AdminGroup)
	assert.True(t, p.IsAdmin())
}

func TestParsedClaims_DisplayName(t *testing.T) {
	tests := []struct {
		claims ParsedClaims
		want   string
	}{
		{ParsedClaims{Sub: "s", Name: "Ana", Email: "a@x.org", Username: "ana"}, "Ana"},
		{ParsedClaims{Sub: "s", Email: "a@x.org", Username: "ana"}, "a@x.org"},
		{ParsedClaims{Sub: "s", Username: "ana"}, "ana"},
		{ParsedClaims{Sub: "s"}, "s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.claims.DisplayName())
	}
}
