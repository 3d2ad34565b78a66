package cognito

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AdminGroup is the Cognito group allowed to manage capture rules
const AdminGroup = "admin"

// ErrMissingClaim is returned when a required claim is missing
var ErrMissingClaim = errors.New("missing required claim")

// ExtractClaims parses claims from a token without verifying it. Only use
// it on tokens that were validated elsewhere.
func ExtractClaims(tokenString string) (*ParsedClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return parseClaims(claims)
}

func parseClaims(claims *Claims) (*ParsedClaims, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	username := claims.CognitoUsername
	if username == "" {
		username = claims.Username
	}

	parsed := &ParsedClaims{
		Sub:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Username:      username,
		Groups:        append([]string(nil), claims.Groups...),
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}
	return parsed, nil
}

// HasGroup reports whether the user belongs to group
func (p *ParsedClaims) HasGroup(group string) bool {
	for _, g := range p.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// IsAdmin reports membership of AdminGroup
func (p *ParsedClaims) IsAdmin() bool {
	return p.HasGroup(AdminGroup)
}

// DisplayName picks the most human-friendly identifier available
func (p *ParsedClaims) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	case p.Username != "":
		return p.Username
	}
	return p.Sub
}
