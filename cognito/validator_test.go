package cognito

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKid    = "test-kid-123"
	testClient = "case-portal-client"
	testIssuer = "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_test123"
)

func generateTestKeyPair(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey
}

// newJWKSServer serves a single key and counts requests
func newJWKSServer(t *testing.T, publicKey *rsa.PublicKey, kid string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		jwks := JWKS{Keys: []JWK{{
			Kid: kid,
			Kty: "RSA",
			Alg: "RS256",
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func testClaims() *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "7d1f0c2e-1111-4c1a-9f00-3a5b9d2e0001",
			Audience:  jwt.ClaimStrings{testClient},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email:           "dana@example.org",
		EmailVerified:   true,
		Name:            "Dana Staff",
		TokenUse:        "id",
		CognitoUsername: "dana",
		Groups:          []string{"staff", AdminGroup},
	}
}

func sign(t *testing.T, key *rsa.PrivateKey, kid string, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func newTestValidator(server *httptest.Server) *CognitoValidator {
	return NewCognitoValidator(Config{
		ClientID: testClient,
		Issuer:   testIssuer,
		JWKSURL:  server.URL,
	})
}

func TestNewCognitoValidator_DerivesURLs(t *testing.T) {
	v := NewCognitoValidator(Config{Region: "us-east-1", UserPoolID: "us-east-1_test123", ClientID: testClient})

	assert.Equal(t, testIssuer, v.issuer)
	assert.Equal(t, testIssuer+"/.well-known/jwks.json", v.jwksURL)
	assert.Equal(t, time.Hour, v.jwksCacheTTL)
	assert.NotNil(t, v.keyCache)
}

func TestValidateToken(t *testing.T) {
	key := generateTestKeyPair(t)
	server, hits := newJWKSServer(t, &key.PublicKey, testKid)
	v := newTestValidator(server)
	ctx := context.Background()

	t.Run("id token", func(t *testing.T) {
		claims, err := v.ValidateToken(ctx, sign(t, key, testKid, testClaims()))
		require.NoError(t, err)
		assert.Equal(t, "7d1f0c2e-1111-4c1a-9f00-3a5b9d2e0001", claims.Sub)
		assert.Equal(t, "dana", claims.Username)
		assert.True(t, claims.IsAdmin())
		assert.Equal(t, "Dana Staff", claims.DisplayName())
	})

	t.Run("access token checks client_id", func(t *testing.T) {
		c := testClaims()
		c.TokenUse = "access"
		c.Audience = nil
		c.ClientID = testClient
		_, err := v.ValidateToken(ctx, sign(t, key, testKid, c))
		require.NoError(t, err)

		c.ClientID = "someone-else"
		_, err = v.ValidateToken(ctx, sign(t, key, testKid, c))
		assert.ErrorIs(t, err, ErrInvalidAudience)
	})

	t.Run("keys are cached", func(t *testing.T) {
		assert.Equal(t, int32(1), hits.Load())
	})
}

func TestValidateToken_Rejections(t *testing.T) {
	key := generateTestKeyPair(t)
	server, _ := newJWKSServer(t, &key.PublicKey, testKid)
	v := newTestValidator(server)
	ctx := context.Background()

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{
			name: "expired",
			token: func() string {
				c := testClaims()
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
				return sign(t, key, testKid, c)
			},
			wantErr: ErrTokenExpired,
		},
		{
			name: "wrong issuer",
			token: func() string {
				c := testClaims()
				c.Issuer = "https://example.org"
				return sign(t, key, testKid, c)
			},
			wantErr: ErrInvalidIssuer,
		},
		{
			name: "wrong audience",
			token: func() string {
				c := testClaims()
				c.Audience = jwt.ClaimStrings{"other"}
				return sign(t, key, testKid, c)
			},
			wantErr: ErrInvalidAudience,
		},
		{
			name: "unknown token use",
			token: func() string {
				c := testClaims()
				c.TokenUse = "refresh"
				return sign(t, key, testKid, c)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "signed by another key",
			token: func() string {
				return sign(t, generateTestKeyPair(t), testKid, testClaims())
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "unknown kid",
			token: func() string {
				return sign(t, key, "rotated-away", testClaims())
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing sub",
			token: func() string {
				c := testClaims()
				c.Subject = ""
				return sign(t, key, testKid, c)
			},
			wantErr: ErrMissingClaim,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(ctx, tt.token())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestFetchJWKS_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestValidator(server).FetchJWKS(context.Background())
	assert.ErrorIs(t, err, ErrJWKSFetchFailed)
}

func TestInvalidateCache(t *testing.T) {
	key := generateTestKeyPair(t)
	server, hits := newJWKSServer(t, &key.PublicKey, testKid)
	v := newTestValidator(server)
	ctx := context.Background()

	_, err := v.ValidateToken(ctx, sign(t, key, testKid, testClaims()))
	require.NoError(t, err)

	v.InvalidateCache()
	assert.Nil(t, v.jwksCache)
	assert.Empty(t, v.keyCache)

	_, err = v.ValidateToken(ctx, sign(t, key, testKid, testClaims()))
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestJWKToRSAPublicKey(t *testing.T) {
	key := generateTestKeyPair(t)
	jwk := &JWK{
		Kty: "RSA",
		N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}

	pub, err := jwkToRSAPublicKey(jwk)
	require.NoError(t, err)
	assert.Equal(t, key.N, pub.N)
	assert.Equal(t, key.E, pub.E)

	_, err = jwkToRSAPublicKey(&JWK{Kty: "EC"})
	assert.Error(t, err)
}
