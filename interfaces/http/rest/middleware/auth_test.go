package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"imagio-backend/pkg/auth"
)

const testSigningSecret = "local-dev-secret-local-dev-secret"

func newAuthFixture(t *testing.T) (*auth.JWTValidator, *auth.JWTGenerator) {
	t.Helper()
	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     testSigningSecret,
		Issuer:        "imagio",
		Audience:      []string{"imagio-api"},
	})
	require.NoError(t, err)
	generator := auth.NewJWTGenerator(testSigningSecret, "imagio", []string{"imagio-api"}, time.Minute)
	return validator, generator
}

func TestAuthenticateWithConfigAcceptsIssuedToken(t *testing.T) {
	validator, generator := newAuthFixture(t)
	token, err := generator.GenerateToken("user-42", "dev@example.com", []string{"user"})
	require.NoError(t, err)

	var seen *auth.UserContext
	handler := AuthenticateWithConfig(validator, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.GetUserFromContext(r.Context())
		require.NoError(t, err)
		seen = user
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-42", seen.UserID)
	assert.Equal(t, "dev@example.com", seen.Email)
	assert.Equal(t, []string{"user"}, seen.Roles)
}

func TestAuthenticateWithConfigRejectsMissingToken(t *testing.T) {
	validator, _ := newAuthFixture(t)

	handler := AuthenticateWithConfig(validator, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/images", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateWithConfigRejectsForeignSignature(t *testing.T) {
	validator, _ := newAuthFixture(t)
	forged := auth.NewJWTGenerator("some-other-secret-some-other-key", "imagio", []string{"imagio-api"}, time.Minute)
	token, err := forged.GenerateToken("user-42", "dev@example.com", nil)
	require.NoError(t, err)

	handler := AuthenticateWithConfig(validator, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a forged token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateWithConfigRejectsExpiredToken(t *testing.T) {
	validator, _ := newAuthFixture(t)
	stale := auth.NewJWTGenerator(testSigningSecret, "imagio", []string{"imagio-api"}, -time.Minute)
	token, err := stale.GenerateToken("user-42", "dev@example.com", nil)
	require.NoError(t, err)

	handler := AuthenticateWithConfig(validator, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with an expired token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
