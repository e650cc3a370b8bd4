package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

func newTestTokenService() *TokenService {
	return NewTokenService(config.JWTConfig{Secret: "test-secret", Issuer: "course-enrollment-api", Expiration: time.Hour})
}

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := newTestTokenService()

	token, expiresAt, err := svc.Issue("jdoe", models.RoleStudent, "S001")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, "S001", claims.StudentNumber)
	assert.Equal(t, "jdoe", claims.Subject)
}

func TestTokenServiceRejectsForeignSecretAndExpiry(t *testing.T) {
	svc := newTestTokenService()
	other := NewTokenService(config.JWTConfig{Secret: "other", Issuer: "course-enrollment-api"})

	token, _, err := other.Issue("registrar", models.RoleRegistrar, "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := svc.Issue("admin", models.RoleAdmin, "")
	require.NoError(t, err)
	svc.now = time.Now
	_, err = svc.ValidateToken(expired)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestTokenServiceIssueValidatesRole(t *testing.T) {
	svc := newTestTokenService()

	_, _, err := svc.Issue("x", models.RoleStudent, "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Issue("x", models.Role("JANITOR"), "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
