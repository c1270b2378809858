package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coragem/retrieval"
)

func newVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := New(Config{Secret: "test-secret", Issuer: "coragem"})
	require.NoError(t, err)
	return v
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, retrieval.ErrInvalidConfig)
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	v := newVerifier(t)

	token, err := v.Issue(retrieval.Identity{
		UserID:     "u-1",
		Department: "HR",
		Role:       retrieval.RoleManager,
	})
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.UserID)
	assert.Equal(t, "HR", id.Department)
	assert.Equal(t, retrieval.RoleManager, id.Role)
	assert.False(t, id.IsAdmin())
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v := newVerifier(t)
	other, err := New(Config{Secret: "other-secret", Issuer: "coragem"})
	require.NoError(t, err)

	token, err := other.Issue(retrieval.Identity{
		UserID: "u-1", Department: "HR", Role: retrieval.RoleEmployee,
	})
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, retrieval.ErrPermissionDenied)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v, err := New(Config{Secret: "test-secret", TokenTTL: -time.Hour})
	require.NoError(t, err)

	token, err := v.Issue(retrieval.Identity{
		UserID: "u-1", Department: "HR", Role: retrieval.RoleEmployee,
	})
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, retrieval.ErrPermissionDenied)
}

func TestVerifyRejectsMissingDepartment(t *testing.T) {
	v := newVerifier(t)

	claims := Claims{
		Role: retrieval.RoleEmployee,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "coragem",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, retrieval.ErrPermissionDenied)
}

func TestVerifyRejectsUnknownRole(t *testing.T) {
	v := newVerifier(t)

	claims := Claims{
		Department: "HR",
		Role:       "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			Issuer:    "coragem",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, retrieval.ErrPermissionDenied)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	v := newVerifier(t)
	other, err := New(Config{Secret: "test-secret", Issuer: "someone-else"})
	require.NoError(t, err)

	token, err := other.Issue(retrieval.Identity{
		UserID: "u-1", Department: "HR", Role: retrieval.RoleEmployee,
	})
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, retrieval.ErrPermissionDenied)
}
