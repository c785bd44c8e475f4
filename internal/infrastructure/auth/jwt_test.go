package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-characters"

func newTestService() *OperatorTokenService {
	return NewOperatorTokenService(config.JWTConfig{
		Secret:                testSecret,
		Issuer:                "loan-engine",
		AccessTokenExpiration: 15 * time.Minute,
	})
}

func newTestInput() IssueInput {
	return IssueInput{
		TenantID:    uuid.New(),
		OperatorID:  uuid.New(),
		Operator:    "ops.priya",
		Name:        "Priya",
		Permissions: []string{PermissionEscalate, PermissionLoanRead},
	}
}

func TestOperatorTokenService_IssueAndValidate(t *testing.T) {
	svc := newTestService()
	input := newTestInput()

	token, expiresAt, err := svc.Issue(input)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "ops.priya", claims.Operator())
	operatorID, err := claims.OperatorUUID()
	require.NoError(t, err)
	assert.Equal(t, input.OperatorID, operatorID)
	assert.Equal(t, "Priya", claims.Name)
	tenantID, err := claims.TenantUUID()
	require.NoError(t, err)
	assert.Equal(t, input.TenantID, tenantID)
	assert.True(t, claims.HasPermission(PermissionEscalate))
	assert.False(t, claims.HasPermission(PermissionWriteOff))
	assert.True(t, claims.HasAnyPermission(PermissionWriteOff, PermissionLoanRead))
	assert.Equal(t, expiresAt.Unix(), claims.ExpiresAtTime().Unix())
}

func TestOperatorTokenService_IssueValidation(t *testing.T) {
	svc := newTestService()

	input := newTestInput()
	input.TenantID = uuid.Nil
	_, _, err := svc.Issue(input)
	assert.ErrorIs(t, err, ErrMissingTenantID)

	input = newTestInput()
	input.Operator = ""
	_, _, err = svc.Issue(input)
	assert.ErrorIs(t, err, ErrMissingOperator)

	input = newTestInput()
	input.OperatorID = uuid.Nil
	_, _, err = svc.Issue(input)
	assert.ErrorIs(t, err, ErrMissingOperator)
}

func TestOperatorTokenService_Validate_Rejects(t *testing.T) {
	svc := newTestService()
	good, _, err := svc.Issue(newTestInput())
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		past := newTestService()
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := past.Issue(newTestInput())
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		future := newTestService()
		future.now = func() time.Time { return time.Now().Add(time.Hour) }
		token, _, err := future.Issue(newTestInput())
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrTokenNotYetValid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewOperatorTokenService(config.JWTConfig{
			Secret:                "another-secret-key-at-least-32-chars",
			Issuer:                "loan-engine",
			AccessTokenExpiration: time.Minute,
		})
		_, err := other.Validate(good)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewOperatorTokenService(config.JWTConfig{
			Secret:                testSecret,
			Issuer:                "someone-else",
			AccessTokenExpiration: time.Minute,
		})
		_, err := other.Validate(good)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ops.priya",
				Issuer:    "loan-engine",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
			TenantID: uuid.NewString(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("malformed tenant", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ops.priya",
				Issuer:    "loan-engine",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
			TenantID: "not-a-uuid",
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("missing operator", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "loan-engine",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
			TenantID: uuid.NewString(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrMissingOperator)
	})

	t.Run("malformed operator id", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "ops.priya",
				Issuer:    "loan-engine",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
			TenantID:   uuid.NewString(),
			OperatorID: "ops-7",
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
