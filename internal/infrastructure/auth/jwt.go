package auth

import (
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/config"
)

// Permissions carried by operator tokens
const (
	PermissionLoanRead     = "loan:read"
	PermissionLoanDisburse = "loan:disburse"
	PermissionPaymentPost  = "payment:post"
	PermissionRecompute    = "delinquency:recompute"
	PermissionEscalate     = "delinquency:escalate"
	PermissionWriteOff     = "delinquency:write_off"
	PermissionCure         = "delinquency:cure"
	PermissionLegalClose   = "legal:close"
	PermissionSweepRun     = "sweep:run"
	PermissionReportRead   = "report:read"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingTenantID  = errors.New("missing tenant_id in claims")
	ErrMissingOperator  = errors.New("missing operator in claims")
)

// Claims identifies the operator behind a request. Tokens are issued by the
// upstream identity provider with the shared secret; Subject is the
// operator's login, which is recorded on manual bucket transitions.
type Claims struct {
	jwt.RegisteredClaims
	TenantID    string   `json:"tenant_id"`
	OperatorID  string   `json:"operator_id"`
	Name        string   `json:"name,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// TenantUUID parses the tenant ID
func (c *Claims) TenantUUID() (uuid.UUID, error) {
	return uuid.Parse(c.TenantID)
}

// Operator returns the operator login
func (c *Claims) Operator() string {
	return c.Subject
}

// OperatorUUID parses the operator ID recorded on manual bucket actions
func (c *Claims) OperatorUUID() (uuid.UUID, error) {
	return uuid.Parse(c.OperatorID)
}

// HasPermission checks if the claims contain a specific permission
func (c *Claims) HasPermission(permission string) bool {
	return slices.Contains(c.Permissions, permission)
}

// HasAnyPermission checks if the claims contain any of the permissions
func (c *Claims) HasAnyPermission(permissions ...string) bool {
	for _, required := range permissions {
		if c.HasPermission(required) {
			return true
		}
	}
	return false
}

// ExpiresAtTime returns the token's expiration time
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// OperatorTokenService validates operator tokens and issues them for
// service accounts and tooling
type OperatorTokenService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
	now        func() time.Time
}

// NewOperatorTokenService creates a new token service
func NewOperatorTokenService(cfg config.JWTConfig) *OperatorTokenService {
	return &OperatorTokenService{
		secret:     []byte(cfg.Secret),
		expiration: cfg.AccessTokenExpiration,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}
}

// IssueInput contains input for token issuance
type IssueInput struct {
	TenantID    uuid.UUID
	OperatorID  uuid.UUID
	Operator    string
	Name        string
	Permissions []string
}

// Issue signs a token for an operator
func (s *OperatorTokenService) Issue(input IssueInput) (string, time.Time, error) {
	if input.TenantID == uuid.Nil {
		return "", time.Time{}, ErrMissingTenantID
	}
	if input.Operator == "" || input.OperatorID == uuid.Nil {
		return "", time.Time{}, ErrMissingOperator
	}

	now := s.now()
	expiresAt := now.Add(s.expiration)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   input.Operator,
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID:    input.TenantID.String(),
		OperatorID:  input.OperatorID.String(),
		Name:        input.Name,
		Permissions: input.Permissions,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate checks signature, expiry and issuer and returns the claims
func (s *OperatorTokenService) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TenantID == "" {
		return nil, ErrMissingTenantID
	}
	if _, err := claims.TenantUUID(); err != nil {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" || claims.OperatorID == "" {
		return nil, ErrMissingOperator
	}
	if _, err := claims.OperatorUUID(); err != nil {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// Expiration returns the lifetime of issued tokens
func (s *OperatorTokenService) Expiration() time.Duration {
	return s.expiration
}
