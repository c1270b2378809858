// Package identity verifies caller tokens and maps them to the domain
// identity the coordinators trust for department scoping.
package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/coragem/retrieval"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 8 * time.Hour

// Config holds verifier configuration.
type Config struct {
	// Secret signs and verifies tokens (HMAC-SHA256).
	Secret string

	// Issuer, when set, is required to match the token's iss claim.
	Issuer string

	// TokenTTL applies to issued tokens.
	TokenTTL time.Duration
}

// Claims is the token payload. Department and Role become the identity the
// coordinators enforce isolation with; nothing else carries them.
type Claims struct {
	Department string         `json:"department"`
	Role       retrieval.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier issues and verifies HMAC-signed tokens.
type Verifier struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
}

// New creates a new token verifier.
func New(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: token secret is required", retrieval.ErrInvalidConfig)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}

	return &Verifier{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		tokenTTL: cfg.TokenTTL,
	}, nil
}

// Verify parses and validates a token and returns the caller identity.
func (v *Verifier) Verify(tokenString string) (retrieval.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return retrieval.Identity{}, fmt.Errorf("%w: %v", retrieval.ErrPermissionDenied, err)
	}

	if claims.Subject == "" {
		return retrieval.Identity{}, fmt.Errorf("%w: token has no subject", retrieval.ErrPermissionDenied)
	}
	if claims.Department == "" {
		return retrieval.Identity{}, fmt.Errorf("%w: token has no department", retrieval.ErrPermissionDenied)
	}
	switch claims.Role {
	case retrieval.RoleEmployee, retrieval.RoleManager, retrieval.RoleAdmin:
	default:
		return retrieval.Identity{}, fmt.Errorf("%w: unknown role %q", retrieval.ErrPermissionDenied, claims.Role)
	}

	return retrieval.Identity{
		UserID:     claims.Subject,
		Department: claims.Department,
		Role:       claims.Role,
	}, nil
}

// Issue signs a token for the given identity.
func (v *Verifier) Issue(id retrieval.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		Department: id.Department,
		Role:       id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
