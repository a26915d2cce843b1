package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour

// Role identifies the credential class carried by an issued token.
type Role string

const (
	// RoleAdmin grants full operator access to the review surface.
	RoleAdmin Role = "admin"
	// RoleCapture grants kiosk access to submission creation only.
	RoleCapture Role = "capture"
	// RoleProcessor marks requests authenticated with the processor shared secret.
	// Processor credentials are never issued as tokens.
	RoleProcessor Role = "processor"
)

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingRoleClaim     = errors.New("role claim must be provided")
	errUnknownRole          = errors.New("unknown role claim")
)

// ParseRole validates a raw role string.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleAdmin, RoleCapture, RoleProcessor:
		return Role(value), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownRole, value)
	}
}

type roleClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures the role token issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer issues and validates HS256 role tokens for kiosk and admin clients.
type TokenIssuer struct {
	config TokenIssuerConfig
	clock  func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) *TokenIssuer {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		config: TokenIssuerConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        cfg.Issuer,
			Audience:      cfg.Audience,
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}
}

// IssueRoleToken produces a signed JWT carrying the role claim and its expiry in seconds.
func (i *TokenIssuer) IssueRoleToken(role Role) (string, int64, error) {
	if len(i.config.SigningSecret) == 0 {
		return "", 0, errMissingSigningSecret
	}
	if role != RoleAdmin && role != RoleCapture {
		return "", 0, fmt.Errorf("%w: %q", errUnknownRole, role)
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.config.TokenTTL).UTC()

	claims := roleClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(role),
			Issuer:    i.config.Issuer,
			Audience:  []string{i.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateToken ensures the token is well formed and returns the embedded role.
func (i *TokenIssuer) ValidateToken(tokenString string) (Role, error) {
	if len(i.config.SigningSecret) == 0 {
		return "", errMissingSigningSecret
	}

	claims := &roleClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return i.config.SigningSecret, nil
		},
		jwt.WithAudience(i.config.Audience),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		return "", err
	}
	if claims.Role == "" {
		return "", errMissingRoleClaim
	}
	return ParseRole(claims.Role)
}
