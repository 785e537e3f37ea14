package auth

import (
	"errors"
	"fmt"
	"time"

	"model_settings/internal/config"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingUser  = errors.New("token has no subject")
)

// DefaultTokenTTL is used when GenerateUserToken gets a zero ttl
const DefaultTokenTTL = 24 * time.Hour

// UserClaims identifies the user whose providers a request operates on.
// The user id travels as the standard subject claim.
type UserClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject
func (c *UserClaims) UserID() string {
	return c.Subject
}

// HasRole reports whether any of the token's roles grants required
func (c *UserClaims) HasRole(required Role) bool {
	for _, r := range c.Roles {
		if Role(r).HasPermission(required) {
			return true
		}
	}
	return false
}

// GenerateUserToken signs an HS256 token for userID. With no roles the token is an owner token.
func GenerateUserToken(userID string, roles []Role, ttl time.Duration, cfg *config.Config) (string, int64, error) {
	if userID == "" {
		return "", 0, ErrMissingUser
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if len(roles) == 0 {
		roles = []Role{RoleOwner}
	}

	names := make([]string, 0, len(roles))
	for _, r := range roles {
		if !r.IsValid() {
			return "", 0, fmt.Errorf("unknown role %q", r)
		}
		names = append(names, r.String())
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := UserClaims{
		Roles: names,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(cfg.JWTSecret)
	if err != nil {
		return "", 0, err
	}
	return signedToken, expiresAt.Unix(), nil
}

// ValidateUserToken verifies signature, algorithm and expiry and returns the claims
func ValidateUserToken(tokenString string, cfg *config.Config) (*UserClaims, error) {
	claims := &UserClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.JWTSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingUser
	}
	return claims, nil
}
