package auth

import (
	"crypto/subtle"
	"errors"
	"time"
)

var (
	// ErrInvalidPassword is returned for a wrong admin password.
	ErrInvalidPassword = errors.New("invalid admin password")
	// ErrAdminDisabled means no admin password is configured.
	ErrAdminDisabled = errors.New("admin console disabled")
)

// AdminGate unlocks the admin console with the shared password. The password
// is a plain shared secret; a successful unlock yields a short-lived token
// and nothing is kept server-side.
type AdminGate struct {
	password []byte
	tokens   *JWTManager
}

func NewAdminGate(password string, tokens *JWTManager) *AdminGate {
	return &AdminGate{password: []byte(password), tokens: tokens}
}

// Enabled reports whether a password is configured.
func (g *AdminGate) Enabled() bool {
	return g != nil && len(g.password) > 0 && g.tokens != nil
}

// Unlock checks password and issues an admin token.
func (g *AdminGate) Unlock(password string) (string, time.Time, error) {
	if !g.Enabled() {
		return "", time.Time{}, ErrAdminDisabled
	}
	if subtle.ConstantTimeCompare([]byte(password), g.password) != 1 {
		return "", time.Time{}, ErrInvalidPassword
	}
	return g.tokens.Generate("admin-console", RoleAdmin)
}

// Verify validates a token issued by Unlock.
func (g *AdminGate) Verify(token string) (*Claims, error) {
	if !g.Enabled() {
		return nil, ErrAdminDisabled
	}
	claims, err := g.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
