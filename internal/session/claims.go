package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo describes the current credential for display. It never affects
// whether the session counts as authenticated.
type TokenInfo struct {
	Present   bool
	Opaque    bool
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Describe decodes the credential's claims without verifying the signature.
// Tokens that are not JWTs are reported as opaque.
func (m *Manager) Describe() TokenInfo {
	token, ok := m.Token()
	if !ok {
		return TokenInfo{}
	}
	return describe(token)
}

func describe(token string) TokenInfo {
	info := TokenInfo{Present: true}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		info.Opaque = true
		return info
	}

	info.Subject, _ = claims.GetSubject()
	if info.Subject == "" {
		if uid, ok := claims["user_id"].(string); ok {
			info.Subject = uid
		}
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info
}
