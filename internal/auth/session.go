package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultSessionTTL = 12 * time.Hour

var (
	// ErrMissingSigningKey indicates the session secret was not configured.
	ErrMissingSigningKey = errors.New("auth: session signing key required")
	// ErrMissingIssuer indicates the session issuer was not configured.
	ErrMissingIssuer = errors.New("auth: session issuer required")
	// ErrMissingCookieName indicates the session cookie name was not configured.
	ErrMissingCookieName = errors.New("auth: session cookie name required")
	// ErrMissingSessionToken indicates no token was present on the request.
	ErrMissingSessionToken = errors.New("auth: session token required")
	// ErrInvalidSessionToken indicates the token failed validation.
	ErrInvalidSessionToken = errors.New("auth: invalid session token")
	// ErrExpiredSessionToken indicates the token is past its expiry.
	ErrExpiredSessionToken = errors.New("auth: session token expired")
)

// SessionClaims is the JWT payload of a first-party session.
type SessionClaims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// SessionManagerConfig configures session issuance and validation.
type SessionManagerConfig struct {
	SigningKey []byte
	Issuer     string
	CookieName string
	TTL        time.Duration
	Clock      func() time.Time
}

// SessionManager issues HS256 session tokens after Google verification and
// validates them on later requests, from either the session cookie or a
// bearer header.
type SessionManager struct {
	signingKey []byte
	issuer     string
	cookieName string
	ttl        time.Duration
	clock      func() time.Time
}

// NewSessionManager constructs a session manager with validated configuration.
func NewSessionManager(cfg SessionManagerConfig) (*SessionManager, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, ErrMissingIssuer
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingCookieName
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionManager{
		signingKey: append([]byte(nil), cfg.SigningKey...),
		issuer:     issuer,
		cookieName: cookieName,
		ttl:        ttl,
		clock:      clock,
	}, nil
}

// CookieName returns the cookie used for session lookups.
func (m *SessionManager) CookieName() string {
	return m.cookieName
}

// TTL returns the configured session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue mints a session token for a verified identity. The returned expiry
// is seconds until the token lapses.
func (m *SessionManager) Issue(identity GoogleIdentity) (string, int64, error) {
	if identity.Subject == "" {
		return "", 0, fmt.Errorf("%w: missing subject", ErrInvalidSessionToken)
	}

	now := m.clock().UTC()
	expiresAt := now.Add(m.ttl)
	claims := SessionClaims{
		Email:   identity.Email,
		Name:    identity.Name,
		Picture: identity.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(m.ttl.Seconds()), nil
}

// ValidateToken checks the raw token and returns its claims.
func (m *SessionManager) ValidateToken(tokenString string) (SessionClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return SessionClaims{}, ErrMissingSessionToken
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidSessionToken, t.Method.Alg())
			}
			return m.signingKey, nil
		},
		jwt.WithTimeFunc(m.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrExpiredSessionToken
		}
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return SessionClaims{}, ErrInvalidSessionToken
	}
	if claims.Issuer != m.issuer {
		return SessionClaims{}, ErrInvalidSessionToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return SessionClaims{}, ErrInvalidSessionToken
	}
	return *claims, nil
}

// ValidateRequest pulls the session from the cookie, falling back to an
// Authorization bearer token.
func (m *SessionManager) ValidateRequest(r *http.Request) (SessionClaims, error) {
	if r == nil {
		return SessionClaims{}, ErrMissingSessionToken
	}
	if cookie, err := r.Cookie(m.cookieName); err == nil && cookie != nil && cookie.Value != "" {
		return m.ValidateToken(cookie.Value)
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return m.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	}
	return SessionClaims{}, ErrMissingSessionToken
}
