package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionIssuer is the issuer expected when none is configured.
const DefaultSessionIssuer = "dietops-auth"

// Roles a session may carry.
const (
	RoleAdmin   = "admin"
	RoleCoach   = "coach"
	RoleAthlete = "athlete"
)

const bearerPrefix = "Bearer "

var (
	ErrMissingSessionSigningKey = errors.New("session validator: signing key required")
	ErrMissingSessionCookieName = errors.New("session validator: cookie name required")
	ErrMissingSessionToken      = errors.New("session validator: token required")
	ErrInvalidSessionToken      = errors.New("session validator: invalid token")
	ErrExpiredSessionToken      = errors.New("session validator: token expired")
	ErrMissingSessionSubject    = errors.New("session validator: subject required")
	ErrUnknownSessionRole       = errors.New("session validator: unknown role")
)

// SessionClaims is the JWT payload of a DietOps session. UserRoles only ever holds
// RoleAdmin, RoleCoach or RoleAthlete once validated.
type SessionClaims struct {
	UserID          string   `json:"user_id"`
	UserEmail       string   `json:"user_email"`
	UserDisplayName string   `json:"user_display_name"`
	UserRoles       []string `json:"user_roles"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims grant the role.
func (c SessionClaims) HasRole(role string) bool {
	for _, granted := range c.UserRoles {
		if granted == role {
			return true
		}
	}
	return false
}

// CanonicalRole parses a role name case-insensitively.
func CanonicalRole(value string) (string, bool) {
	switch role := strings.ToLower(strings.TrimSpace(value)); role {
	case RoleAdmin, RoleCoach, RoleAthlete:
		return role, true
	default:
		return "", false
	}
}

// normalizeRoles canonicalises and deduplicates roles, rejecting names outside the role set.
func normalizeRoles(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	roles := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		role, ok := CanonicalRole(value)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSessionRole, value)
		}
		if _, duplicate := seen[role]; duplicate {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles, nil
}

// SessionValidatorConfig describes how session JWTs are checked.
type SessionValidatorConfig struct {
	SigningSecret []byte
	Issuer        string
	CookieName    string
	Clock         func() time.Time
}

// SessionValidator checks HS256 session tokens presented as a bearer header or cookie.
type SessionValidator struct {
	signingSecret []byte
	issuer        string
	cookieName    string
	clock         func() time.Time
}

func NewSessionValidator(cfg SessionValidatorConfig) (*SessionValidator, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSessionSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingSessionCookieName
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultSessionIssuer
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SessionValidator{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		cookieName:    cookieName,
		clock:         clock,
	}, nil
}

func (v *SessionValidator) CookieName() string {
	return v.cookieName
}

// ValidateToken parses the token, enforcing signature, issuer, expiry, subject and role set.
func (v *SessionValidator) ValidateToken(tokenString string) (SessionClaims, error) {
	raw := strings.TrimSpace(tokenString)
	if raw == "" {
		return SessionClaims{}, ErrMissingSessionToken
	}

	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, v.signingKey,
		jwt.WithTimeFunc(v.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return SessionClaims{}, ErrExpiredSessionToken
	case err != nil:
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return SessionClaims{}, ErrMissingSessionSubject
	}
	roles, err := normalizeRoles(claims.UserRoles)
	if err != nil {
		return SessionClaims{}, fmt.Errorf("%w: %w", ErrInvalidSessionToken, err)
	}
	claims.UserRoles = roles
	return claims, nil
}

// ValidateRequest validates the bearer token when present and the session cookie otherwise.
func (v *SessionValidator) ValidateRequest(r *http.Request) (SessionClaims, error) {
	token, err := v.tokenFromRequest(r)
	if err != nil {
		return SessionClaims{}, err
	}
	return v.ValidateToken(token)
}

func (v *SessionValidator) tokenFromRequest(r *http.Request) (string, error) {
	if r == nil {
		return "", ErrMissingSessionToken
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, bearerPrefix) {
		return strings.TrimPrefix(header, bearerPrefix), nil
	}
	cookie, err := r.Cookie(v.cookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrMissingSessionToken
	}
	return cookie.Value, nil
}

func (v *SessionValidator) signingKey(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm %s", token.Method.Alg())
	}
	return v.signingSecret, nil
}
