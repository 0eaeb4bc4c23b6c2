package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName holds the session token for browser clients.
const CookieName = "saldo_session"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// SessionManager issues and verifies HS256 session tokens.
type SessionManager struct {
	secretKey     []byte
	tokenDuration time.Duration
	secureCookie  bool
	now           func() time.Time
}

// Claims represents the custom JWT claims for a user session.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func NewSessionManager(secretKey string, tokenDuration time.Duration, secureCookie bool) *SessionManager {
	return &SessionManager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
		secureCookie:  secureCookie,
		now:           time.Now,
	}
}

// Generate creates a signed token for id and returns it with its expiry.
func (m *SessionManager) Generate(id *Identity) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.tokenDuration)
	claims := &Claims{
		Name: id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expires, nil
}

// Validate parses a token and returns the identity it was issued for.
func (m *SessionManager) Validate(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{Subject: claims.Subject, Name: claims.Name}, nil
}

// TokenFromRequest reads a Bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", ErrInvalidToken
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", ErrMissingToken
}

// SetCookie stores token in an HttpOnly cookie expiring with the session.
func (m *SessionManager) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
