package token

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskvault/core/internal/infrastructure/config"
)

// CookieName is the fixed carrier for the identity token.
const CookieName = "tv_token"

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Service issues and verifies signed identity assertions.
type Service struct {
	secret       []byte
	expiresIn    time.Duration
	issuer       string
	secureCookie bool
}

// NewService creates a token service from configuration. secureCookie
// selects the Secure flag on the transport cookie (production only).
func NewService(cfg config.JWTConfig, secureCookie bool) *Service {
	return &Service{
		secret:       []byte(cfg.Secret),
		expiresIn:    cfg.ExpiresIn,
		issuer:       cfg.Issuer,
		secureCookie: secureCookie,
	}
}

// Issue signs a token binding the user's identity for the configured
// lifetime.
func (s *Service) Issue(userID uuid.UUID, email, name string) (string, error) {
	now := time.Now()

	claims := &Claims{
		UserID: userID.String(),
		Email:  email,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify validates signature and expiry. Any failure (bad signature,
// expired, malformed input) yields ok=false; callers treat that
// uniformly as unauthenticated.
func (s *Service) Verify(tokenString string) (*Claims, bool) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, false
	}

	return claims, true
}

// Cookie wraps a signed token in the transport cookie.
func (s *Service) Cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.expiresIn.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearCookie returns a cookie that removes the carrier. This is
// transport-level revocation only: a token captured before logout stays
// valid until it expires.
func (s *Service) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

// FromRequest extracts and verifies the token from the request cookie.
func (s *Service) FromRequest(r *http.Request) (*Claims, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return s.Verify(cookie.Value)
}
