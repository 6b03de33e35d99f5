// ABOUTME: Bearer token handling for gateway calls.
// ABOUTME: JWTs get client-side expiry checks so calls fail fast instead of bouncing off 401s.

package backend

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expiryWarnWindow is how close to expiry a JWT gets before calls start
// logging a renewal warning.
const expiryWarnWindow = 10 * time.Minute

// TokenSource supplies the Authorization header for gateway requests. Raw
// tokens that parse as JWTs are checked for expiry locally; opaque tokens
// pass through untouched. A nil TokenSource means no authentication.
type TokenSource struct {
	mu     sync.Mutex
	token  string
	expiry time.Time // zero for opaque or absent tokens
	warned bool

	logger *slog.Logger
	now    func() time.Time
}

// NewTokenSource wraps a raw bearer token. An empty token is valid and
// yields no Authorization header.
func NewTokenSource(raw string, logger *slog.Logger) *TokenSource {
	if logger == nil {
		logger = slog.Default()
	}
	token := strings.TrimSpace(raw)
	return &TokenSource{
		token:  token,
		expiry: jwtExpiry(token),
		logger: logger.With("component", "token"),
		now:    time.Now,
	}
}

// Authorization returns the header value for the configured token, or an
// empty string when there is none. A JWT past its expiry returns
// ErrExpiredToken without any network round-trip.
func (s *TokenSource) Authorization() (string, error) {
	if s == nil {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return "", nil
	}

	if !s.expiry.IsZero() {
		now := s.now()
		if !now.Before(s.expiry) {
			return "", fmt.Errorf("%w (expired %s)", ErrExpiredToken, s.expiry.Format(time.RFC3339))
		}
		if !s.warned && s.expiry.Sub(now) < expiryWarnWindow {
			s.logger.Warn("bearer token expires soon", "expires_at", s.expiry)
			s.warned = true
		}
	}

	return "Bearer " + s.token, nil
}

// jwtExpiry extracts the exp claim without verifying the signature. The
// client does not hold the signing secret; verification is the gateway's
// job. Anything that does not look like a JWT is treated as opaque.
func jwtExpiry(token string) time.Time {
	if strings.Count(token, ".") != 2 {
		return time.Time{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
