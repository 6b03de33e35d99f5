// ABOUTME: Tests for bearer token handling.
// ABOUTME: Covers opaque tokens, JWT expiry mapping, and the no-auth path.

package backend

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// signedToken builds an HS256 JWT expiring at exp.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestTokenSource_EmptyTokenYieldsNoHeader(t *testing.T) {
	ts := NewTokenSource("", discardLogger())

	header, err := ts.Authorization()
	require.NoError(t, err)
	assert.Empty(t, header)
}

func TestTokenSource_NilSourceYieldsNoHeader(t *testing.T) {
	var ts *TokenSource

	header, err := ts.Authorization()
	require.NoError(t, err)
	assert.Empty(t, header)
}

func TestTokenSource_OpaqueTokenPassesThrough(t *testing.T) {
	ts := NewTokenSource("abc123", discardLogger())

	header, err := ts.Authorization()
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc123", header)
}

func TestTokenSource_ValidJWTPassesThrough(t *testing.T) {
	raw := signedToken(t, time.Now().Add(time.Hour))
	ts := NewTokenSource(raw, discardLogger())

	header, err := ts.Authorization()
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+raw, header)
}

func TestTokenSource_ExpiredJWTFailsFast(t *testing.T) {
	raw := signedToken(t, time.Now().Add(-time.Hour))
	ts := NewTokenSource(raw, discardLogger())

	_, err := ts.Authorization()
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenSource_MalformedJWTTreatedAsOpaque(t *testing.T) {
	// Two dots but not a decodable JWT: falls back to opaque pass-through.
	ts := NewTokenSource("not.a.jwt", discardLogger())

	header, err := ts.Authorization()
	require.NoError(t, err)
	assert.Equal(t, "Bearer not.a.jwt", header)
}
