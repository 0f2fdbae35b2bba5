package middleware

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmonterde/go-story-chat-ollama/internal/domain"
	"github.com/rmonterde/go-story-chat-ollama/internal/port"
)

var testJWTConfig = JWTConfig{
	Secret:    "test-secret",
	Issuer:    "story-chat-test",
	ExpiresIn: time.Hour,
}

func testUser() *domain.User {
	return &domain.User{ID: "u-1", Username: "alice", Email: "alice@example.com"}
}

func TestGenerateAndValidateJWT(t *testing.T) {
	token, err := GenerateJWT(testUser(), testJWTConfig)
	require.NoError(t, err)
	require.Equal(t, 3, len(strings.Split(token, ".")))

	claims, err := validateJWT(token, testJWTConfig.Secret, testJWTConfig.Issuer)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT(testUser(), testJWTConfig)
	require.NoError(t, err)

	_, err = validateJWT(token, "other-secret", testJWTConfig.Issuer)
	assert.ErrorIs(t, err, port.ErrTokenInvalid)
}

func TestValidateJWTWrongIssuer(t *testing.T) {
	token, err := GenerateJWT(testUser(), testJWTConfig)
	require.NoError(t, err)

	_, err = validateJWT(token, testJWTConfig.Secret, "someone-else")
	assert.ErrorIs(t, err, port.ErrTokenInvalid)
}

func TestValidateJWTExpired(t *testing.T) {
	cfg := testJWTConfig
	cfg.ExpiresIn = -time.Minute
	token, err := GenerateJWT(testUser(), cfg)
	require.NoError(t, err)

	_, err = validateJWT(token, cfg.Secret, cfg.Issuer)
	assert.ErrorIs(t, err, port.ErrTokenExpired)
}

func TestValidateJWTTamperedPayload(t *testing.T) {
	token, err := GenerateJWT(testUser(), testJWTConfig)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"u-2","iss":"story-chat-test","exp":9999999999}`))
	tampered := parts[0] + "." + forged + "." + parts[2]

	_, err = validateJWT(tampered, testJWTConfig.Secret, testJWTConfig.Issuer)
	assert.ErrorIs(t, err, port.ErrTokenInvalid)
}

func TestValidateJWTMalformed(t *testing.T) {
	for _, tok := range []string{"", "abc", "a.b", "a.b.c.d"} {
		_, err := validateJWT(tok, testJWTConfig.Secret, testJWTConfig.Issuer)
		assert.ErrorIs(t, err, port.ErrTokenInvalid, tok)
	}
}
