package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw1")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "pw1", hash)

	assert.True(t, CheckPasswordHash("pw1", hash))
	assert.False(t, CheckPasswordHash("pw2", hash))
	assert.False(t, CheckPasswordHash("pw1", "not-a-hash"))
}

func TestNewDeleteToken(t *testing.T) {
	tok, err := NewDeleteToken()
	require.NoError(t, err)

	// 32 bytes of entropy, hex-encoded: 64 lowercase hex characters.
	assert.Len(t, tok, 64)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), tok)

	other, err := NewDeleteToken()
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestVerifyToken(t *testing.T) {
	tok, err := NewDeleteToken()
	require.NoError(t, err)
	stored := HashToken(tok)

	assert.True(t, VerifyToken(tok, stored))
	assert.False(t, VerifyToken("wrong", stored))
	assert.False(t, VerifyToken("", stored))
	assert.False(t, VerifyToken(tok, ""))
	// The plaintext must never equal the stored digest.
	assert.NotEqual(t, tok, stored)
}
