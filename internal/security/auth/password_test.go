package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_SaltedAndVerifiable(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	first, err := h.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	second, err := h.HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "each hash carries its own salt")
	assert.True(t, VerifyPassword("correct horse battery staple", first))
	assert.True(t, VerifyPassword("correct horse battery staple", second))
	assert.False(t, VerifyPassword("correct horse battery stapler", first))
}

func TestHashPassword_LongInputsDoNotCollide(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)
	prefix := strings.Repeat("a", 80)

	hash, err := h.HashPassword(prefix + "1")
	require.NoError(t, err)

	assert.True(t, VerifyPassword(prefix+"1", hash))
	assert.False(t, VerifyPassword(prefix+"2", hash), "bytes past 72 must still count")
}

func TestHashPassword_UnicodeAndEmpty(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	for _, pw := range []string{"", "pässwörd-日本語-🔑", strings.Repeat("ж", 100)} {
		hash, err := h.HashPassword(pw)
		require.NoError(t, err)
		assert.True(t, VerifyPassword(pw, hash))
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("anything", ""))
	assert.False(t, VerifyPassword("anything", "not-a-bcrypt-hash"))
	assert.False(t, VerifyPassword("anything", "$2a$04$short"))
}

func TestNewPasswordHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.MinCost, NewPasswordHasher(1).cost)
	assert.Equal(t, bcrypt.MaxCost, NewPasswordHasher(99).cost)
}

func TestDummyHash_IsStableAndValid(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	d := h.DummyHash()
	require.NotEmpty(t, d)
	assert.Equal(t, d, h.DummyHash())

	cost, err := bcrypt.Cost([]byte(d))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}
