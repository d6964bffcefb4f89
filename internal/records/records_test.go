package records

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", NormalizeEmail("  Ana@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestHasher(t *testing.T) {
	h := Hasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.NoError(t, h.Check(hash, "s3cret"))
	assert.ErrorIs(t, h.Check(hash, "wrong"), ErrInvalidCredentials)

	err = h.Check("not-a-bcrypt-hash", "s3cret")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestHasher_PasswordTooLong(t *testing.T) {
	h := Hasher{Cost: bcrypt.MinCost}

	_, err := h.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	hash, err := h.Hash(strings.Repeat("x", 72))
	require.NoError(t, err)
	assert.ErrorIs(t, h.Check(hash, strings.Repeat("x", 73)), ErrInvalidCredentials)
}

func TestHasher_ZeroCostUsesDefault(t *testing.T) {
	hash, err := Hasher{}.Hash("pw")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}
