package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fastHasher(t *testing.T, algo string) *PasswordHasher {
	t.Helper()
	h, err := NewPasswordHasher(algo)
	require.NoError(t, err)
	h.Argon2 = Argon2Params{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}
	h.BcryptCost = bcrypt.MinCost
	return h
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	t.Parallel()
	for _, algo := range []string{AlgoArgon2, AlgoBcrypt} {
		algo := algo
		t.Run(algo, func(t *testing.T) {
			t.Parallel()
			h := fastHasher(t, algo)

			a, err := h.Hash("correct horse")
			require.NoError(t, err)
			b, err := h.Hash("correct horse")
			require.NoError(t, err)

			assert.NotEqual(t, a, b, "salted hashes must differ")
			assert.True(t, h.Verify("correct horse", a))
			assert.True(t, h.Verify("correct horse", b))
			assert.False(t, h.Verify("wrong horse", a))
		})
	}
}

func TestPasswordHasher_VerifiesAcrossAlgorithms(t *testing.T) {
	t.Parallel()
	argon := fastHasher(t, AlgoArgon2)
	bc := fastHasher(t, AlgoBcrypt)

	old, err := bc.Hash("pw12345678")
	require.NoError(t, err)
	assert.True(t, argon.Verify("pw12345678", old))

	newer, err := argon.Hash("pw12345678")
	require.NoError(t, err)
	assert.True(t, bc.Verify("pw12345678", newer))
}

func TestPasswordHasher_MalformedHash(t *testing.T) {
	t.Parallel()
	h := fastHasher(t, AlgoArgon2)
	for _, hashed := range []string{
		"",
		"plain",
		"$argon2id$",
		"$argon2id$v=19$m=abc$salt$key",
		"$argon2id$v=19$m=0,t=0,p=0$c2FsdA$a2V5",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5",
		"$2a$10$short",
	} {
		assert.NotPanics(t, func() {
			assert.False(t, h.Verify("pw", hashed), hashed)
		})
	}
}

func TestNewPasswordHasher_Unknown(t *testing.T) {
	t.Parallel()
	_, err := NewPasswordHasher("md5")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestNewID(t *testing.T) {
	t.Parallel()
	a, b := NewID(), NewID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
