package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dictat/internal/domain"
)

func newManager() *TokenManager {
	return &TokenManager{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "dictat",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	t.Parallel()
	m := newManager()

	tok, err := m.IssueAccess("u1", domain.RoleDoctor)
	require.NoError(t, err)

	c, err := m.Verify(tok, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UID)
	assert.Equal(t, domain.RoleDoctor, c.Role)
	assert.Equal(t, TypeAccess, c.Type)
	assert.NotEmpty(t, c.ID)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), c.ExpiresAt.Time, 5*time.Second)
	assert.Equal(t, domain.Actor{ID: "u1", Role: domain.RoleDoctor}, c.Actor())
}

func TestTokenManager_Pair(t *testing.T) {
	t.Parallel()
	m := newManager()
	p, err := m.IssuePair("u1", domain.RoleSecretary)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), p.ExpiresIn)

	_, err = m.Verify(p.RefreshToken, TypeRefresh)
	assert.NoError(t, err)
	_, err = m.Verify(p.RefreshToken, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token must not pass as access")
	_, err = m.Verify(p.AccessToken, TypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token must not pass as refresh")
}

func TestTokenManager_Rejects(t *testing.T) {
	t.Parallel()
	m := newManager()
	good, err := m.IssueAccess("u1", domain.RoleDoctor)
	require.NoError(t, err)

	expired := newManager()
	expired.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredTok, err := expired.IssueAccess("u1", domain.RoleDoctor)
	require.NoError(t, err)

	other := newManager()
	other.Secret = []byte("ffffffffffffffffffffffffffffffff")
	wrongSecret, err := other.IssueAccess("u1", domain.RoleDoctor)
	require.NoError(t, err)

	parts := strings.Split(good, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	forged := strings.Replace(string(payload), `"role":"doctor"`, `"role":"admin"`, 1)
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(forged)) + "." + parts[2]

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UID: "u1", Role: domain.RoleAdmin, Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID: "x", Issuer: "dictat", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(m.Secret)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UID: "u1", Role: domain.RoleAdmin, Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID: "x", Issuer: "dictat", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":      expiredTok,
		"wrong secret": wrongSecret,
		"tampered":     tampered,
		"hs512":        hs512,
		"alg none":     none,
		"malformed":    "not.a.jwt",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			c, err := m.Verify(tok, TypeAccess)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestClaims_Remaining(t *testing.T) {
	t.Parallel()
	now := time.Now()
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))}}
	assert.InDelta(t, time.Minute.Seconds(), c.Remaining(now).Seconds(), 1)
	assert.Zero(t, (&Claims{}).Remaining(now))
}
