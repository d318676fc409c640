package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dictat/internal/domain"
	"dictat/pkg/utils"
)

type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// ErrInvalidToken 覆盖格式错误、过期、篡改、算法不符、类型不符等所有情况
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UID  string      `json:"uid"`
	Role domain.Role `json:"role"`
	Type TokenType   `json:"type"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() domain.Actor { return domain.Actor{ID: c.UID, Role: c.Role} }

// Remaining 距离过期还剩多久，用于吊销标记的 TTL
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

type TokenManager struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
	Now        func() time.Time
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func (m *TokenManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *TokenManager) issue(uid string, role domain.Role, typ TokenType, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		UID:  uid,
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        utils.NewID(),
			Subject:   uid,
			Issuer:    m.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
}

func (m *TokenManager) IssueAccess(uid string, role domain.Role) (string, error) {
	return m.issue(uid, role, TypeAccess, m.AccessTTL)
}

func (m *TokenManager) IssueRefresh(uid string, role domain.Role) (string, error) {
	return m.issue(uid, role, TypeRefresh, m.RefreshTTL)
}

func (m *TokenManager) IssuePair(uid string, role domain.Role) (*TokenPair, error) {
	access, err := m.IssueAccess(uid, role)
	if err != nil {
		return nil, err
	}
	refresh, err := m.IssueRefresh(uid, role)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(m.AccessTTL / time.Second),
	}, nil
}

// Verify 只接受 HS256 且 type 与 want 一致的令牌
func (m *TokenManager) Verify(tokenStr string, want TokenType) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return m.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.Leeway),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.Type != want || c.UID == "" || c.ID == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}
