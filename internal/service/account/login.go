package account

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dictat/internal/core/auth"
	"dictat/internal/core/authz"
	"dictat/internal/domain"
	"dictat/internal/service/audit"
)

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

type AuthResult struct {
	*auth.TokenPair
	User *domain.User `json:"user"`
}

// Login 未知邮箱、密码错误、停用账号一律返回同一个 Unauthorized
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.loginFailed(ctx, "", email, "unknown email")
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("account.Login find user: %w", err)
	}
	if !s.hasher.Verify(in.Password, u.PasswordHash) {
		s.loginFailed(ctx, u.ID, email, "bad password")
		return nil, errInvalidCredentials
	}
	if !u.IsActive {
		s.loginFailed(ctx, u.ID, email, "inactive")
		return nil, errInvalidCredentials
	}

	now := s.now()
	u.LastLoginAt = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("account.Login update user: %w", err)
	}
	pair, err := s.tokens.IssuePair(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("account.Login issue tokens: %w", err)
	}
	s.audit.Record(ctx, audit.Event{
		UserID:       u.ID,
		Action:       domain.AuditLogin,
		ResourceType: authz.ResUser,
		ResourceID:   u.ID,
	})
	return &AuthResult{TokenPair: pair, User: u}, nil
}

func (s *Service) loginFailed(ctx context.Context, userID, email, reason string) {
	s.log.Info("login failed", zap.String("email", email), zap.String("reason", reason))
	s.audit.Record(ctx, audit.Event{
		UserID:       userID,
		Action:       domain.AuditLoginFailed,
		ResourceType: authz.ResUser,
		ResourceID:   userID,
		Metadata:     map[string]any{"email": email, "reason": reason},
	})
}

// Refresh 轮换：旧 refresh token 吊销后签发新的一对
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.Verify(refreshToken, auth.TypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", domain.ErrUnauthorized)
	}
	revoked, err := s.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("account.Refresh check revocation: %w", err)
	}
	if revoked {
		s.log.Warn("revoked refresh token reused", zap.String("user_id", claims.UID))
		return nil, fmt.Errorf("refresh token revoked: %w", domain.ErrUnauthorized)
	}
	u, err := s.users.FindByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("account.Refresh find user: %w", err)
	}
	if !u.IsActive {
		return nil, fmt.Errorf("refresh: %w", domain.ErrUnauthorized)
	}
	if err := s.revoke(ctx, claims); err != nil {
		return nil, fmt.Errorf("account.Refresh revoke: %w", err)
	}
	// 角色以库里为准，管理员改过角色后刷新即生效
	pair, err := s.tokens.IssuePair(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("account.Refresh issue tokens: %w", err)
	}
	return &AuthResult{TokenPair: pair, User: u}, nil
}

// Logout 吊销当前 access token，以及（若提供且属于同一用户）refresh token
func (s *Service) Logout(ctx context.Context, access *auth.Claims, refreshToken string) error {
	if err := s.revoke(ctx, access); err != nil {
		return fmt.Errorf("account.Logout revoke access: %w", err)
	}
	if refreshToken != "" {
		if rc, err := s.tokens.Verify(refreshToken, auth.TypeRefresh); err == nil && rc.UID == access.UID {
			if err := s.revoke(ctx, rc); err != nil {
				return fmt.Errorf("account.Logout revoke refresh: %w", err)
			}
		}
	}
	s.audit.Record(ctx, audit.Event{
		UserID:       access.UID,
		Action:       domain.AuditLogout,
		ResourceType: authz.ResUser,
		ResourceID:   access.UID,
	})
	return nil
}
