package account

import (
	"context"
	"fmt"

	"dictat/internal/core/authz"
	"dictat/internal/domain"
	"dictat/internal/service/audit"
)

func (s *Service) Me(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	return s.users.FindByID(ctx, actor.ID)
}

// ChangePassword 旧密码错误按字段校验错误返回，避免客户端误判为登录失效
func (s *Service) ChangePassword(ctx context.Context, actor domain.Actor, in ChangePasswordInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	u, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(in.OldPassword, u.PasswordHash) {
		return domain.NewValidationError("oldPassword", "incorrect")
	}
	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("account.ChangePassword hash: %w", err)
	}
	u.PasswordHash = hash
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Event{
		UserID:       u.ID,
		Action:       domain.AuditPasswordChanged,
		ResourceType: authz.ResUser,
		ResourceID:   u.ID,
	})
	return nil
}
