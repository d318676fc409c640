package account

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dictat/internal/core/authz"
	"dictat/internal/domain"
	"dictat/internal/service/audit"
)

func (s *Service) ListUsers(ctx context.Context, actor domain.Actor, f domain.UserFilter) ([]domain.User, int64, error) {
	if err := authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, 0, err
	}
	return s.users.List(ctx, f)
}

func (s *Service) GetUser(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if err := authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.users.FindByID(ctx, id)
}

// CreateUser 管理员建号，可创建任意角色（包括管理员）
func (s *Service) CreateUser(ctx context.Context, actor domain.Actor, in CreateUserInput) (*domain.User, error) {
	if err := authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	u, err := s.createUser(ctx, in.Email, in.Password, in.FullName, in.Role, in.IsVerified)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		UserID:       actor.ID,
		Action:       domain.AuditUserCreated,
		ResourceType: authz.ResUser,
		ResourceID:   u.ID,
		Metadata:     map[string]any{"role": string(u.Role)},
	})
	return u, nil
}

// Bootstrap 供运维命令创建首个账号，不走权限检查
func (s *Service) Bootstrap(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := in.Validate(); err != nil {
		return nil, err
	}
	u, err := s.createUser(ctx, in.Email, in.Password, in.FullName, in.Role, true)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		Action:       domain.AuditUserCreated,
		ResourceType: authz.ResUser,
		ResourceID:   u.ID,
		Description:  "created from admin cli",
		Metadata:     map[string]any{"role": string(u.Role)},
	})
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, actor domain.Actor, id string, in UpdateUserInput) (*domain.User, error) {
	if err := authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	changed := map[string]any{}
	if in.Role != nil && *in.Role != u.Role {
		changed["role"] = string(*in.Role)
		u.Role = *in.Role
	}
	if in.FullName != nil && *in.FullName != u.FullName {
		changed["fullName"] = *in.FullName
		u.FullName = *in.FullName
	}
	if in.IsVerified != nil && *in.IsVerified != u.IsVerified {
		changed["isVerified"] = *in.IsVerified
		u.IsVerified = *in.IsVerified
	}
	if len(changed) == 0 {
		return u, nil
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		UserID:       actor.ID,
		Action:       domain.AuditUserUpdated,
		ResourceType: authz.ResUser,
		ResourceID:   u.ID,
		Metadata:     changed,
	})
	return u, nil
}

func (s *Service) Activate(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	return s.setActive(ctx, actor, id, true)
}

// Deactivate 管理员不能停用自己
func (s *Service) Deactivate(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if actor.Is(domain.RoleAdmin) && actor.ID == id {
		return nil, fmt.Errorf("cannot deactivate yourself: %w", domain.ErrConflict)
	}
	return s.setActive(ctx, actor, id, false)
}

func (s *Service) setActive(ctx context.Context, actor domain.Actor, id string, active bool) (*domain.User, error) {
	if err := authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsActive == active {
		return u, nil
	}
	u.IsActive = active
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	action := domain.AuditUserDeactivated
	if active {
		action = domain.AuditUserActivated
	}
	s.audit.Record(ctx, audit.Event{
		UserID:       actor.ID,
		Action:       action,
		ResourceType: authz.ResUser,
		ResourceID:   u.ID,
	})
	s.log.Info("user active flag changed", zap.String("user_id", u.ID), zap.Bool("active", active))
	return u, nil
}
