package dictation

import (
	"context"

	"dictat/internal/core/authz"
	"dictat/internal/domain"
)

// List 按角色收窄：医生只看自己的，秘书看可认领的和自己认领的，管理员看全部
func (s *Service) List(ctx context.Context, actor domain.Actor, f domain.DictationFilter) ([]domain.Dictation, int64, error) {
	f.DoctorID, f.VisibleToSecretary = "", ""
	switch actor.Role {
	case domain.RoleDoctor:
		f.DoctorID = actor.ID
	case domain.RoleSecretary:
		f.VisibleToSecretary = actor.ID
	case domain.RoleAdmin:
	default:
		return nil, 0, authz.RequireRole(actor, domain.RoleDoctor, domain.RoleSecretary, domain.RoleAdmin)
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, domain.NewValidationError("status", "unknown status")
	}
	if f.Priority != "" && !f.Priority.Valid() {
		return nil, 0, domain.NewValidationError("priority", "unknown priority")
	}
	return s.repo.List(ctx, f)
}

// Queue 待认领队列：高优先级在前，同级先进先出
func (s *Service) Queue(ctx context.Context, actor domain.Actor, offset, limit int) ([]domain.Dictation, int64, error) {
	if err := authz.RequireRole(actor, domain.RoleSecretary, domain.RoleAdmin); err != nil {
		return nil, 0, err
	}
	return s.repo.Queue(ctx, offset, limit)
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Dictation, error) {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, authz.ActRead, resource(d)); err != nil {
		return nil, err
	}
	return d, nil
}
