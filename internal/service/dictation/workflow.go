package dictation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dictat/internal/core/authz"
	"dictat/internal/core/metrics"
	"dictat/internal/domain"
)

// mutate 在事务内锁行后执行状态迁移，fn 返回 changed=false 时不写库
func (s *Service) mutate(ctx context.Context, id string, fn func(d *domain.Dictation) (bool, error)) (d *domain.Dictation, changed bool, err error) {
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		d, err = s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if changed, err = fn(d); err != nil || !changed {
			return err
		}
		return s.repo.Save(ctx, d)
	})
	if err != nil {
		return nil, false, err
	}
	return d, changed, nil
}

// loadAuthorized 授权只依赖归属医生，归属不会变化，所以在事务外判定
func (s *Service) loadAuthorized(ctx context.Context, actor domain.Actor, id string, action authz.Action) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.authorize(ctx, actor, action, resource(d))
}

// Claim 同一秘书重复认领是幂等空操作，claimed_at 不刷新
func (s *Service) Claim(ctx context.Context, actor domain.Actor, id string) (*domain.Dictation, error) {
	if err := authz.RequireRole(actor, domain.RoleSecretary); err != nil {
		return nil, err
	}
	if err := s.loadAuthorized(ctx, actor, id, authz.ActClaim); err != nil {
		return nil, err
	}
	d, changed, err := s.mutate(ctx, id, func(d *domain.Dictation) (bool, error) {
		return d.Claim(actor.ID, s.now())
	})
	if err != nil {
		return nil, err
	}
	if changed {
		metrics.Transition(authz.ResDictation, string(d.Status))
		s.record(ctx, actor, domain.AuditDictationClaimed, d, nil)
	}
	return d, nil
}

// Unclaim 认领人本人或管理员可释放
func (s *Service) Unclaim(ctx context.Context, actor domain.Actor, id string) (*domain.Dictation, error) {
	if err := authz.RequireRole(actor, domain.RoleSecretary, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.loadAuthorized(ctx, actor, id, authz.ActUnclaim); err != nil {
		return nil, err
	}
	var previous string
	d, _, err := s.mutate(ctx, id, func(d *domain.Dictation) (bool, error) {
		if d.SecretaryID != nil {
			previous = *d.SecretaryID
			if actor.Role == domain.RoleSecretary && previous != actor.ID {
				return false, fmt.Errorf("dictation claimed by another secretary: %w", domain.ErrForbidden)
			}
		}
		return true, d.Unclaim()
	})
	if err != nil {
		return nil, err
	}
	metrics.Transition(authz.ResDictation, string(d.Status))
	s.record(ctx, actor, domain.AuditDictationUnclaimed, d, map[string]any{"secretaryId": previous})
	return d, nil
}

// Assign 管理员把听写指派给一名在职秘书
func (s *Service) Assign(ctx context.Context, actor domain.Actor, id, secretaryID string) (*domain.Dictation, error) {
	if err := authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	sec, err := s.users.FindByID(ctx, secretaryID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, domain.NewValidationError("secretaryId", "unknown user")
	case err != nil:
		return nil, err
	case sec.Role != domain.RoleSecretary || !sec.IsActive:
		return nil, domain.NewValidationError("secretaryId", "must be an active secretary")
	}
	if err := s.loadAuthorized(ctx, actor, id, authz.ActAssign); err != nil {
		return nil, err
	}
	d, _, err := s.mutate(ctx, id, func(d *domain.Dictation) (bool, error) {
		return true, d.Assign(secretaryID, s.now())
	})
	if err != nil {
		return nil, err
	}
	metrics.Transition(authz.ResDictation, string(d.Status))
	s.record(ctx, actor, domain.AuditDictationAssigned, d, map[string]any{"secretaryId": secretaryID})
	return d, nil
}

func validatePatch(p domain.DictationPatch) error {
	var errs []domain.FieldError
	if p.Priority != nil && !p.Priority.Valid() {
		errs = append(errs, domain.FieldError{Field: "priority", Message: "must be low, normal, high or urgent"})
	}
	if p.Status != nil && !p.Status.Valid() {
		errs = append(errs, domain.FieldError{Field: "status", Message: "unknown status"})
	}
	if p.Title != nil && len(*p.Title) > 255 {
		errs = append(errs, domain.FieldError{Field: "title", Message: "too long"})
	}
	if p.PatientReference != nil && len(*p.PatientReference) > 100 {
		errs = append(errs, domain.FieldError{Field: "patientReference", Message: "too long"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// Update 归属医生或管理员可改元数据；只有管理员能直接改状态
func (s *Service) Update(ctx context.Context, actor domain.Actor, id string, p domain.DictationPatch) (*domain.Dictation, error) {
	if p.Status != nil {
		if err := authz.RequireRole(actor, domain.RoleAdmin); err != nil {
			return nil, err
		}
	}
	if err := validatePatch(p); err != nil {
		return nil, err
	}
	if err := s.loadAuthorized(ctx, actor, id, authz.ActUpdate); err != nil {
		return nil, err
	}
	changes := map[string]any{}
	d, _, err := s.mutate(ctx, id, func(d *domain.Dictation) (bool, error) {
		if p.Title != nil && *p.Title != d.Title {
			d.Title, changes["title"] = *p.Title, *p.Title
		}
		if p.Priority != nil && *p.Priority != d.Priority {
			d.Priority, changes["priority"] = *p.Priority, string(*p.Priority)
		}
		if p.PatientReference != nil && *p.PatientReference != d.PatientReference {
			d.PatientReference, changes["patientReference"] = *p.PatientReference, *p.PatientReference
		}
		if p.Notes != nil && *p.Notes != d.Notes {
			d.Notes, changes["notes"] = *p.Notes, true
		}
		if p.Status != nil && *p.Status != d.Status {
			changes["status"] = map[string]string{"from": string(d.Status), "to": string(*p.Status)}
			if err := d.SetStatus(*p.Status, s.now()); err != nil {
				return false, err
			}
		}
		return len(changes) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return d, nil
	}
	if _, ok := changes["status"]; ok {
		metrics.Transition(authz.ResDictation, string(d.Status))
		s.log.Info("dictation status overridden", zap.String("dictation_id", d.ID), zap.String("status", string(d.Status)))
	}
	s.record(ctx, actor, domain.AuditDictationUpdated, d, changes)
	return d, nil
}

// Delete 软删；正在转写中的听写不能删
func (s *Service) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.loadAuthorized(ctx, actor, id, authz.ActDelete); err != nil {
		return err
	}
	var deleted *domain.Dictation
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		d, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := d.CheckDeletable(); err != nil {
			return err
		}
		deleted = d
		return s.repo.SoftDelete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, domain.AuditDictationDeleted, deleted, map[string]any{"status": string(deleted.Status)})
	return nil
}
