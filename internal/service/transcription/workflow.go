package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dictat/internal/core/authz"
	"dictat/internal/domain"
	"dictat/pkg/utils"
)

type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

type ReviewInput struct {
	Action          ReviewAction
	Notes           string
	RejectionReason string
}

func (i ReviewInput) Validate() error {
	switch i.Action {
	case ReviewApprove:
		return nil
	case ReviewReject:
		if strings.TrimSpace(i.RejectionReason) == "" {
			return domain.NewValidationError("rejectionReason", "required when rejecting")
		}
		return nil
	}
	return domain.NewValidationError("action", "must be approve or reject")
}

// Create 只有当前持有该听写认领的秘书可以创建，每份听写最多一份转写。
// 听写处于 assigned 时创建即视为开始转写
func (s *Service) Create(ctx context.Context, actor domain.Actor, dictationID, content string) (*domain.Transcription, error) {
	if err := authz.RequireRole(actor, domain.RoleSecretary); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, authz.ActCreate, authz.Resource{Type: authz.ResTranscription, OwnerID: actor.ID}); err != nil {
		return nil, err
	}
	var (
		t       *domain.Transcription
		started bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		d, err := s.dictations.GetForUpdate(ctx, dictationID)
		if err != nil {
			return err
		}
		if !d.ClaimedBy(actor.ID) {
			return fmt.Errorf("dictation must be claimed by you first: %w", domain.ErrConflict)
		}
		switch _, err := s.repo.GetByDictation(ctx, dictationID); {
		case err == nil:
			return fmt.Errorf("transcription for dictation %s: %w", dictationID, domain.ErrAlreadyExists)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		if started, err = d.Claim(actor.ID, s.now()); err != nil {
			return err
		}
		if started {
			if err := s.dictations.Save(ctx, d); err != nil {
				return err
			}
		}
		t = domain.NewTranscription(utils.NewID(), dictationID, actor.ID, content)
		if err := s.repo.Create(ctx, t); err != nil {
			return err
		}
		return s.repo.AddRevision(ctx, t.Revision(utils.NewID(), actor.ID))
	})
	if err != nil {
		return nil, err
	}
	if started {
		transition(authz.ResDictation, "", string(domain.DictationInProgress))
	}
	transition(authz.ResTranscription, "", string(t.Status))
	s.record(ctx, actor, domain.AuditTranscriptionCreated, t, map[string]any{"dictationId": dictationID})
	return t, nil
}

// Update autosave 只更新内容与 last_autosave_at；手动保存递增版本并留存快照
func (s *Service) Update(ctx context.Context, actor domain.Actor, id, content string, autosave bool) (*domain.Transcription, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthor(ctx, actor, authz.ActUpdate, cur); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, authz.ActUpdate, resource(cur)); err != nil {
		return nil, err
	}
	var (
		t    *domain.Transcription
		from domain.TranscriptionStatus
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if t, err = s.repo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		from = t.Status
		if err := t.Edit(content, autosave, s.now()); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, t); err != nil {
			return err
		}
		if autosave {
			return nil
		}
		return s.repo.AddRevision(ctx, t.Revision(utils.NewID(), actor.ID))
	})
	if err != nil {
		return nil, err
	}
	transition(authz.ResTranscription, string(from), string(t.Status))
	if !autosave || from != t.Status {
		s.record(ctx, actor, domain.AuditTranscriptionUpdated, t, map[string]any{
			"version":  t.Version,
			"autosave": autosave,
			"status":   string(t.Status),
		})
	}
	return t, nil
}

// Submit 提交后听写联动为 completed
func (s *Service) Submit(ctx context.Context, actor domain.Actor, id string) (*domain.Transcription, error) {
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuthor(ctx, actor, authz.ActSubmit, cur); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, authz.ActSubmit, resource(cur)); err != nil {
		return nil, err
	}
	var t *domain.Transcription
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if t, err = s.repo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		now := s.now()
		if err := t.Submit(now); err != nil {
			return err
		}
		d, err := s.dictations.GetForUpdate(ctx, t.DictationID)
		if err != nil {
			return err
		}
		if err := d.MarkCompleted(now); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, t); err != nil {
			return err
		}
		return s.dictations.Save(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	transition(authz.ResTranscription, "", string(t.Status))
	transition(authz.ResDictation, "", string(domain.DictationCompleted))
	s.record(ctx, actor, domain.AuditTranscriptionSubmitted, t, map[string]any{"version": t.Version})
	return t, nil
}

// Review 只有听写的归属医生或管理员可以审核；结论联动听写为 reviewed / rejected
func (s *Service) Review(ctx context.Context, actor domain.Actor, id string, in ReviewInput) (*domain.Transcription, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	action := authz.ActApprove
	if in.Action == ReviewReject {
		action = authz.ActReject
	}
	cur, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, action, resource(cur)); err != nil {
		return nil, err
	}
	d, err := s.dictations.Get(ctx, cur.DictationID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(domain.RoleAdmin) && d.DoctorID != actor.ID {
		err := fmt.Errorf("only the dictating doctor can review: %w", domain.ErrForbidden)
		return nil, s.audit.Denied(ctx, actor, action, resource(cur), err)
	}

	approve := in.Action == ReviewApprove
	var t *domain.Transcription
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if t, err = s.repo.GetForUpdate(ctx, id); err != nil {
			return err
		}
		if err := t.Review(actor.ID, approve, in.Notes, in.RejectionReason, s.now()); err != nil {
			return err
		}
		d, err := s.dictations.GetForUpdate(ctx, t.DictationID)
		if err != nil {
			return err
		}
		if err := d.ApplyReview(approve); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, t); err != nil {
			return err
		}
		return s.dictations.Save(ctx, d)
	})
	if err != nil {
		return nil, err
	}

	auditAction, dictationStatus := domain.AuditTranscriptionApproved, domain.DictationReviewed
	meta := map[string]any{"version": t.Version}
	if !approve {
		auditAction, dictationStatus = domain.AuditTranscriptionRejected, domain.DictationRejected
		meta["reason"] = t.RejectionReason
	}
	transition(authz.ResTranscription, "", string(t.Status))
	transition(authz.ResDictation, "", string(dictationStatus))
	s.record(ctx, actor, auditAction, t, meta)
	s.log.Info("transcription reviewed",
		zap.String("transcription_id", t.ID),
		zap.String("reviewer_id", actor.ID),
		zap.String("status", string(t.Status)),
	)
	return t, nil
}
