package transcription

import (
	"context"
	"fmt"

	"dictat/internal/core/authz"
	"dictat/internal/domain"
)

// canRead 医生只能看自己听写下的转写
func (s *Service) canRead(ctx context.Context, actor domain.Actor, t *domain.Transcription) error {
	if err := s.authorize(ctx, actor, authz.ActRead, resource(t)); err != nil {
		return err
	}
	if actor.Role != domain.RoleDoctor {
		return nil
	}
	d, err := s.dictations.Get(ctx, t.DictationID)
	if err != nil {
		return err
	}
	if d.DoctorID != actor.ID {
		err := fmt.Errorf("transcription of another doctor's dictation: %w", domain.ErrForbidden)
		return s.audit.Denied(ctx, actor, authz.ActRead, resource(t), err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Transcription, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canRead(ctx, actor, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) GetByDictation(ctx context.Context, actor domain.Actor, dictationID string) (*domain.Transcription, error) {
	t, err := s.repo.GetByDictation(ctx, dictationID)
	if err != nil {
		return nil, err
	}
	if err := s.canRead(ctx, actor, t); err != nil {
		return nil, err
	}
	return t, nil
}

// History 按版本升序返回全部手动保存快照
func (s *Service) History(ctx context.Context, actor domain.Actor, id string) ([]domain.TranscriptionRevision, error) {
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.repo.Revisions(ctx, t.ID)
}
