// Package transcription 负责转写稿的生命周期，并在提交与审核时联动听写状态。
package transcription

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dictat/internal/core/authz"
	"dictat/internal/core/metrics"
	"dictat/internal/domain"
	"dictat/internal/service/audit"
)

type repository interface {
	Create(ctx context.Context, t *domain.Transcription) error
	Get(ctx context.Context, id string) (*domain.Transcription, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Transcription, error)
	GetByDictation(ctx context.Context, dictationID string) (*domain.Transcription, error)
	Save(ctx context.Context, t *domain.Transcription) error
	AddRevision(ctx context.Context, rev *domain.TranscriptionRevision) error
	Revisions(ctx context.Context, transcriptionID string) ([]domain.TranscriptionRevision, error)
}

type dictationRepo interface {
	Get(ctx context.Context, id string) (*domain.Dictation, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Dictation, error)
	Save(ctx context.Context, d *domain.Dictation) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type authorizer interface {
	Require(ctx context.Context, req authz.Request) error
}

type Deps struct {
	Repo       repository
	Dictations dictationRepo
	Tx         txManager
	Authz      authorizer
	Audit      *audit.Service
	Log        *zap.Logger
}

type Service struct {
	repo       repository
	dictations dictationRepo
	tx         txManager
	authz      authorizer
	audit      *audit.Service
	log        *zap.Logger
	now        func() time.Time
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:       d.Repo,
		dictations: d.Dictations,
		tx:         d.Tx,
		authz:      d.Authz,
		audit:      d.Audit,
		log:        log.With(zap.String("service", "transcription")),
		now:        time.Now,
	}
}

func resource(t *domain.Transcription) authz.Resource {
	return authz.Resource{Type: authz.ResTranscription, ID: t.ID, OwnerID: t.SecretaryID}
}

func (s *Service) authorize(ctx context.Context, actor domain.Actor, action authz.Action, res authz.Resource) error {
	if err := s.authz.Require(ctx, authz.Request{Actor: actor, Action: action, Resource: res}); err != nil {
		return s.audit.Denied(ctx, actor, action, res, err)
	}
	return nil
}

// requireAuthor 编辑与提交只允许撰写人本人
func (s *Service) requireAuthor(ctx context.Context, actor domain.Actor, action authz.Action, t *domain.Transcription) error {
	if t.SecretaryID == actor.ID {
		return nil
	}
	err := fmt.Errorf("only the author can %s this transcription: %w", action, domain.ErrForbidden)
	return s.audit.Denied(ctx, actor, action, resource(t), err)
}

func (s *Service) record(ctx context.Context, actor domain.Actor, action domain.AuditAction, t *domain.Transcription, meta map[string]any) {
	s.audit.Record(ctx, audit.Event{
		UserID:       actor.ID,
		Action:       action,
		ResourceType: authz.ResTranscription,
		ResourceID:   t.ID,
		Metadata:     meta,
	})
}

func transition(entity, from, to string) {
	if from != to {
		metrics.Transition(entity, to)
	}
}
