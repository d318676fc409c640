// Package dictation 负责听写记录的生命周期：上传、认领、释放、指派、修改与软删。
package dictation

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"dictat/internal/core/authz"
	"dictat/internal/domain"
	"dictat/internal/service/audit"
	"dictat/internal/storage"
)

type repository interface {
	Create(ctx context.Context, d *domain.Dictation) error
	Get(ctx context.Context, id string) (*domain.Dictation, error)
	GetForUpdate(ctx context.Context, id string) (*domain.Dictation, error)
	Save(ctx context.Context, d *domain.Dictation) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, f domain.DictationFilter) ([]domain.Dictation, int64, error)
	Queue(ctx context.Context, offset, limit int) ([]domain.Dictation, int64, error)
}

type userRepo interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type authorizer interface {
	Require(ctx context.Context, req authz.Request) error
}

type audioStore interface {
	Save(ctx context.Context, r io.Reader, filename, ownerID string) (*storage.FileMeta, error)
	Info(path string) (*storage.FileInfo, error)
	Stream(path string, start, end int64) (io.ReadCloser, error)
	Delete(path string) error
}

type Deps struct {
	Repo    repository
	Users   userRepo
	Tx      txManager
	Authz   authorizer
	Storage audioStore
	Audit   *audit.Service
	Log     *zap.Logger
}

type Service struct {
	repo    repository
	users   userRepo
	tx      txManager
	authz   authorizer
	storage audioStore
	audit   *audit.Service
	log     *zap.Logger
	now     func() time.Time
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    d.Repo,
		users:   d.Users,
		tx:      d.Tx,
		authz:   d.Authz,
		storage: d.Storage,
		audit:   d.Audit,
		log:     log.With(zap.String("service", "dictation")),
		now:     time.Now,
	}
}

func resource(d *domain.Dictation) authz.Resource {
	return authz.Resource{Type: authz.ResDictation, ID: d.ID, OwnerID: d.DoctorID}
}

// authorize 拒绝时顺带写一条 access_denied 审计
func (s *Service) authorize(ctx context.Context, actor domain.Actor, action authz.Action, res authz.Resource) error {
	err := s.authz.Require(ctx, authz.Request{Actor: actor, Action: action, Resource: res})
	if err != nil {
		return s.audit.Denied(ctx, actor, action, res, err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor domain.Actor, action domain.AuditAction, d *domain.Dictation, meta map[string]any) {
	s.audit.Record(ctx, audit.Event{
		UserID:       actor.ID,
		Action:       action,
		ResourceType: authz.ResDictation,
		ResourceID:   d.ID,
		Metadata:     meta,
	})
}
