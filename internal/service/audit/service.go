package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"dictat/internal/core/authz"
	"dictat/internal/domain"
	"dictat/pkg/utils"
)

type repository interface {
	Append(ctx context.Context, e *domain.AuditLog) error
	Query(ctx context.Context, f domain.AuditFilter) ([]domain.AuditLog, int64, error)
	CountByAction(ctx context.Context, f domain.AuditFilter) ([]domain.AuditCount, error)
}

type Event struct {
	UserID       string
	Action       domain.AuditAction
	ResourceType string
	ResourceID   string
	Description  string
	Metadata     map[string]any
}

type RequestInfo struct {
	IP        string
	UserAgent string
	RequestID string
}

type requestKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestKey{}, info)
}

// RequestInfoFrom 取出 WithRequestInfo 放入的请求信息，没有时为零值
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestKey{}).(RequestInfo)
	return info
}

type Service struct {
	repo repository
	log  *zap.Logger
}

func NewService(repo repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Record 尽力写入：失败只记日志，不影响业务结果
func (s *Service) Record(ctx context.Context, e Event) {
	info := RequestInfoFrom(ctx)
	row := &domain.AuditLog{
		ID:           utils.NewID(),
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		IPAddress:    info.IP,
		UserAgent:    truncate(info.UserAgent, 500),
		RequestID:    info.RequestID,
		Description:  e.Description,
	}
	if e.UserID != "" {
		uid := e.UserID
		row.UserID = &uid
	}
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			row.Metadata = datatypes.JSON(b)
		}
	}
	// 请求被取消也要落审计
	if err := s.repo.Append(context.WithoutCancel(ctx), row); err != nil {
		s.log.Error("audit append failed",
			zap.Error(err),
			zap.String("action", string(e.Action)),
			zap.String("resource_type", e.ResourceType),
			zap.String("resource_id", e.ResourceID),
			zap.String("request_id", info.RequestID),
		)
	}
}

// Denied 记录一次被拒绝的访问，原样返回 err 便于调用方直接 return
func (s *Service) Denied(ctx context.Context, actor domain.Actor, action authz.Action, res authz.Resource, err error) error {
	s.Record(ctx, Event{
		UserID:       actor.ID,
		Action:       domain.AuditAccessDenied,
		ResourceType: res.Type,
		ResourceID:   res.ID,
		Metadata:     map[string]any{"attempted": string(action), "role": string(actor.Role)},
	})
	return err
}

func (s *Service) Query(ctx context.Context, actor domain.Actor, f domain.AuditFilter) ([]domain.AuditLog, int64, error) {
	if err := authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, 0, err
	}
	return s.repo.Query(ctx, f)
}

func (s *Service) Stats(ctx context.Context, actor domain.Actor, from, to *time.Time) ([]domain.AuditCount, error) {
	if err := authz.RequireRole(actor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.CountByAction(ctx, domain.AuditFilter{From: from, To: to})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
