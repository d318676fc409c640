package account

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dictat/internal/core/auth"
	"dictat/internal/domain"
	"dictat/internal/service/audit"
	"dictat/pkg/utils"
)

type userRepo interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, f domain.UserFilter) ([]domain.User, int64, error)
	Update(ctx context.Context, u *domain.User) error
}

// revocationStore 令牌吊销标记；*cache.Cache 满足该接口
type revocationStore interface {
	SetFlag(ctx context.Context, key string, ttl time.Duration) error
	HasFlag(ctx context.Context, key string) (bool, error)
}

type auditor interface {
	Record(ctx context.Context, e audit.Event)
}

type Deps struct {
	Users             userRepo
	Hasher            *utils.PasswordHasher
	Tokens            *auth.TokenManager
	Revocations       revocationStore // 为 nil 时不支持吊销，登出为空操作
	Audit             auditor
	Log               *zap.Logger
	AllowRegistration bool
}

type Service struct {
	users             userRepo
	hasher            *utils.PasswordHasher
	tokens            *auth.TokenManager
	revocations       revocationStore
	audit             auditor
	log               *zap.Logger
	allowRegistration bool
	now               func() time.Time
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:             d.Users,
		hasher:            d.Hasher,
		tokens:            d.Tokens,
		revocations:       d.Revocations,
		audit:             d.Audit,
		log:               log.With(zap.String("service", "account")),
		allowRegistration: d.AllowRegistration,
		now:               time.Now,
	}
}

func revokedKey(jti string) string { return "revoked:" + jti }

// IsRevoked 供鉴权中间件查询；未配置吊销存储时恒为 false
func (s *Service) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.revocations == nil {
		return false, nil
	}
	return s.revocations.HasFlag(ctx, revokedKey(jti))
}

func (s *Service) revoke(ctx context.Context, c *auth.Claims) error {
	if s.revocations == nil || c == nil {
		return nil
	}
	return s.revocations.SetFlag(ctx, revokedKey(c.ID), c.Remaining(s.now()))
}
