package repo

import (
	"context"

	"gorm.io/gorm"

	"dictat/internal/domain"
)

type AuditRepo struct{ base }

func NewAuditRepo(db *gorm.DB) *AuditRepo { return &AuditRepo{base{db}} }

func (r *AuditRepo) Append(ctx context.Context, e *domain.AuditLog) error {
	return r.conn(ctx).Create(e).Error
}

func (r *AuditRepo) scoped(ctx context.Context, f domain.AuditFilter) *gorm.DB {
	q := r.conn(ctx).Model(&domain.AuditLog{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.ResourceType != "" {
		q = q.Where("resource_type = ?", f.ResourceType)
	}
	if f.ResourceID != "" {
		q = q.Where("resource_id = ?", f.ResourceID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	return q.Session(&gorm.Session{})
}

func (r *AuditRepo) Query(ctx context.Context, f domain.AuditFilter) ([]domain.AuditLog, int64, error) {
	q := r.scoped(ctx, f)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.AuditLog
	err := q.Order("created_at DESC").Offset(f.Offset).Limit(pageLimit(f.Limit)).Find(&out).Error
	return out, total, err
}

func (r *AuditRepo) CountByAction(ctx context.Context, f domain.AuditFilter) ([]domain.AuditCount, error) {
	var out []domain.AuditCount
	err := r.scoped(ctx, f).
		Select("action, COUNT(*) AS count").
		Group("action").
		Order("count DESC").
		Scan(&out).Error
	return out, err
}
