package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dictat/internal/domain"
)

// priorityRank 与 domain.Priority.Rank 保持一致
const priorityRank = "CASE priority WHEN 'urgent' THEN 3 WHEN 'high' THEN 2 WHEN 'normal' THEN 1 ELSE 0 END"

type DictationRepo struct{ base }

func NewDictationRepo(db *gorm.DB) *DictationRepo { return &DictationRepo{base{db}} }

func (r *DictationRepo) Create(ctx context.Context, d *domain.Dictation) error {
	return mapErr(r.conn(ctx).Omit(clause.Associations).Create(d).Error, "dictation")
}

func (r *DictationRepo) Get(ctx context.Context, id string) (*domain.Dictation, error) {
	var d domain.Dictation
	if err := r.conn(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, mapErr(err, "dictation")
	}
	return &d, nil
}

// GetForUpdate 在事务内加行锁，保证认领等状态流转的检查与写入原子
func (r *DictationRepo) GetForUpdate(ctx context.Context, id string) (*domain.Dictation, error) {
	q := r.conn(ctx)
	if inTx(ctx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var d domain.Dictation
	if err := q.First(&d, "id = ?", id).Error; err != nil {
		return nil, mapErr(err, "dictation")
	}
	return &d, nil
}

func (r *DictationRepo) Save(ctx context.Context, d *domain.Dictation) error {
	return mapErr(r.conn(ctx).Omit(clause.Associations).Save(d).Error, "dictation")
}

func (r *DictationRepo) SoftDelete(ctx context.Context, id string) error {
	res := r.conn(ctx).Where("id = ?", id).Delete(&domain.Dictation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return mapErr(gorm.ErrRecordNotFound, "dictation")
	}
	return nil
}

func (r *DictationRepo) List(ctx context.Context, f domain.DictationFilter) ([]domain.Dictation, int64, error) {
	q := r.conn(ctx).Model(&domain.Dictation{})
	if f.DoctorID != "" {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.VisibleToSecretary != "" {
		q = q.Where("(status IN ? AND secretary_id IS NULL) OR secretary_id = ?",
			[]domain.DictationStatus{domain.DictationPending, domain.DictationAssigned}, f.VisibleToSecretary)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Dictation
	err := q.Order(priorityRank + " DESC").
		Order("created_at DESC").
		Offset(f.Offset).Limit(pageLimit(f.Limit)).
		Find(&out).Error
	return out, total, err
}

// Queue 可认领的工作：未被认领的 pending/assigned，同优先级内先进先出
func (r *DictationRepo) Queue(ctx context.Context, offset, limit int) ([]domain.Dictation, int64, error) {
	q := r.conn(ctx).Model(&domain.Dictation{}).
		Where("status IN ?", []domain.DictationStatus{domain.DictationPending, domain.DictationAssigned}).
		Where("secretary_id IS NULL").
		Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.Dictation
	err := q.Order(priorityRank + " DESC").
		Order("created_at ASC").
		Offset(offset).Limit(pageLimit(limit)).
		Find(&out).Error
	return out, total, err
}
