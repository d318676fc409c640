package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dictat/internal/domain"
)

type TranscriptionRepo struct{ base }

func NewTranscriptionRepo(db *gorm.DB) *TranscriptionRepo { return &TranscriptionRepo{base{db}} }

// Create 依赖 dictation_id 唯一索引兜底一对一约束
func (r *TranscriptionRepo) Create(ctx context.Context, t *domain.Transcription) error {
	return mapErr(r.conn(ctx).Omit(clause.Associations).Create(t).Error, "transcription")
}

func (r *TranscriptionRepo) Get(ctx context.Context, id string) (*domain.Transcription, error) {
	var t domain.Transcription
	if err := r.conn(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, mapErr(err, "transcription")
	}
	return &t, nil
}

func (r *TranscriptionRepo) GetForUpdate(ctx context.Context, id string) (*domain.Transcription, error) {
	q := r.conn(ctx)
	if inTx(ctx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t domain.Transcription
	if err := q.First(&t, "id = ?", id).Error; err != nil {
		return nil, mapErr(err, "transcription")
	}
	return &t, nil
}

func (r *TranscriptionRepo) GetByDictation(ctx context.Context, dictationID string) (*domain.Transcription, error) {
	var t domain.Transcription
	if err := r.conn(ctx).First(&t, "dictation_id = ?", dictationID).Error; err != nil {
		return nil, mapErr(err, "transcription")
	}
	return &t, nil
}

func (r *TranscriptionRepo) Save(ctx context.Context, t *domain.Transcription) error {
	return mapErr(r.conn(ctx).Omit(clause.Associations).Save(t).Error, "transcription")
}

func (r *TranscriptionRepo) AddRevision(ctx context.Context, rev *domain.TranscriptionRevision) error {
	return mapErr(r.conn(ctx).Create(rev).Error, "transcription revision")
}

func (r *TranscriptionRepo) Revisions(ctx context.Context, transcriptionID string) ([]domain.TranscriptionRevision, error) {
	var out []domain.TranscriptionRevision
	err := r.conn(ctx).Where("transcription_id = ?", transcriptionID).Order("version ASC").Find(&out).Error
	return out, err
}
