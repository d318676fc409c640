package domain

import (
	"fmt"
	"strings"
	"time"
)

type TranscriptionStatus string

const (
	TranscriptionDraft     TranscriptionStatus = "draft"
	TranscriptionSubmitted TranscriptionStatus = "submitted"
	TranscriptionApproved  TranscriptionStatus = "approved"
	TranscriptionRejected  TranscriptionStatus = "rejected"
	TranscriptionRevised   TranscriptionStatus = "revised"
)

type Transcription struct {
	ID              string              `gorm:"primaryKey;size:36" json:"id"`
	DictationID     string              `gorm:"size:36;not null;uniqueIndex" json:"dictationId"`
	SecretaryID     string              `gorm:"size:36;not null;index" json:"secretaryId"`
	ReviewerID      *string             `gorm:"size:36;index" json:"reviewerId"`
	Content         string              `gorm:"type:text" json:"content"`
	Version         int                 `gorm:"not null;default:1" json:"version"`
	Status          TranscriptionStatus `gorm:"size:16;not null;index;default:draft" json:"status"`
	ReviewNotes     string              `gorm:"type:text" json:"reviewNotes"`
	RejectionReason string              `gorm:"type:text" json:"rejectionReason"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	LastAutosaveAt  *time.Time          `json:"lastAutosaveAt"`
	SubmittedAt     *time.Time          `json:"submittedAt"`
	ReviewedAt      *time.Time          `json:"reviewedAt"`

	Dictation *Dictation `gorm:"foreignKey:DictationID;constraint:OnDelete:RESTRICT" json:"-"`
	Secretary *User      `gorm:"foreignKey:SecretaryID;constraint:OnDelete:RESTRICT" json:"-"`
	Reviewer  *User      `gorm:"foreignKey:ReviewerID;constraint:OnDelete:SET NULL" json:"-"`
}

// TranscriptionRevision 每次非自动保存的编辑留一份快照
type TranscriptionRevision struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	TranscriptionID string    `gorm:"size:36;not null;uniqueIndex:idx_revision_version" json:"transcriptionId"`
	Version         int       `gorm:"not null;uniqueIndex:idx_revision_version" json:"version"`
	Content         string    `gorm:"type:text" json:"content"`
	AuthorID        string    `gorm:"size:36;not null" json:"authorId"`
	CreatedAt       time.Time `json:"createdAt"`
}

func NewTranscription(id, dictationID, secretaryID, content string) *Transcription {
	return &Transcription{
		ID:          id,
		DictationID: dictationID,
		SecretaryID: secretaryID,
		Content:     content,
		Version:     1,
		Status:      TranscriptionDraft,
	}
}

// Edit 处于 rejected 时任何编辑（含自动保存）都会转为 revised。
// 非自动保存的编辑递增版本号。
func (t *Transcription) Edit(content string, autosave bool, now time.Time) error {
	switch t.Status {
	case TranscriptionDraft, TranscriptionRevised:
	case TranscriptionRejected:
		t.Status = TranscriptionRevised
	default:
		return fmt.Errorf("transcription is %s: %w", t.Status, ErrConflict)
	}
	t.Content = content
	if autosave {
		t.LastAutosaveAt = &now
		return nil
	}
	t.Version++
	return nil
}

func (t *Transcription) Submit(now time.Time) error {
	if t.Status != TranscriptionDraft && t.Status != TranscriptionRevised {
		return fmt.Errorf("transcription is %s: %w", t.Status, ErrConflict)
	}
	if strings.TrimSpace(t.Content) == "" {
		return NewValidationError("content", "must not be empty")
	}
	t.Status = TranscriptionSubmitted
	t.SubmittedAt = &now
	return nil
}

func (t *Transcription) Review(reviewerID string, approve bool, notes, rejectionReason string, now time.Time) error {
	if t.Status != TranscriptionSubmitted {
		return fmt.Errorf("transcription is %s: %w", t.Status, ErrConflict)
	}
	if !approve && strings.TrimSpace(rejectionReason) == "" {
		return NewValidationError("rejectionReason", "required when rejecting")
	}
	t.ReviewerID = &reviewerID
	t.ReviewedAt = &now
	t.ReviewNotes = notes
	if approve {
		t.Status = TranscriptionApproved
		t.RejectionReason = ""
	} else {
		t.Status = TranscriptionRejected
		t.RejectionReason = rejectionReason
	}
	return nil
}

func (t *Transcription) Revision(id, authorID string) *TranscriptionRevision {
	return &TranscriptionRevision{
		ID:              id,
		TranscriptionID: t.ID,
		Version:         t.Version,
		Content:         t.Content,
		AuthorID:        authorID,
	}
}
