package domain

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type DictationStatus string

const (
	DictationPending    DictationStatus = "pending"
	DictationAssigned   DictationStatus = "assigned"
	DictationInProgress DictationStatus = "in_progress"
	DictationCompleted  DictationStatus = "completed"
	DictationReviewed   DictationStatus = "reviewed"
	DictationRejected   DictationStatus = "rejected"
)

func (s DictationStatus) Valid() bool {
	switch s {
	case DictationPending, DictationAssigned, DictationInProgress,
		DictationCompleted, DictationReviewed, DictationRejected:
		return true
	}
	return false
}

// holdsSecretary 只有这两个状态允许 secretary_id 非空
func (s DictationStatus) holdsSecretary() bool {
	return s == DictationAssigned || s == DictationInProgress
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank 越大越优先
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	}
	return -1
}

func (p Priority) Valid() bool { return p.Rank() >= 0 }

type Dictation struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	DoctorID         string          `gorm:"size:36;not null;index" json:"doctorId"`
	SecretaryID      *string         `gorm:"size:36;index" json:"secretaryId"`
	FilePath         string          `gorm:"size:500;not null" json:"-"`
	FileName         string          `gorm:"size:255;not null" json:"fileName"`
	FileSize         int64           `gorm:"not null" json:"fileSize"`
	MimeType         string          `gorm:"size:100;not null" json:"mimeType"`
	FileHash         string          `gorm:"size:64;not null" json:"fileHash"`
	Duration         *float64        `json:"duration,omitempty"`
	Status           DictationStatus `gorm:"size:16;not null;index;default:pending" json:"status"`
	Priority         Priority        `gorm:"size:16;not null;index;default:normal" json:"priority"`
	Title            string          `gorm:"size:255" json:"title"`
	PatientReference string          `gorm:"size:100" json:"patientReference"`
	Notes            string          `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time       `gorm:"index" json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	ClaimedAt        *time.Time      `json:"claimedAt"`
	CompletedAt      *time.Time      `json:"completedAt"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`

	Doctor    *User `gorm:"foreignKey:DoctorID;constraint:OnDelete:RESTRICT" json:"-"`
	Secretary *User `gorm:"foreignKey:SecretaryID;constraint:OnDelete:SET NULL" json:"-"`
}

func (d *Dictation) ClaimedBy(secretaryID string) bool {
	return d.SecretaryID != nil && *d.SecretaryID == secretaryID
}

// Claim 返回 changed=false 表示同一秘书的幂等重复认领，claimed_at 保持不变
func (d *Dictation) Claim(secretaryID string, now time.Time) (changed bool, err error) {
	if d.Status == DictationInProgress && d.ClaimedBy(secretaryID) {
		return false, nil
	}
	if d.Status != DictationPending && d.Status != DictationAssigned {
		return false, fmt.Errorf("dictation is %s: %w", d.Status, ErrConflict)
	}
	if d.SecretaryID != nil && *d.SecretaryID != secretaryID {
		return false, fmt.Errorf("dictation already claimed: %w", ErrConflict)
	}
	d.SecretaryID = &secretaryID
	d.Status = DictationInProgress
	d.ClaimedAt = &now
	return true, nil
}

func (d *Dictation) Unclaim() error {
	if d.SecretaryID == nil {
		return fmt.Errorf("dictation is not claimed: %w", ErrConflict)
	}
	d.clearClaim()
	d.Status = DictationPending
	return nil
}

func (d *Dictation) Assign(secretaryID string, now time.Time) error {
	if d.Status != DictationPending && d.Status != DictationAssigned {
		return fmt.Errorf("dictation is %s: %w", d.Status, ErrConflict)
	}
	d.SecretaryID = &secretaryID
	d.Status = DictationAssigned
	d.ClaimedAt = &now
	return nil
}

// SetStatus 管理员直接改状态；仍然维持 secretary_id 与状态的对应关系
func (d *Dictation) SetStatus(to DictationStatus, now time.Time) error {
	if !to.Valid() {
		return NewValidationError("status", "unknown status")
	}
	if to.holdsSecretary() {
		if d.SecretaryID == nil {
			return fmt.Errorf("status %s requires a secretary: %w", to, ErrConflict)
		}
	} else {
		d.clearClaim()
	}
	if to == DictationCompleted {
		d.CompletedAt = &now
	}
	d.Status = to
	return nil
}

// MarkCompleted 由转写提交触发
func (d *Dictation) MarkCompleted(now time.Time) error {
	if d.Status != DictationInProgress && d.Status != DictationRejected {
		return fmt.Errorf("dictation is %s: %w", d.Status, ErrConflict)
	}
	d.clearClaim()
	d.Status = DictationCompleted
	d.CompletedAt = &now
	return nil
}

// ApplyReview 由审核结论触发
func (d *Dictation) ApplyReview(approved bool) error {
	if d.Status != DictationCompleted {
		return fmt.Errorf("dictation is %s: %w", d.Status, ErrConflict)
	}
	if approved {
		d.Status = DictationReviewed
	} else {
		d.Status = DictationRejected
	}
	return nil
}

func (d *Dictation) CheckDeletable() error {
	if d.Status == DictationInProgress {
		return fmt.Errorf("dictation is being transcribed: %w", ErrConflict)
	}
	return nil
}

// Consistent 校验 secretary_id / claimed_at / status 三者关系
func (d *Dictation) Consistent() bool {
	hasSecretary := d.SecretaryID != nil
	return hasSecretary == d.Status.holdsSecretary() && hasSecretary == (d.ClaimedAt != nil)
}

func (d *Dictation) clearClaim() {
	d.SecretaryID = nil
	d.ClaimedAt = nil
}

type DictationFilter struct {
	DoctorID string
	// 非空时按秘书视角过滤：未分配的 pending/assigned 以及本人认领的
	VisibleToSecretary string
	Status             DictationStatus
	Priority           Priority
	From               *time.Time
	To                 *time.Time
	Offset             int
	Limit              int
}

// DictationPatch 为 nil 的字段不修改
type DictationPatch struct {
	Title            *string
	Priority         *Priority
	PatientReference *string
	Notes            *string
	Status           *DictationStatus
}
