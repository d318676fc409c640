package domain

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditLogin                  AuditAction = "login"
	AuditLoginFailed            AuditAction = "login_failed"
	AuditLogout                 AuditAction = "logout"
	AuditPasswordChanged        AuditAction = "password_changed"
	AuditUserCreated            AuditAction = "user_created"
	AuditUserUpdated            AuditAction = "user_updated"
	AuditUserActivated          AuditAction = "user_activated"
	AuditUserDeactivated        AuditAction = "user_deactivated"
	AuditDictationCreated       AuditAction = "dictation_created"
	AuditDictationUpdated       AuditAction = "dictation_updated"
	AuditDictationDeleted       AuditAction = "dictation_deleted"
	AuditDictationClaimed       AuditAction = "dictation_claimed"
	AuditDictationUnclaimed     AuditAction = "dictation_unclaimed"
	AuditDictationAssigned      AuditAction = "dictation_assigned"
	AuditDictationAudioStreamed AuditAction = "dictation_audio_streamed"
	AuditTranscriptionCreated   AuditAction = "transcription_created"
	AuditTranscriptionUpdated   AuditAction = "transcription_updated"
	AuditTranscriptionSubmitted AuditAction = "transcription_submitted"
	AuditTranscriptionApproved  AuditAction = "transcription_approved"
	AuditTranscriptionRejected  AuditAction = "transcription_rejected"
	AuditAccessDenied           AuditAction = "access_denied"
)

// AuditLog 只追加
type AuditLog struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	UserID       *string        `gorm:"size:36;index" json:"userId"`
	Action       AuditAction    `gorm:"size:48;not null;index" json:"action"`
	ResourceType string         `gorm:"size:50;index" json:"resourceType"`
	ResourceID   string         `gorm:"size:36;index" json:"resourceId"`
	IPAddress    string         `gorm:"size:45" json:"ipAddress"`
	UserAgent    string         `gorm:"size:500" json:"userAgent"`
	RequestID    string         `gorm:"size:36;index" json:"requestId"`
	Description  string         `gorm:"type:text" json:"description"`
	Metadata     datatypes.JSON `json:"metadata"`
	CreatedAt    time.Time      `gorm:"index" json:"createdAt"`
}

type AuditFilter struct {
	UserID       string
	Action       AuditAction
	ResourceType string
	ResourceID   string
	From         *time.Time
	To           *time.Time
	Offset       int
	Limit        int
}

type AuditCount struct {
	Action AuditAction `json:"action"`
	Count  int64       `json:"count"`
}
