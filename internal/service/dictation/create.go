package dictation

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"dictat/internal/core/authz"
	"dictat/internal/core/metrics"
	"dictat/internal/domain"
	"dictat/pkg/utils"
)

type CreateInput struct {
	Audio            io.Reader
	FileName         string
	Title            string
	Priority         domain.Priority
	PatientReference string
	Notes            string
}

func (i *CreateInput) Validate() error {
	var errs []domain.FieldError
	if i.Audio == nil {
		errs = append(errs, domain.FieldError{Field: "file", Message: "required"})
	}
	if i.Priority == "" {
		i.Priority = domain.PriorityNormal
	} else if !i.Priority.Valid() {
		errs = append(errs, domain.FieldError{Field: "priority", Message: "must be low, normal, high or urgent"})
	}
	if len(i.Title) > 255 {
		errs = append(errs, domain.FieldError{Field: "title", Message: "too long"})
	}
	if len(i.PatientReference) > 100 {
		errs = append(errs, domain.FieldError{Field: "patientReference", Message: "too long"})
	}
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}

// Create 保存音频并登记一条 pending 听写。入库失败时删除已落盘的文件
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Dictation, error) {
	if err := authz.RequireRole(actor, domain.RoleDoctor, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, authz.ActCreate, authz.Resource{Type: authz.ResDictation, OwnerID: actor.ID}); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	meta, err := s.storage.Save(ctx, in.Audio, in.FileName, actor.ID)
	if err != nil {
		return nil, err
	}
	d := &domain.Dictation{
		ID:               utils.NewID(),
		DoctorID:         actor.ID,
		FilePath:         meta.Path,
		FileName:         in.FileName,
		FileSize:         meta.Size,
		MimeType:         meta.MimeType,
		FileHash:         meta.Hash,
		Status:           domain.DictationPending,
		Priority:         in.Priority,
		Title:            in.Title,
		PatientReference: in.PatientReference,
		Notes:            in.Notes,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		if derr := s.storage.Delete(meta.Path); derr != nil {
			s.log.Error("orphan audio file", zap.String("path", meta.Path), zap.Error(derr))
		}
		return nil, fmt.Errorf("dictation.Create: %w", err)
	}

	metrics.Transition(authz.ResDictation, string(d.Status))
	s.record(ctx, actor, domain.AuditDictationCreated, d, map[string]any{
		"priority": string(d.Priority),
		"size":     d.FileSize,
		"mimeType": d.MimeType,
	})
	s.log.Info("dictation created", zap.String("dictation_id", d.ID), zap.String("doctor_id", actor.ID))
	return d, nil
}
