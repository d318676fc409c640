package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dictat/internal/domain"
	"dictat/internal/service/transcription"
	"dictat/internal/transport/http/ez"
)

type TranscriptionHandler struct {
	svc *transcription.Service
	log *zap.Logger
}

func NewTranscriptionHandler(svc *transcription.Service, log *zap.Logger) *TranscriptionHandler {
	return &TranscriptionHandler{svc: svc, log: log}
}

type createTranscriptionReq struct {
	DictationID string `json:"dictationId" binding:"required,max=36"`
	Content     string `json:"content"`
}

type updateTranscriptionReq struct {
	Content  string `json:"content"`
	Autosave bool   `json:"autosave"`
}

type reviewReq struct {
	Action          string `json:"action"          binding:"required,oneof=approve reject"`
	Notes           string `json:"notes"`
	RejectionReason string `json:"rejectionReason"`
}

func (h *TranscriptionHandler) MountAPI(_, authed *gin.RouterGroup) {
	e := ez.New(authed, h.log)

	ez.RegisterAction(e, ez.Action[createTranscriptionReq, *domain.Transcription]{
		Method: http.MethodPost,
		Path:   "/transcriptions",
		Binder: ez.BindJSON,
		Roles:  []domain.Role{domain.RoleSecretary},
		Handler: func(c *gin.Context, in *createTranscriptionReq) (*domain.Transcription, error) {
			return h.svc.Create(c.Request.Context(), ez.Actor(c), in.DictationID, in.Content)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Transcription]{
		Method: http.MethodGet,
		Path:   "/transcriptions/:id",
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Transcription, error) {
			return h.svc.Get(c.Request.Context(), ez.Actor(c), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[updateTranscriptionReq, *domain.Transcription]{
		Method: http.MethodPut,
		Path:   "/transcriptions/:id",
		Binder: ez.BindJSON,
		Roles:  []domain.Role{domain.RoleSecretary},
		Handler: func(c *gin.Context, in *updateTranscriptionReq) (*domain.Transcription, error) {
			return h.svc.Update(c.Request.Context(), ez.Actor(c), c.Param("id"), in.Content, in.Autosave)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Transcription]{
		Method: http.MethodPost,
		Path:   "/transcriptions/:id/submit",
		Roles:  []domain.Role{domain.RoleSecretary},
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Transcription, error) {
			return h.svc.Submit(c.Request.Context(), ez.Actor(c), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[reviewReq, *domain.Transcription]{
		Method: http.MethodPost,
		Path:   "/transcriptions/:id/review",
		Binder: ez.BindJSON,
		Roles:  []domain.Role{domain.RoleDoctor, domain.RoleAdmin},
		Handler: func(c *gin.Context, in *reviewReq) (*domain.Transcription, error) {
			return h.svc.Review(c.Request.Context(), ez.Actor(c), c.Param("id"), transcription.ReviewInput{
				Action:          transcription.ReviewAction(in.Action),
				Notes:           in.Notes,
				RejectionReason: in.RejectionReason,
			})
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []domain.TranscriptionRevision]{
		Method: http.MethodGet,
		Path:   "/transcriptions/:id/history",
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.TranscriptionRevision, error) {
			revs, err := h.svc.History(c.Request.Context(), ez.Actor(c), c.Param("id"))
			if revs == nil && err == nil {
				revs = []domain.TranscriptionRevision{}
			}
			return revs, err
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Transcription]{
		Method: http.MethodGet,
		Path:   "/dictations/:id/transcription",
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Transcription, error) {
			return h.svc.GetByDictation(c.Request.Context(), ez.Actor(c), c.Param("id"))
		},
	})
}
