package handler

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dictat/internal/domain"
	"dictat/internal/service/dictation"
	"dictat/internal/transport/http/ez"
	resp "dictat/internal/transport/http/response"
)

type DictationHandler struct {
	svc *dictation.Service
	log *zap.Logger
}

func NewDictationHandler(svc *dictation.Service, log *zap.Logger) *DictationHandler {
	return &DictationHandler{svc: svc, log: log}
}

// multipart 字段名与上传表单保持一致
type createDictationForm struct {
	Title            string `form:"title"             binding:"max=255"`
	Priority         string `form:"priority"`
	PatientReference string `form:"patient_reference" binding:"max=100"`
	Notes            string `form:"notes"`
}

type listDictationsQuery struct {
	pageQuery
	rangeQuery
	Status   string `form:"status"`
	Priority string `form:"priority"`
}

type updateDictationReq struct {
	Title            *string `json:"title"            binding:"omitempty,max=255"`
	Priority         *string `json:"priority"`
	PatientReference *string `json:"patientReference" binding:"omitempty,max=100"`
	Notes            *string `json:"notes"`
	Status           *string `json:"status"`
}

func (r updateDictationReq) patch() domain.DictationPatch {
	p := domain.DictationPatch{Title: r.Title, PatientReference: r.PatientReference, Notes: r.Notes}
	if r.Priority != nil {
		v := domain.Priority(strings.ToLower(*r.Priority))
		p.Priority = &v
	}
	if r.Status != nil {
		v := domain.DictationStatus(strings.ToLower(*r.Status))
		p.Status = &v
	}
	return p
}

func (h *DictationHandler) MountAPI(_, authed *gin.RouterGroup) {
	e := ez.New(authed, h.log)

	ez.RegisterAction(e, ez.Action[createDictationForm, *domain.Dictation]{
		Method: http.MethodPost,
		Path:   "/dictations",
		Binder: ez.BindForm,
		Roles:  []domain.Role{domain.RoleDoctor, domain.RoleAdmin},
		Handler: func(c *gin.Context, in *createDictationForm) (*domain.Dictation, error) {
			fh, err := c.FormFile("file")
			if err != nil {
				if errors.Is(err, http.ErrMissingFile) {
					return nil, domain.NewValidationError("file", "required")
				}
				return nil, err
			}
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("open upload: %w", err)
			}
			defer f.Close()
			return h.svc.Create(c.Request.Context(), ez.Actor(c), dictation.CreateInput{
				Audio:            f,
				FileName:         fh.Filename,
				Title:            strings.TrimSpace(in.Title),
				Priority:         domain.Priority(strings.ToLower(strings.TrimSpace(in.Priority))),
				PatientReference: strings.TrimSpace(in.PatientReference),
				Notes:            in.Notes,
			})
		},
	})

	ez.RegisterAction(e, ez.Action[listDictationsQuery, resp.Page[domain.Dictation]]{
		Method: http.MethodGet,
		Path:   "/dictations",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *listDictationsQuery) (resp.Page[domain.Dictation], error) {
			from, to, err := in.parse()
			if err != nil {
				return resp.Page[domain.Dictation]{}, err
			}
			items, total, err := h.svc.List(c.Request.Context(), ez.Actor(c), domain.DictationFilter{
				Status:   domain.DictationStatus(in.Status),
				Priority: domain.Priority(in.Priority),
				From:     from,
				To:       to,
				Offset:   in.Offset,
				Limit:    in.Limit,
			})
			if err != nil {
				return resp.Page[domain.Dictation]{}, err
			}
			return resp.NewPage(items, total), nil
		},
	})

	// 静态段 queue 优先于 :id 匹配
	ez.RegisterAction(e, ez.Action[pageQuery, resp.Page[domain.Dictation]]{
		Method: http.MethodGet,
		Path:   "/dictations/queue",
		Binder: ez.BindQuery,
		Roles:  []domain.Role{domain.RoleSecretary, domain.RoleAdmin},
		Handler: func(c *gin.Context, in *pageQuery) (resp.Page[domain.Dictation], error) {
			items, total, err := h.svc.Queue(c.Request.Context(), ez.Actor(c), in.Offset, in.Limit)
			if err != nil {
				return resp.Page[domain.Dictation]{}, err
			}
			return resp.NewPage(items, total), nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Dictation]{
		Method: http.MethodGet,
		Path:   "/dictations/:id",
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Dictation, error) {
			return h.svc.Get(c.Request.Context(), ez.Actor(c), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[updateDictationReq, *domain.Dictation]{
		Method: http.MethodPut,
		Path:   "/dictations/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *updateDictationReq) (*domain.Dictation, error) {
			return h.svc.Update(c.Request.Context(), ez.Actor(c), c.Param("id"), in.patch())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/dictations/:id",
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := h.svc.Delete(c.Request.Context(), ez.Actor(c), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Dictation]{
		Method: http.MethodPost,
		Path:   "/dictations/:id/claim",
		Roles:  []domain.Role{domain.RoleSecretary},
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Dictation, error) {
			return h.svc.Claim(c.Request.Context(), ez.Actor(c), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Dictation]{
		Method: http.MethodPost,
		Path:   "/dictations/:id/unclaim",
		Roles:  []domain.Role{domain.RoleSecretary, domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Dictation, error) {
			return h.svc.Unclaim(c.Request.Context(), ez.Actor(c), c.Param("id"))
		},
	})

	e.Raw(http.MethodGet, "/dictations/:id/audio", func(c *gin.Context) { h.audio(c, e) })
}

// audio 走真实 HTTP 状态码：200 整段，206 区间，416 越界
func (h *DictationHandler) audio(c *gin.Context, e ez.EZ) {
	if c.GetString(ez.KeyUserID) == "" {
		e.Fail(c, domain.ErrUnauthorized)
		return
	}
	st, err := h.svc.Audio(c.Request.Context(), ez.Actor(c), c.Param("id"), c.GetHeader("Range"))
	if err != nil {
		var re *dictation.RangeError
		if errors.As(err, &re) {
			c.Header("Content-Range", fmt.Sprintf("bytes */%d", re.Size))
			c.AbortWithStatusJSON(http.StatusRequestedRangeNotSatisfiable,
				resp.Error(resp.CodeRangeNotSatisfiable, "range not satisfiable"))
			return
		}
		e.Fail(c, err)
		return
	}
	defer st.Body.Close()

	headers := map[string]string{
		"Accept-Ranges":       "bytes",
		"Content-Disposition": mime.FormatMediaType("inline", map[string]string{"filename": st.FileName}),
	}
	status := http.StatusOK
	if st.Partial {
		status = http.StatusPartialContent
		headers["Content-Range"] = fmt.Sprintf("bytes %d-%d/%d", st.Start, st.End, st.Size)
	}
	c.DataFromReader(status, st.Length(), st.MimeType, st.Body, headers)
}
