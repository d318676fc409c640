package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dictat/internal/domain"
	"dictat/internal/service/account"
	"dictat/internal/service/audit"
	"dictat/internal/service/dictation"
	"dictat/internal/transport/http/ez"
	resp "dictat/internal/transport/http/response"
)

// AdminHandler 管理端：用户管理、指派、审计查询。分组已要求 admin 角色
type AdminHandler struct {
	accounts   *account.Service
	dictations *dictation.Service
	audit      *audit.Service
	log        *zap.Logger
}

func NewAdminHandler(accounts *account.Service, dictations *dictation.Service, auditSvc *audit.Service, log *zap.Logger) *AdminHandler {
	return &AdminHandler{accounts: accounts, dictations: dictations, audit: auditSvc, log: log}
}

type listUsersQuery struct {
	pageQuery
	Q           string `form:"q"`            // 按 email/姓名模糊搜
	Role        string `form:"role"`         // 可选：按角色过滤
	WithDeleted bool   `form:"with_deleted"` // 是否包含软删
}

type createUserReq struct {
	Email      string      `json:"email"      binding:"required,max=191"`
	Password   string      `json:"password"   binding:"required,max=128"`
	FullName   string      `json:"fullName"   binding:"max=128"`
	Role       domain.Role `json:"role"       binding:"required"`
	IsVerified bool        `json:"isVerified"`
}

type updateUserReq struct {
	Role       *domain.Role `json:"role"`
	FullName   *string      `json:"fullName" binding:"omitempty,max=128"`
	IsVerified *bool        `json:"isVerified"`
}

type assignReq struct {
	SecretaryID string `json:"secretaryId" binding:"required,max=36"`
}

type auditQuery struct {
	pageQuery
	rangeQuery
	UserID       string `form:"userId"`
	Action       string `form:"action"`
	ResourceType string `form:"resourceType"`
	ResourceID   string `form:"resourceId"`
}

func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin, h.log)

	// --- 用户 ---
	ez.RegisterAction(e, ez.Action[listUsersQuery, resp.Page[domain.User]]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *listUsersQuery) (resp.Page[domain.User], error) {
			items, total, err := h.accounts.ListUsers(c.Request.Context(), ez.Actor(c), domain.UserFilter{
				Query:       strings.TrimSpace(in.Q),
				Role:        domain.Role(in.Role),
				WithDeleted: in.WithDeleted,
				Offset:      in.Offset,
				Limit:       in.Limit,
			})
			if err != nil {
				return resp.Page[domain.User]{}, err
			}
			return resp.NewPage(items, total), nil
		},
	})

	ez.RegisterAction(e, ez.Action[createUserReq, *domain.User]{
		Method: http.MethodPost,
		Path:   "/users",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *createUserReq) (*domain.User, error) {
			return h.accounts.CreateUser(c.Request.Context(), ez.Actor(c), account.CreateUserInput{
				Email:      in.Email,
				Password:   in.Password,
				FullName:   in.FullName,
				Role:       in.Role,
				IsVerified: in.IsVerified,
			})
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/users/:id",
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return h.accounts.GetUser(c.Request.Context(), ez.Actor(c), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[updateUserReq, *domain.User]{
		Method: http.MethodPut,
		Path:   "/users/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *updateUserReq) (*domain.User, error) {
			return h.accounts.UpdateUser(c.Request.Context(), ez.Actor(c), c.Param("id"), account.UpdateUserInput{
				Role:       in.Role,
				FullName:   in.FullName,
				IsVerified: in.IsVerified,
			})
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.User]{
		Method: http.MethodPost,
		Path:   "/users/:id/activate",
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return h.accounts.Activate(c.Request.Context(), ez.Actor(c), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.User]{
		Method: http.MethodPost,
		Path:   "/users/:id/deactivate",
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return h.accounts.Deactivate(c.Request.Context(), ez.Actor(c), c.Param("id"))
		},
	})

	// --- 指派 ---
	ez.RegisterAction(e, ez.Action[assignReq, *domain.Dictation]{
		Method: http.MethodPost,
		Path:   "/dictations/:id/assign",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *assignReq) (*domain.Dictation, error) {
			return h.dictations.Assign(c.Request.Context(), ez.Actor(c), c.Param("id"), in.SecretaryID)
		},
	})

	// --- 审计 ---
	ez.RegisterAction(e, ez.Action[auditQuery, resp.Page[domain.AuditLog]]{
		Method: http.MethodGet,
		Path:   "/audit",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *auditQuery) (resp.Page[domain.AuditLog], error) {
			from, to, err := in.parse()
			if err != nil {
				return resp.Page[domain.AuditLog]{}, err
			}
			items, total, err := h.audit.Query(c.Request.Context(), ez.Actor(c), domain.AuditFilter{
				UserID:       in.UserID,
				Action:       domain.AuditAction(in.Action),
				ResourceType: in.ResourceType,
				ResourceID:   in.ResourceID,
				From:         from,
				To:           to,
				Offset:       in.Offset,
				Limit:        in.Limit,
			})
			if err != nil {
				return resp.Page[domain.AuditLog]{}, err
			}
			return resp.NewPage(items, total), nil
		},
	})

	ez.RegisterAction(e, ez.Action[rangeQuery, []domain.AuditCount]{
		Method: http.MethodGet,
		Path:   "/audit/stats",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, in *rangeQuery) ([]domain.AuditCount, error) {
			from, to, err := in.parse()
			if err != nil {
				return nil, err
			}
			counts, err := h.audit.Stats(c.Request.Context(), ez.Actor(c), from, to)
			if counts == nil && err == nil {
				counts = []domain.AuditCount{}
			}
			return counts, err
		},
	})
}
