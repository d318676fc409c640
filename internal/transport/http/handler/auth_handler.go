package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dictat/internal/domain"
	"dictat/internal/service/account"
	"dictat/internal/transport/http/ez"
)

// AuthHandler 注册/登录/刷新/登出，以及当前用户
type AuthHandler struct {
	svc *account.Service
	log *zap.Logger
}

func NewAuthHandler(svc *account.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

func (h *AuthHandler) Priority() int { return 10 }

type registerReq struct {
	Email    string      `json:"email"    binding:"required,max=191"`
	Password string      `json:"password" binding:"required,max=128"`
	FullName string      `json:"fullName" binding:"max=128"`
	Role     domain.Role `json:"role"     binding:"required"`
}

type loginReq struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type logoutReq struct {
	RefreshToken string `json:"refreshToken"`
}

type passwordReq struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,max=128"`
}

func (h *AuthHandler) MountAPI(public, authed *gin.RouterGroup) {
	pub := ez.New(public, h.log)
	auth := ez.New(authed, h.log)

	ez.RegisterAction(pub, ez.Action[registerReq, *domain.User]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *registerReq) (*domain.User, error) {
			return h.svc.Register(c.Request.Context(), account.RegisterInput{
				Email:    in.Email,
				Password: in.Password,
				FullName: in.FullName,
				Role:     in.Role,
			})
		},
	})

	ez.RegisterAction(pub, ez.Action[loginReq, *account.AuthResult]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginReq) (*account.AuthResult, error) {
			return h.svc.Login(c.Request.Context(), account.LoginInput{Email: in.Email, Password: in.Password})
		},
	})

	ez.RegisterAction(pub, ez.Action[refreshReq, *account.AuthResult]{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *refreshReq) (*account.AuthResult, error) {
			return h.svc.Refresh(c.Request.Context(), in.RefreshToken)
		},
	})

	// 请求体可选：带上 refreshToken 时一并吊销
	ez.RegisterAction(auth, ez.Action[struct{}, gin.H]{
		Method: http.MethodPost,
		Path:   "/auth/logout",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			var in logoutReq
			if c.Request.ContentLength > 0 {
				if err := c.ShouldBindJSON(&in); err != nil {
					return nil, ez.BadRequest(err.Error())
				}
			}
			if err := h.svc.Logout(c.Request.Context(), ez.Claims(c), in.RefreshToken); err != nil {
				return nil, err
			}
			return gin.H{"loggedOut": true}, nil
		},
	})

	ez.RegisterAction(auth, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return h.svc.Me(c.Request.Context(), ez.Actor(c))
		},
	})

	ez.RegisterAction(auth, ez.Action[passwordReq, gin.H]{
		Method: http.MethodPost,
		Path:   "/me/password",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *passwordReq) (gin.H, error) {
			err := h.svc.ChangePassword(c.Request.Context(), ez.Actor(c), account.ChangePasswordInput{
				OldPassword: in.OldPassword,
				NewPassword: in.NewPassword,
			})
			if err != nil {
				return nil, err
			}
			return gin.H{"changed": true}, nil
		},
	})

}
