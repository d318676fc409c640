package ez

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"dictat/internal/core/auth"
	"dictat/internal/domain"
	resp "dictat/internal/transport/http/response"
)

// 统一错误对象（配合 resp.Error(int, msg)）
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: resp.CodeNotFound, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

// Classify 把错误映射为业务码、对外消息和附加数据。500 不透出内部细节
func Classify(err error) (code int, msg string, data any) {
	var (
		ae    *AErr
		ve    *domain.ValidationError
		verrs validator.ValidationErrors
		mbe   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &ae):
		if ae.Code >= resp.CodeServerError {
			return ae.Code, resp.CodeMsgMap[ae.Code], nil
		}
		return ae.Code, ae.Error(), nil
	case errors.As(err, &verrs):
		return resp.CodeBadRequest, "invalid request", bindingErrors(verrs)
	case errors.As(err, &mbe), errors.Is(err, domain.ErrPayloadTooLarge):
		return resp.CodePayloadTooLarge, "payload too large", nil
	case errors.Is(err, domain.ErrUnsupportedMedia):
		return resp.CodeUnsupportedMedia, "unsupported audio format", nil
	case errors.As(err, &ve):
		return resp.CodeUnprocessable, ve.Error(), map[string]any{"errors": ve.Errors}
	case errors.Is(err, domain.ErrValidation):
		return resp.CodeUnprocessable, err.Error(), nil
	case errors.Is(err, domain.ErrNotFound):
		return resp.CodeNotFound, err.Error(), nil
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrConflict):
		return resp.CodeConflict, err.Error(), nil
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		return resp.CodeUnauthorized, err.Error(), nil
	case errors.Is(err, domain.ErrForbidden):
		return resp.CodeForbidden, err.Error(), nil
	case errors.Is(err, domain.ErrRangeNotSatisfiable):
		return resp.CodeRangeNotSatisfiable, err.Error(), nil
	case errors.Is(err, context.DeadlineExceeded):
		return resp.CodeTimeout, "timeout", nil
	}
	return resp.CodeServerError, "internal error", nil
}

func bindingErrors(verrs validator.ValidationErrors) map[string]any {
	out := make([]domain.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, domain.FieldError{Field: fe.Field(), Message: fe.Tag()})
	}
	return map[string]any{"errors": out}
}
