package domain

import (
	"errors"
	"fmt"
)

// 各层通用的哨兵错误，传输层按 errors.Is 映射为响应码
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrValidation          = errors.New("validation error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")

	// 以下两个同时满足 errors.Is(err, ErrValidation)
	ErrPayloadTooLarge  = fmt.Errorf("%w: payload too large", ErrValidation)
	ErrUnsupportedMedia = fmt.Errorf("%w: unsupported media type", ErrValidation)
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 汇总字段级校验错误
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}
