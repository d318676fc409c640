package account

import (
	"net/mail"
	"strings"

	"dictat/internal/domain"
)

const minPasswordLen = 8

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Role     domain.Role
}

func (i *RegisterInput) normalize() {
	i.Email = normalizeEmail(i.Email)
	i.FullName = strings.TrimSpace(i.FullName)
}

// Validate 自助注册只允许医生和秘书
func (i RegisterInput) Validate() error {
	errs := credentialErrors(i.Email, i.Password)
	if i.Role != domain.RoleDoctor && i.Role != domain.RoleSecretary {
		errs = append(errs, domain.FieldError{Field: "role", Message: "must be doctor or secretary"})
	}
	return fieldErrors(errs)
}

type CreateUserInput struct {
	Email      string
	Password   string
	FullName   string
	Role       domain.Role
	IsVerified bool
}

func (i CreateUserInput) Validate() error {
	errs := credentialErrors(i.Email, i.Password)
	if !i.Role.Valid() {
		errs = append(errs, domain.FieldError{Field: "role", Message: "unknown role"})
	}
	return fieldErrors(errs)
}

type UpdateUserInput struct {
	Role       *domain.Role
	FullName   *string
	IsVerified *bool
}

func (i UpdateUserInput) Validate() error {
	if i.Role != nil && !i.Role.Valid() {
		return domain.NewValidationError("role", "unknown role")
	}
	return nil
}

type LoginInput struct {
	Email    string
	Password string
}

type ChangePasswordInput struct {
	OldPassword string
	NewPassword string
}

func (i ChangePasswordInput) Validate() error {
	var errs []domain.FieldError
	if i.OldPassword == "" {
		errs = append(errs, domain.FieldError{Field: "oldPassword", Message: "required"})
	}
	if len(i.NewPassword) < minPasswordLen {
		errs = append(errs, domain.FieldError{Field: "newPassword", Message: "at least 8 characters"})
	}
	return fieldErrors(errs)
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func credentialErrors(email, password string) []domain.FieldError {
	var errs []domain.FieldError
	if email == "" {
		errs = append(errs, domain.FieldError{Field: "email", Message: "required"})
	} else if _, err := mail.ParseAddress(email); err != nil || len(email) > 191 {
		errs = append(errs, domain.FieldError{Field: "email", Message: "invalid email"})
	}
	if len(password) < minPasswordLen {
		errs = append(errs, domain.FieldError{Field: "password", Message: "at least 8 characters"})
	}
	return errs
}

func fieldErrors(errs []domain.FieldError) error {
	if len(errs) > 0 {
		return &domain.ValidationError{Errors: errs}
	}
	return nil
}
