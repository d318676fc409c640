package account

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dictat/internal/core/authz"
	"dictat/internal/domain"
	"dictat/internal/service/audit"
	"dictat/pkg/utils"
)

// Register 自助注册，需开启 auth.allowRegistration
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if !s.allowRegistration {
		return nil, fmt.Errorf("registration is disabled: %w", domain.ErrForbidden)
	}
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	u, err := s.createUser(ctx, in.Email, in.Password, in.FullName, in.Role, false)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Event{
		UserID:       u.ID,
		Action:       domain.AuditUserCreated,
		ResourceType: authz.ResUser,
		ResourceID:   u.ID,
		Description:  "self registration",
		Metadata:     map[string]any{"role": string(u.Role)},
	})
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *Service) createUser(ctx context.Context, email, password, fullName string, role domain.Role, verified bool) (*domain.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("account.createUser hash: %w", err)
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         role,
		IsActive:     true,
		IsVerified:   verified,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
