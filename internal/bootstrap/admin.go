// Package bootstrap holds the data side of the management commands: the admin
// account kept in sync on every migrate, and Django-style fixture loading.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/auth"
)

// AdminAccounts is the part of the user repository EnsureAdmin needs
type AdminAccounts interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, u *models.User) (int64, error)
	UpdateCredentials(ctx context.Context, u *models.User) error
}

// AdminSpec describes the superuser kept in sync by migrate
type AdminSpec struct {
	Username string
	Email    string
	Password string
}

// EnsureAdmin creates the superuser when missing and resets its password to
// spec.Password on every call. Without a password an existing account is left
// alone and a missing one is not created.
func EnsureAdmin(ctx context.Context, users AdminAccounts, spec AdminSpec, logger *zap.Logger) (created bool, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if spec.Username == "" {
		spec.Username = "admin"
	}

	existing, err := users.FindByUsername(ctx, spec.Username)
	if err != nil {
		return false, err
	}
	if spec.Password == "" {
		if existing == nil {
			logger.Warn("[Bootstrap] ADMIN_PASSWORD is empty; admin account not created", zap.String("username", spec.Username))
		}
		return false, nil
	}

	hash, err := auth.HashPassword(spec.Password)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}

	if existing != nil {
		existing.PasswordHash = hash
		existing.IsActive = true
		existing.IsSuperuser = true
		if spec.Email != "" {
			existing.Email = spec.Email
		}
		if err := users.UpdateCredentials(ctx, existing); err != nil {
			return false, fmt.Errorf("failed to reset admin password: %w", err)
		}
		logger.Info("[Bootstrap] admin password reset", zap.String("username", spec.Username))
		return false, nil
	}

	if _, err := users.Create(ctx, &models.User{
		Username:     spec.Username,
		Email:        spec.Email,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  true,
	}); err != nil {
		return false, err
	}
	logger.Info("[Bootstrap] admin created", zap.String("username", spec.Username))
	return true, nil
}
