// Package bootstrap seeds initial data at startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/contactvault/contactvault/internal/config"
	"github.com/contactvault/contactvault/internal/domain"
	"github.com/contactvault/contactvault/internal/password"
	"github.com/contactvault/contactvault/internal/repository"
)

// EnsureAdmin creates a confirmed admin account when ADMIN_EMAIL and
// ADMIN_PASSWORD are configured. Without them it is a no-op.
func EnsureAdmin(lc fx.Lifecycle, cfg config.Config, contacts repository.ContactRepository, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, contacts, node, logger)
		},
	})
}

func ensureAdmin(ctx context.Context, cfg config.Config, contacts repository.ContactRepository, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || strings.TrimSpace(cfg.AdminPassword) == "" {
		return nil
	}

	if _, err := contacts.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bootstrap lookup admin: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	admin := domain.Contact{
		ID:           node.Generate().Int64(),
		FirstName:    "Admin",
		LastName:     "Admin",
		Email:        email,
		Phone:        node.Generate().Int64(),
		Birthday:     time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC),
		PasswordHash: hashed,
		Role:         domain.RoleAdmin,
	}

	created, err := contacts.Create(ctx, admin)
	if err != nil {
		return fmt.Errorf("bootstrap create admin: %w", err)
	}
	if err := contacts.ConfirmEmail(ctx, created.Email); err != nil {
		return fmt.Errorf("bootstrap confirm admin: %w", err)
	}

	logger.Info("admin account seeded", zap.String("email", email), zap.Int64("contact_id", created.ID))
	return nil
}
