// internal/seed/seed.go
package seed

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/teamfund-backend/internal/repository"
	"github.com/Marga-Ghale/teamfund-backend/internal/types"
)

// Admin describes the bootstrap master admin account.
type Admin struct {
	Email    string
	Password string
	Name     string
}

// SeedAdmin creates the master admin if no user holds the email yet.
// Master admins create teams and issue the first invites, so a fresh
// database needs one to be usable. An empty email skips seeding.
func SeedAdmin(ctx context.Context, users repository.UserRepository, admin Admin, log *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" {
		log.Info("seed admin not configured, skipping")
		return nil
	}
	if len(admin.Password) < 8 {
		return fmt.Errorf("seed admin password must be at least 8 characters")
	}

	existing, err := users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find seed admin: %w", err)
	}
	if existing != nil {
		log.Info("seed admin already exists", zap.String("user_id", existing.ID))
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed admin password: %w", err)
	}
	name := admin.Name
	if name == "" {
		name = "Administrator"
	}

	user := &repository.User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         types.RoleMasterAdmin,
	}
	if err := users.Create(ctx, user); err != nil {
		return fmt.Errorf("create seed admin: %w", err)
	}
	log.Info("seed admin created", zap.String("user_id", user.ID), zap.String("email", email))
	return nil
}
