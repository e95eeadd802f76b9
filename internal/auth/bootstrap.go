// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/mototwist/mototwist/internal/database"
	"github.com/mototwist/mototwist/internal/logging"
	"github.com/mototwist/mototwist/internal/models"
)

// EnsureAdmin bootstraps the configured admin user on startup. An
// existing row is left untouched, including its password, so rotating
// ADMIN_PASSWORD in the config does not silently reset credentials.
func (s *Service) EnsureAdmin(ctx context.Context) error {
	username := s.cfg.AdminUsername
	password := s.cfg.AdminPassword

	if username == "" || password == "" {
		count, err := s.users.CountUsers(ctx)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if count == 0 && s.mode != AuthModeOIDC {
			logging.Warn().
				Str("mode", s.mode.String()).
				Msg("No riders exist and no admin credentials are configured; set ADMIN_USERNAME and ADMIN_PASSWORD")
		}
		return nil
	}

	existing, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		if existing.Role != models.RoleAdmin {
			logging.Warn().
				Str("user", username).
				Str("role", existing.Role).
				Msg("Configured admin user exists without the admin role")
		}
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("look up admin user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &models.User{
		Username:     username,
		Name:         username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := s.users.CreateUser(ctx, admin); err != nil {
		if errors.Is(err, database.ErrDuplicateUsername) {
			// Another replica won the race; its row is just as good.
			return nil
		}
		return fmt.Errorf("create admin user: %w", err)
	}

	logging.Info().
		Str("user", username).
		Msg("Bootstrapped admin user")

	return nil
}
