// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/mototwist/mototwist/internal/config"
	"github.com/mototwist/mototwist/internal/models"
)

func bootstrapService(store UserStore, cfg *config.SecurityConfig) *Service {
	return &Service{mode: AuthModeJWT, users: store, cfg: cfg}
}

func TestEnsureAdminCreatesUser(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	service := bootstrapService(store, &config.SecurityConfig{
		AdminUsername: "boss",
		AdminPassword: "ride-the-twisties",
	})
	ctx := context.Background()

	if err := service.EnsureAdmin(ctx); err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}

	admin, err := store.GetUserByUsername(ctx, "boss")
	if err != nil {
		t.Fatalf("admin user not created: %v", err)
	}
	if admin.Role != models.RoleAdmin {
		t.Errorf("Role = %q, want admin", admin.Role)
	}
	if admin.ID == "" {
		t.Error("admin has no ID")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("ride-the-twisties")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}

	// Bootstrap is idempotent across restarts.
	if err := service.EnsureAdmin(ctx); err != nil {
		t.Fatalf("second EnsureAdmin() error = %v", err)
	}
	if store.creates != 1 {
		t.Errorf("creates = %d, want 1", store.creates)
	}
}

func TestEnsureAdminLeavesExistingRowAlone(t *testing.T) {
	t.Parallel()

	originalHash := quickHash(t, "old password")
	store := newFakeUserStore(&models.User{
		ID:           "id-boss",
		Username:     "boss",
		PasswordHash: originalHash,
		Role:         models.RoleRider,
	})
	service := bootstrapService(store, &config.SecurityConfig{
		AdminUsername: "boss",
		AdminPassword: "rotated password",
	})
	ctx := context.Background()

	if err := service.EnsureAdmin(ctx); err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}

	existing, err := store.GetUserByUsername(ctx, "boss")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if existing.PasswordHash != originalHash {
		t.Error("EnsureAdmin rewrote the existing password hash")
	}
	if existing.Role != models.RoleRider {
		t.Errorf("Role = %q, want unchanged rider", existing.Role)
	}
	if store.creates != 0 {
		t.Errorf("creates = %d, want 0", store.creates)
	}
}

func TestEnsureAdminWithoutCredentials(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	service := bootstrapService(store, &config.SecurityConfig{})

	if err := service.EnsureAdmin(context.Background()); err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}
	if store.creates != 0 {
		t.Errorf("creates = %d, want 0", store.creates)
	}
}

func TestEnsureAdminRejectsWeakPassword(t *testing.T) {
	t.Parallel()

	service := bootstrapService(newFakeUserStore(), &config.SecurityConfig{
		AdminUsername: "boss",
		AdminPassword: "short",
	})

	if err := service.EnsureAdmin(context.Background()); err == nil {
		t.Error("EnsureAdmin() with a short password did not error")
	}
}

func TestEnsureAdminPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("db closed")

	t.Run("count fails without credentials", func(t *testing.T) {
		t.Parallel()
		store := newFakeUserStore()
		store.failErr = storeErr
		service := bootstrapService(store, &config.SecurityConfig{})
		if err := service.EnsureAdmin(context.Background()); !errors.Is(err, storeErr) {
			t.Errorf("EnsureAdmin() error = %v, want wrapped store error", err)
		}
	})

	t.Run("lookup fails with credentials", func(t *testing.T) {
		t.Parallel()
		store := newFakeUserStore()
		store.failErr = storeErr
		service := bootstrapService(store, &config.SecurityConfig{
			AdminUsername: "boss",
			AdminPassword: "ride-the-twisties",
		})
		if err := service.EnsureAdmin(context.Background()); !errors.Is(err, storeErr) {
			t.Errorf("EnsureAdmin() error = %v, want wrapped store error", err)
		}
	})
}
