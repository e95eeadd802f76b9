// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package models

import "time"

// Role constants define the standard roles in the system.
// These align with the Casbin policy definitions in internal/authz/policy.csv.
const (
	// RoleRider is the default role: can browse the catalog, capture and
	// create Twists, manage their own visibility set, and rate routes.
	RoleRider = "rider"

	// RoleAdmin inherits rider permissions and can additionally delete any
	// Twist or rating and manage users.
	RoleAdmin = "admin"
)

// ValidRoles contains all valid role names for validation.
var ValidRoles = []string{RoleRider, RoleAdmin}

// IsValidRole checks if a role name is valid.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User is a registered rider. Passwords are stored as bcrypt hashes; the
// hash never leaves the database layer and is excluded from JSON.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanDelete reports whether the user may delete a resource authored by
// authorID. Owners and admins may; everyone else may not.
func (u *User) CanDelete(authorID string) bool {
	return u.IsAdmin() || u.ID == authorID
}
