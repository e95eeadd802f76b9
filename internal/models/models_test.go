// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package models

import (
	"strings"
	"testing"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{"rider", true},
		{"admin", true},
		{"", false},
		{"Rider", false},
		{"superuser", false},
	}

	for _, tt := range tests {
		if got := IsValidRole(tt.role); got != tt.want {
			t.Errorf("IsValidRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}

func TestUserCanDelete(t *testing.T) {
	owner := &User{ID: "u1", Role: RoleRider}
	other := &User{ID: "u2", Role: RoleRider}
	admin := &User{ID: "u3", Role: RoleAdmin}

	if !owner.CanDelete("u1") {
		t.Error("owner should be able to delete own resource")
	}
	if other.CanDelete("u1") {
		t.Error("non-owner rider should not be able to delete")
	}
	if !admin.CanDelete("u1") {
		t.Error("admin should be able to delete any resource")
	}
}

func TestLatLngValid(t *testing.T) {
	tests := []struct {
		name  string
		coord LatLng
		want  bool
	}{
		{"origin", LatLng{0, 0}, true},
		{"alps pass", LatLng{46.573, 8.561}, true},
		{"lat north bound", LatLng{90, 0}, true},
		{"lat too far north", LatLng{90.01, 0}, false},
		{"lng east bound", LatLng{0, 180}, true},
		{"lng too far west", LatLng{0, -180.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.coord.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTwistString(t *testing.T) {
	paved := &Twist{ID: 7, Name: "Stelvio Pass", IsPaved: true}
	if got := paved.String(); got != "[7] Stelvio Pass (Paved)" {
		t.Errorf("String() = %q", got)
	}

	unpaved := &Twist{ID: 9, Name: "Denver Ridge", IsPaved: false}
	if !strings.Contains(unpaved.String(), "Unpaved") {
		t.Errorf("String() = %q, want Unpaved marker", unpaved.String())
	}
}

func TestCriteriaFor(t *testing.T) {
	paved := CriteriaFor(true)
	if len(paved) != 5 {
		t.Fatalf("paved criteria count = %d, want 5", len(paved))
	}
	if paved[2].Name != "pavement" {
		t.Errorf("paved[2] = %q, want pavement", paved[2].Name)
	}

	unpaved := CriteriaFor(false)
	if len(unpaved) != 5 {
		t.Fatalf("unpaved criteria count = %d, want 5", len(unpaved))
	}
	if unpaved[2].Name != "surface_consistency" {
		t.Errorf("unpaved[2] = %q, want surface_consistency", unpaved[2].Name)
	}
}

func TestValidateCriteria(t *testing.T) {
	pavedScores := map[string]int{
		"traffic": 3, "scenery": 5, "pavement": 4, "twistyness": 5, "intensity": 4,
	}
	unpavedScores := map[string]int{
		"traffic": 1, "scenery": 4, "surface_consistency": 3, "technicality": 2, "flow": 4,
	}

	tests := []struct {
		name    string
		isPaved bool
		scores  map[string]int
		wantErr bool
	}{
		{"complete paved set", true, pavedScores, false},
		{"complete unpaved set", false, unpavedScores, false},
		{"paved scores against unpaved twist", false, pavedScores, true},
		{"missing criterion", true, map[string]int{"traffic": 3, "scenery": 5, "pavement": 4, "twistyness": 5}, true},
		{"extra criterion", true, map[string]int{
			"traffic": 3, "scenery": 5, "pavement": 4, "twistyness": 5, "intensity": 4, "flow": 2,
		}, true},
		{"value below minimum", true, map[string]int{
			"traffic": 0, "scenery": 5, "pavement": 4, "twistyness": 5, "intensity": 4,
		}, true},
		{"value above maximum", true, map[string]int{
			"traffic": 3, "scenery": 6, "pavement": 4, "twistyness": 5, "intensity": 4,
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCriteria(tt.isPaved, tt.scores)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCriteria() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPavedRatingCriteria(t *testing.T) {
	r := &PavedRating{Traffic: 1, Scenery: 2, Pavement: 3, Twistyness: 4, Intensity: 5}
	got := r.Criteria()

	if err := ValidateCriteria(true, got); err != nil {
		t.Errorf("Criteria() map should validate as complete paved set: %v", err)
	}
	if got["twistyness"] != 4 {
		t.Errorf("twistyness = %d, want 4", got["twistyness"])
	}
}

func TestUnpavedRatingCriteria(t *testing.T) {
	r := &UnpavedRating{Traffic: 2, Scenery: 3, SurfaceConsistency: 4, Technicality: 5, Flow: 1}
	got := r.Criteria()

	if err := ValidateCriteria(false, got); err != nil {
		t.Errorf("Criteria() map should validate as complete unpaved set: %v", err)
	}
	if got["flow"] != 1 {
		t.Errorf("flow = %d, want 1", got["flow"])
	}
}
