// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mototwist/mototwist/internal/models"
)

func TestInsertPavedRatingAndList(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := seedUser(t, db, "Alice")
	rater := seedUser(t, db, "Bob")
	twist := seedTwist(t, db, author, "Rated Run", true, models.LatLng{Lat: 48.0, Lng: 16.0})

	rating := &models.PavedRating{
		TwistID:    twist.ID,
		AuthorID:   rater.ID,
		RatingDate: time.Date(2026, 5, 12, 0, 0, 0, 0, time.UTC),
		Traffic:    2, Scenery: 5, Pavement: 4, Twistyness: 5, Intensity: 4,
	}
	if err := db.InsertPavedRating(ctx, rating); err != nil {
		t.Fatalf("InsertPavedRating failed: %v", err)
	}
	if rating.ID <= 0 {
		t.Fatalf("InsertPavedRating did not assign an ID, got %d", rating.ID)
	}

	resp, err := db.ListRatings(ctx, twist.ID, true, rater)
	if err != nil {
		t.Fatalf("ListRatings failed: %v", err)
	}

	if resp.TwistID != twist.ID {
		t.Errorf("TwistID = %d, want %d", resp.TwistID, twist.ID)
	}
	if !resp.IsPaved {
		t.Error("IsPaved = false, want true")
	}
	if len(resp.Criteria) != len(models.PavedCriteria) {
		t.Errorf("got %d criteria, want %d", len(resp.Criteria), len(models.PavedCriteria))
	}
	if len(resp.Ratings) != 1 {
		t.Fatalf("got %d ratings, want 1", len(resp.Ratings))
	}

	item := resp.Ratings[0]
	if item.ID != rating.ID {
		t.Errorf("rating ID = %d, want %d", item.ID, rating.ID)
	}
	if item.AuthorName != "Bob" {
		t.Errorf("AuthorName = %q, want %q", item.AuthorName, "Bob")
	}
	if got := item.RatingDate.Format("2006-01-02"); got != "2026-05-12" {
		t.Errorf("RatingDate = %s, want 2026-05-12", got)
	}
	if !item.CanDelete {
		t.Error("rater should be able to delete their own rating")
	}

	want := map[string]int{"traffic": 2, "scenery": 5, "pavement": 4, "twistyness": 5, "intensity": 4}
	for name, value := range want {
		if item.Criteria[name] != value {
			t.Errorf("criteria[%q] = %d, want %d", name, item.Criteria[name], value)
		}
	}
}

func TestInsertUnpavedRatingAndList(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := seedUser(t, db, "Alice")
	twist := seedTwist(t, db, author, "Gravel Rated", false, models.LatLng{Lat: 48.0, Lng: 16.0})

	rating := &models.UnpavedRating{
		TwistID:  twist.ID,
		AuthorID: author.ID,
		Traffic:  1, Scenery: 4, SurfaceConsistency: 3, Technicality: 5, Flow: 2,
	}
	if err := db.InsertUnpavedRating(ctx, rating); err != nil {
		t.Fatalf("InsertUnpavedRating failed: %v", err)
	}
	if rating.RatingDate.IsZero() {
		t.Error("InsertUnpavedRating did not default RatingDate")
	}

	resp, err := db.ListRatings(ctx, twist.ID, false, author)
	if err != nil {
		t.Fatalf("ListRatings failed: %v", err)
	}
	if resp.IsPaved {
		t.Error("IsPaved = true, want false")
	}
	if len(resp.Ratings) != 1 {
		t.Fatalf("got %d ratings, want 1", len(resp.Ratings))
	}

	want := map[string]int{"traffic": 1, "scenery": 4, "surface_consistency": 3, "technicality": 5, "flow": 2}
	for name, value := range want {
		if resp.Ratings[0].Criteria[name] != value {
			t.Errorf("criteria[%q] = %d, want %d", name, resp.Ratings[0].Criteria[name], value)
		}
	}
}

func TestListRatingsOrderAndPermissions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := seedUser(t, db, "Alice")
	other := seedUser(t, db, "Bob")
	admin := seedUser(t, db, "Root")
	admin.Role = models.RoleAdmin
	twist := seedTwist(t, db, author, "Multi Rated", true, models.LatLng{Lat: 48.0, Lng: 16.0})

	older := &models.PavedRating{
		TwistID: twist.ID, AuthorID: author.ID,
		RatingDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Traffic:    3, Scenery: 3, Pavement: 3, Twistyness: 3, Intensity: 3,
	}
	newer := &models.PavedRating{
		TwistID: twist.ID, AuthorID: other.ID,
		RatingDate: time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC),
		Traffic:    4, Scenery: 4, Pavement: 4, Twistyness: 4, Intensity: 4,
	}
	if err := db.InsertPavedRating(ctx, older); err != nil {
		t.Fatalf("InsertPavedRating failed: %v", err)
	}
	if err := db.InsertPavedRating(ctx, newer); err != nil {
		t.Fatalf("InsertPavedRating failed: %v", err)
	}

	resp, err := db.ListRatings(ctx, twist.ID, true, other)
	if err != nil {
		t.Fatalf("ListRatings failed: %v", err)
	}
	if len(resp.Ratings) != 2 {
		t.Fatalf("got %d ratings, want 2", len(resp.Ratings))
	}

	// Newest first.
	if resp.Ratings[0].ID != newer.ID || resp.Ratings[1].ID != older.ID {
		t.Errorf("ratings out of order: got [%d %d], want [%d %d]",
			resp.Ratings[0].ID, resp.Ratings[1].ID, newer.ID, older.ID)
	}

	// Bob may delete only his own rating.
	if !resp.Ratings[0].CanDelete {
		t.Error("Bob should be able to delete his own rating")
	}
	if resp.Ratings[1].CanDelete {
		t.Error("Bob should not be able to delete Alice's rating")
	}

	// Admins may delete every rating; anonymous viewers none.
	adminResp, err := db.ListRatings(ctx, twist.ID, true, admin)
	if err != nil {
		t.Fatalf("ListRatings failed: %v", err)
	}
	for _, item := range adminResp.Ratings {
		if !item.CanDelete {
			t.Errorf("admin should be able to delete rating %d", item.ID)
		}
	}

	anonResp, err := db.ListRatings(ctx, twist.ID, true, nil)
	if err != nil {
		t.Fatalf("ListRatings failed: %v", err)
	}
	for _, item := range anonResp.Ratings {
		if item.CanDelete {
			t.Errorf("anonymous viewer should not be able to delete rating %d", item.ID)
		}
	}
}

func TestListRatingsEmpty(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := seedUser(t, db, "Alice")
	twist := seedTwist(t, db, author, "Unrated Run", true, models.LatLng{Lat: 48.0, Lng: 16.0})

	resp, err := db.ListRatings(ctx, twist.ID, true, nil)
	if err != nil {
		t.Fatalf("ListRatings failed: %v", err)
	}
	if resp.Ratings == nil {
		t.Error("Ratings should be an empty slice, not nil")
	}
	if len(resp.Ratings) != 0 {
		t.Errorf("got %d ratings, want 0", len(resp.Ratings))
	}
	if len(resp.Criteria) == 0 {
		t.Error("criteria descriptions should accompany an empty listing")
	}
}

func TestRatingAuthorID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := seedUser(t, db, "Alice")
	twist := seedTwist(t, db, author, "Authored Rating", false, models.LatLng{Lat: 48.0, Lng: 16.0})

	rating := &models.UnpavedRating{
		TwistID: twist.ID, AuthorID: author.ID,
		Traffic: 3, Scenery: 3, SurfaceConsistency: 3, Technicality: 3, Flow: 3,
	}
	if err := db.InsertUnpavedRating(ctx, rating); err != nil {
		t.Fatalf("InsertUnpavedRating failed: %v", err)
	}

	got, err := db.RatingAuthorID(ctx, rating.ID, false)
	if err != nil {
		t.Fatalf("RatingAuthorID failed: %v", err)
	}
	if got != author.ID {
		t.Errorf("RatingAuthorID = %q, want %q", got, author.ID)
	}

	// The paved table has no such row.
	if _, err := db.RatingAuthorID(ctx, rating.ID, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong-table lookup error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRating(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := seedUser(t, db, "Alice")
	twist := seedTwist(t, db, author, "Delete Rated", true, models.LatLng{Lat: 48.0, Lng: 16.0})

	first := &models.PavedRating{
		TwistID: twist.ID, AuthorID: author.ID,
		Traffic: 3, Scenery: 3, Pavement: 3, Twistyness: 3, Intensity: 3,
	}
	second := &models.PavedRating{
		TwistID: twist.ID, AuthorID: author.ID,
		Traffic: 4, Scenery: 4, Pavement: 4, Twistyness: 4, Intensity: 4,
	}
	if err := db.InsertPavedRating(ctx, first); err != nil {
		t.Fatalf("InsertPavedRating failed: %v", err)
	}
	if err := db.InsertPavedRating(ctx, second); err != nil {
		t.Fatalf("InsertPavedRating failed: %v", err)
	}

	if err := db.DeleteRating(ctx, twist.ID, first.ID, true); err != nil {
		t.Fatalf("DeleteRating failed: %v", err)
	}

	count, err := db.CountRatings(ctx, twist.ID, true)
	if err != nil {
		t.Fatalf("CountRatings failed: %v", err)
	}
	if count != 1 {
		t.Errorf("remaining ratings = %d, want 1", count)
	}

	// Repeat deletion reports not found.
	if err := db.DeleteRating(ctx, twist.ID, first.ID, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteRating error = %v, want ErrNotFound", err)
	}

	// A rating is only reachable through its own twist.
	if err := db.DeleteRating(ctx, twist.ID+1, second.ID, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong-twist DeleteRating error = %v, want ErrNotFound", err)
	}
}

func TestRatingIDsIndependentPerSurface(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	author := seedUser(t, db, "Alice")
	paved := seedTwist(t, db, author, "Paved IDs", true, models.LatLng{Lat: 48.0, Lng: 16.0})
	unpaved := seedTwist(t, db, author, "Unpaved IDs", false, models.LatLng{Lat: 48.1, Lng: 16.1})

	p := &models.PavedRating{
		TwistID: paved.ID, AuthorID: author.ID,
		Traffic: 1, Scenery: 1, Pavement: 1, Twistyness: 1, Intensity: 1,
	}
	u := &models.UnpavedRating{
		TwistID: unpaved.ID, AuthorID: author.ID,
		Traffic: 1, Scenery: 1, SurfaceConsistency: 1, Technicality: 1, Flow: 1,
	}
	if err := db.InsertPavedRating(ctx, p); err != nil {
		t.Fatalf("InsertPavedRating failed: %v", err)
	}
	if err := db.InsertUnpavedRating(ctx, u); err != nil {
		t.Fatalf("InsertUnpavedRating failed: %v", err)
	}

	// Each table draws from its own sequence, so both start at 1.
	if p.ID != 1 || u.ID != 1 {
		t.Errorf("first rating ids = %d/%d, want 1/1", p.ID, u.ID)
	}
}
