// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package models

import (
	"fmt"
	"time"
)

// Rating criterion value bounds. Every criterion in both sets is scored on
// the same 1..5 scale.
const (
	CriterionMinValue = 1
	CriterionMaxValue = 5
)

// RatingCriterion describes a single scoring dimension: its snake_case name
// (which doubles as the database column and JSON key) and a rider-facing
// description.
type RatingCriterion struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

// PavedCriteria lists the scoring dimensions for paved Twists, in display
// order. The Name values must match the paved_ratings columns.
var PavedCriteria = []RatingCriterion{
	{Name: "traffic", Desc: "Level of vehicle traffic on the road"},
	{Name: "scenery", Desc: "Visual appeal of surroundings"},
	{Name: "pavement", Desc: "Quality of road surface"},
	{Name: "twistyness", Desc: "Tightness and frequency of turns"},
	{Name: "intensity", Desc: "Overall riding energy the road draws out, from mellow to adrenaline-pumping"},
}

// UnpavedCriteria lists the scoring dimensions for unpaved Twists, in
// display order. The Name values must match the unpaved_ratings columns.
var UnpavedCriteria = []RatingCriterion{
	{Name: "traffic", Desc: "Frequency of other vehicles or trail users"},
	{Name: "scenery", Desc: "Visual appeal of surroundings"},
	{Name: "surface_consistency", Desc: "Predictability of traction across the route"},
	{Name: "technicality", Desc: "Challenge level from terrain features like rocks, ruts, sand, or mud"},
	{Name: "flow", Desc: "Smoothness of the trail without constant disruptions or awkward sections"},
}

// CriteriaFor returns the criteria set matching a Twist's surface class.
func CriteriaFor(isPaved bool) []RatingCriterion {
	if isPaved {
		return PavedCriteria
	}
	return UnpavedCriteria
}

// PavedRating is one rider's scoring of a paved Twist on a given date.
// A rider may rate the same Twist multiple times (e.g. after a resurfacing);
// each rating is an independent row.
type PavedRating struct {
	ID         int64     `json:"id"`
	TwistID    int64     `json:"twist_id"`
	AuthorID   string    `json:"author_id"`
	RatingDate time.Time `json:"rating_date"`

	Traffic    int `json:"traffic"`
	Scenery    int `json:"scenery"`
	Pavement   int `json:"pavement"`
	Twistyness int `json:"twistyness"`
	Intensity  int `json:"intensity"`
}

// Criteria returns the rating's scores keyed by criterion name.
func (r *PavedRating) Criteria() map[string]int {
	return map[string]int{
		"traffic":    r.Traffic,
		"scenery":    r.Scenery,
		"pavement":   r.Pavement,
		"twistyness": r.Twistyness,
		"intensity":  r.Intensity,
	}
}

// UnpavedRating is one rider's scoring of an unpaved Twist on a given date.
type UnpavedRating struct {
	ID         int64     `json:"id"`
	TwistID    int64     `json:"twist_id"`
	AuthorID   string    `json:"author_id"`
	RatingDate time.Time `json:"rating_date"`

	Traffic            int `json:"traffic"`
	Scenery            int `json:"scenery"`
	SurfaceConsistency int `json:"surface_consistency"`
	Technicality       int `json:"technicality"`
	Flow               int `json:"flow"`
}

// Criteria returns the rating's scores keyed by criterion name.
func (r *UnpavedRating) Criteria() map[string]int {
	return map[string]int{
		"traffic":             r.Traffic,
		"scenery":             r.Scenery,
		"surface_consistency": r.SurfaceConsistency,
		"technicality":        r.Technicality,
		"flow":                r.Flow,
	}
}

// ValidateCriteria checks that a submitted criteria map contains exactly the
// criteria set for the Twist's surface class, with every value inside the
// 1..5 bounds. Extra keys, missing keys, and out-of-range values are all
// rejected so a paved scoring can never land in the unpaved table or vice
// versa.
func ValidateCriteria(isPaved bool, scores map[string]int) error {
	want := CriteriaFor(isPaved)
	if len(scores) != len(want) {
		return fmt.Errorf("rating requires exactly %d criteria, got %d", len(want), len(scores))
	}
	for _, c := range want {
		v, ok := scores[c.Name]
		if !ok {
			return fmt.Errorf("rating is missing criterion %q", c.Name)
		}
		if v < CriterionMinValue || v > CriterionMaxValue {
			return fmt.Errorf("criterion %q value %d out of range [%d,%d]", c.Name, v, CriterionMinValue, CriterionMaxValue)
		}
	}
	return nil
}

// RatingListItem is a single rating row in the per-Twist rating listing,
// shaped for display: author name resolved, date pre-attached, scores keyed
// by criterion name.
type RatingListItem struct {
	ID         int64          `json:"id"`
	AuthorName string         `json:"author_name"`
	RatingDate time.Time      `json:"rating_date"`
	CanDelete  bool           `json:"can_delete"`
	Criteria   map[string]int `json:"criteria"`
}

// RatingsResponse wraps a Twist's ratings with the criteria descriptions so
// clients can label columns without hardcoding the criteria sets.
type RatingsResponse struct {
	TwistID  int64             `json:"twist_id"`
	IsPaved  bool              `json:"is_paved"`
	Ratings  []RatingListItem  `json:"ratings"`
	Criteria []RatingCriterion `json:"criteria"`
}
