// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package visstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

// newTestStore returns a store backed by an in-memory BadgerDB.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close badger: %v", err)
		}
	})

	return NewWithDB(db)
}

func mustGet(t *testing.T, s *Store, userID string) ([]int64, bool) {
	t.Helper()

	ids, found, err := s.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", userID, err)
	}
	return ids, found
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGetUnstored(t *testing.T) {
	store := newTestStore(t)

	ids, found := mustGet(t, store, "rider-1")
	if found {
		t.Error("Get on unstored rider reported found=true")
	}
	if len(ids) != 0 {
		t.Errorf("Get on unstored rider returned %v, want empty", ids)
	}
}

func TestSetVisibleAddAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{5, 2, 9} {
		if err := store.SetVisible(ctx, "rider-1", id, true); err != nil {
			t.Fatalf("SetVisible(%d, true) failed: %v", id, err)
		}
	}

	ids, found := mustGet(t, store, "rider-1")
	if !found {
		t.Fatal("Get reported found=false after adds")
	}
	if want := []int64{5, 2, 9}; !equalIDs(ids, want) {
		t.Errorf("Get returned %v, want %v (insertion order)", ids, want)
	}
}

func TestSetVisibleAddIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.SetVisible(ctx, "rider-1", 7, true); err != nil {
			t.Fatalf("SetVisible attempt %d failed: %v", i, err)
		}
	}
	if err := store.SetVisible(ctx, "rider-1", 3, true); err != nil {
		t.Fatalf("SetVisible(3, true) failed: %v", err)
	}
	if err := store.SetVisible(ctx, "rider-1", 7, true); err != nil {
		t.Fatalf("re-add of existing id failed: %v", err)
	}

	ids, _ := mustGet(t, store, "rider-1")
	if want := []int64{7, 3}; !equalIDs(ids, want) {
		t.Errorf("Get returned %v, want %v", ids, want)
	}
}

func TestSetVisibleHide(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetVisible(ctx, "rider-1", 1, true); err != nil {
		t.Fatalf("SetVisible failed: %v", err)
	}
	if err := store.SetVisible(ctx, "rider-1", 2, true); err != nil {
		t.Fatalf("SetVisible failed: %v", err)
	}
	if err := store.SetVisible(ctx, "rider-1", 1, false); err != nil {
		t.Fatalf("SetVisible(1, false) failed: %v", err)
	}

	ids, found := mustGet(t, store, "rider-1")
	if !found {
		t.Fatal("Get reported found=false after hide")
	}
	if want := []int64{2}; !equalIDs(ids, want) {
		t.Errorf("Get returned %v, want %v", ids, want)
	}

	// Hiding an id that is not in the set changes nothing.
	if err := store.SetVisible(ctx, "rider-1", 42, false); err != nil {
		t.Fatalf("hide of absent id failed: %v", err)
	}
	ids, _ = mustGet(t, store, "rider-1")
	if want := []int64{2}; !equalIDs(ids, want) {
		t.Errorf("Get returned %v after no-op hide, want %v", ids, want)
	}
}

func TestFirstHideMaterializesEmptySet(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetVisible(context.Background(), "rider-1", 9, false); err != nil {
		t.Fatalf("SetVisible(9, false) failed: %v", err)
	}

	ids, found := mustGet(t, store, "rider-1")
	if !found {
		t.Error("first hide did not materialize a stored set")
	}
	if len(ids) != 0 {
		t.Errorf("Get returned %v, want empty set", ids)
	}
}

func TestSetsAreIsolatedPerRider(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetVisible(ctx, "rider-a", 1, true); err != nil {
		t.Fatalf("SetVisible failed: %v", err)
	}

	if _, found := mustGet(t, store, "rider-b"); found {
		t.Error("rider-b has a stored set without ever toggling")
	}
	ids, _ := mustGet(t, store, "rider-a")
	if want := []int64{1}; !equalIDs(ids, want) {
		t.Errorf("rider-a set = %v, want %v", ids, want)
	}
}

func TestRemoveTwist(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := map[string][]int64{
		"rider-1": {1, 2},
		"rider-2": {2, 3},
		"rider-3": {1},
	}
	for userID, ids := range seed {
		for _, id := range ids {
			if err := store.SetVisible(ctx, userID, id, true); err != nil {
				t.Fatalf("seed SetVisible(%q, %d) failed: %v", userID, id, err)
			}
		}
	}

	affected, err := store.RemoveTwist(ctx, 2)
	if err != nil {
		t.Fatalf("RemoveTwist(2) failed: %v", err)
	}
	if affected != 2 {
		t.Errorf("RemoveTwist(2) affected %d riders, want 2", affected)
	}

	want := map[string][]int64{
		"rider-1": {1},
		"rider-2": {3},
		"rider-3": {1},
	}
	for userID, wantIDs := range want {
		ids, found := mustGet(t, store, userID)
		if !found {
			t.Errorf("rider %q lost their stored set", userID)
			continue
		}
		if !equalIDs(ids, wantIDs) {
			t.Errorf("rider %q set = %v, want %v", userID, ids, wantIDs)
		}
	}

	// Removing an id nobody shows is a no-op.
	affected, err = store.RemoveTwist(ctx, 99)
	if err != nil {
		t.Fatalf("RemoveTwist(99) failed: %v", err)
	}
	if affected != 0 {
		t.Errorf("RemoveTwist(99) affected %d riders, want 0", affected)
	}
}

func TestDeleteUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetVisible(ctx, "rider-1", 1, true); err != nil {
		t.Fatalf("SetVisible failed: %v", err)
	}

	if err := store.DeleteUser(ctx, "rider-1"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, found := mustGet(t, store, "rider-1"); found {
		t.Error("stored set survived DeleteUser")
	}

	// Repeat deletes and deletes of unknown riders succeed.
	if err := store.DeleteUser(ctx, "rider-1"); err != nil {
		t.Errorf("second DeleteUser failed: %v", err)
	}
	if err := store.DeleteUser(ctx, "never-seen"); err != nil {
		t.Errorf("DeleteUser of unknown rider failed: %v", err)
	}
}

func TestCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count = %d on empty store, want 0", count)
	}

	if err := store.SetVisible(ctx, "rider-1", 1, true); err != nil {
		t.Fatalf("SetVisible failed: %v", err)
	}
	if err := store.SetVisible(ctx, "rider-2", 1, true); err != nil {
		t.Fatalf("SetVisible failed: %v", err)
	}
	if err := store.SetVisible(ctx, "rider-2", 2, true); err != nil {
		t.Fatalf("SetVisible failed: %v", err)
	}

	count, err = store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "visstore")
	ctx := context.Background()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.SetVisible(ctx, "rider-1", 11, true); err != nil {
		t.Fatalf("SetVisible failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() {
		if err := reopened.Close(); err != nil {
			t.Errorf("close reopened store: %v", err)
		}
	}()

	ids, found := mustGet(t, reopened, "rider-1")
	if !found {
		t.Fatal("stored set did not survive reopen")
	}
	if want := []int64{11}; !equalIDs(ids, want) {
		t.Errorf("Get after reopen = %v, want %v", ids, want)
	}
}

func TestCloseOnSharedDBIsNoOp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Close(); err != nil {
		t.Fatalf("Close on shared-DB store failed: %v", err)
	}

	// The shared database stays open for other consumers.
	if err := store.SetVisible(ctx, "rider-1", 1, true); err != nil {
		t.Errorf("SetVisible after no-op Close failed: %v", err)
	}
}

func TestRunGC(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "visstore"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	}()

	if err := store.SetVisible(context.Background(), "rider-1", 1, true); err != nil {
		t.Fatalf("SetVisible failed: %v", err)
	}

	// ErrNoRewrite is the normal outcome on a small store.
	if err := store.RunGC(); err != nil {
		t.Errorf("RunGC failed: %v", err)
	}
}
