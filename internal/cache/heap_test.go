// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMinHeapPushPop(t *testing.T) {
	h := NewMinHeap[string](0)

	now := time.Now()
	h.Push("rider-c", "session-c", now.Add(3*time.Minute))
	h.Push("rider-a", "session-a", now.Add(1*time.Minute))
	h.Push("rider-b", "session-b", now.Add(2*time.Minute))

	// Pop returns oldest first regardless of insertion order
	for _, want := range []string{"rider-a", "rider-b", "rider-c"} {
		entry := h.Pop()
		if entry == nil {
			t.Fatal("Expected entry from Pop, got nil")
		}
		if entry.Key != want {
			t.Errorf("Expected %s, got %s", want, entry.Key)
		}
	}

	if h.Pop() != nil {
		t.Error("Expected nil from empty heap")
	}
}

func TestMinHeapPushUpdatesExisting(t *testing.T) {
	h := NewMinHeap[string](0)

	now := time.Now()
	h.Push("rider-a", "session-a", now)
	h.Push("rider-b", "session-b", now.Add(time.Minute))

	// Re-pushing rider-a with a later timestamp must reorder, not duplicate
	h.Push("rider-a", "session-a2", now.Add(2*time.Minute))

	if h.Len() != 2 {
		t.Errorf("Expected 2 entries after re-push, got %d", h.Len())
	}

	first := h.Pop()
	if first.Key != "rider-b" {
		t.Errorf("Expected rider-b to be oldest after rider-a touch, got %s", first.Key)
	}

	second := h.Pop()
	if second.Value != "session-a2" {
		t.Errorf("Expected updated value session-a2, got %s", second.Value)
	}
}

func TestMinHeapPeek(t *testing.T) {
	h := NewMinHeap[int](0)

	if h.Peek() != nil {
		t.Error("Expected nil Peek on empty heap")
	}

	now := time.Now()
	h.Push("a", 1, now.Add(time.Minute))
	h.Push("b", 2, now)

	entry := h.Peek()
	if entry == nil || entry.Key != "b" {
		t.Errorf("Expected b as oldest, got %v", entry)
	}

	// Peek must not remove
	if h.Len() != 2 {
		t.Errorf("Expected 2 entries after Peek, got %d", h.Len())
	}
}

func TestMinHeapRemove(t *testing.T) {
	h := NewMinHeap[string](0)

	now := time.Now()
	h.Push("a", "va", now)
	h.Push("b", "vb", now.Add(time.Minute))
	h.Push("c", "vc", now.Add(2*time.Minute))

	entry := h.Remove("b")
	if entry == nil || entry.Value != "vb" {
		t.Errorf("Expected removed entry vb, got %v", entry)
	}

	if h.Remove("b") != nil {
		t.Error("Expected nil removing missing key")
	}

	if h.Len() != 2 {
		t.Errorf("Expected 2 entries after remove, got %d", h.Len())
	}

	// Heap order must survive arbitrary removal
	if got := h.Pop().Key; got != "a" {
		t.Errorf("Expected a as oldest, got %s", got)
	}
	if got := h.Pop().Key; got != "c" {
		t.Errorf("Expected c next, got %s", got)
	}
}

func TestMinHeapUpdate(t *testing.T) {
	h := NewMinHeap[string](0)

	now := time.Now()
	h.Push("a", "va", now)
	h.Push("b", "vb", now.Add(time.Minute))

	// Touch "a" to be newest: ordering flips
	if !h.Update("a", now.Add(2*time.Minute)) {
		t.Error("Expected Update to succeed for existing key")
	}
	if h.Update("missing", now) {
		t.Error("Expected Update to fail for missing key")
	}

	if got := h.Pop().Key; got != "b" {
		t.Errorf("Expected b as oldest after touching a, got %s", got)
	}
}

func TestMinHeapPopBefore(t *testing.T) {
	h := NewMinHeap[string](0)

	now := time.Now()
	// Three idle sessions and one recently active
	h.Push("idle-1", "s1", now.Add(-30*time.Minute))
	h.Push("idle-2", "s2", now.Add(-25*time.Minute))
	h.Push("idle-3", "s3", now.Add(-20*time.Minute))
	h.Push("active", "s4", now)

	cutoff := now.Add(-15 * time.Minute)
	expired := h.PopBefore(cutoff)

	if len(expired) != 3 {
		t.Fatalf("Expected 3 expired sessions, got %d", len(expired))
	}

	// Oldest first
	if expired[0].Key != "idle-1" || expired[2].Key != "idle-3" {
		t.Errorf("Expected idle sessions oldest-first, got %s..%s", expired[0].Key, expired[2].Key)
	}

	if h.Len() != 1 {
		t.Errorf("Expected 1 remaining session, got %d", h.Len())
	}
	if h.Peek().Key != "active" {
		t.Errorf("Expected active session to remain, got %s", h.Peek().Key)
	}
}

func TestMinHeapPopBeforeEmpty(t *testing.T) {
	h := NewMinHeap[string](0)

	if got := h.PopBefore(time.Now()); len(got) != 0 {
		t.Errorf("Expected no entries from empty heap, got %d", len(got))
	}
}

func TestMinHeapCapacityEviction(t *testing.T) {
	h := NewMinHeap[int](2)

	now := time.Now()
	if evicted := h.Push("a", 1, now); evicted != nil {
		t.Errorf("Expected no eviction below capacity, got %v", evicted)
	}
	if evicted := h.Push("b", 2, now.Add(time.Minute)); evicted != nil {
		t.Errorf("Expected no eviction at capacity, got %v", evicted)
	}

	// Third push evicts the oldest
	evicted := h.Push("c", 3, now.Add(2*time.Minute))
	if evicted == nil || evicted.Key != "a" {
		t.Errorf("Expected a to be evicted, got %v", evicted)
	}
	if h.Len() != 2 {
		t.Errorf("Expected heap capped at 2, got %d", h.Len())
	}
}

func TestMinHeapClear(t *testing.T) {
	h := NewMinHeap[int](0)

	now := time.Now()
	h.Push("a", 1, now)
	h.Push("b", 2, now)
	h.Clear()

	if h.Len() != 0 {
		t.Errorf("Expected empty heap after Clear, got %d", h.Len())
	}
	if h.Peek() != nil {
		t.Error("Expected nil Peek after Clear")
	}
}

func TestMinHeapConcurrentAccess(t *testing.T) {
	h := NewMinHeap[int](0)

	var wg sync.WaitGroup
	now := time.Now()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := fmt.Sprintf("rider-%d-%d", n, j)
				h.Push(key, j, now.Add(time.Duration(j)*time.Second))
				h.Update(key, now.Add(time.Duration(j+1)*time.Second))
			}
		}(i)
	}
	wg.Wait()

	if h.Len() != 500 {
		t.Errorf("Expected 500 entries, got %d", h.Len())
	}

	// Drain and verify monotonically non-decreasing timestamps
	var last time.Time
	for entry := h.Pop(); entry != nil; entry = h.Pop() {
		if entry.Timestamp.Before(last) {
			t.Fatal("Heap order violated during drain")
		}
		last = entry.Timestamp
	}
}

func BenchmarkMinHeapPush(b *testing.B) {
	h := NewMinHeap[int](0)
	now := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Push(fmt.Sprintf("key-%d", i%1000), i, now.Add(time.Duration(i)*time.Millisecond))
	}
}

func BenchmarkMinHeapPopBefore(b *testing.B) {
	now := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		h := NewMinHeap[int](0)
		for j := 0; j < 100; j++ {
			h.Push(fmt.Sprintf("key-%d", j), j, now.Add(time.Duration(j)*time.Second))
		}
		b.StartTimer()

		h.PopBefore(now.Add(50 * time.Second))
	}
}
