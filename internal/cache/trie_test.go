// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestTrieInsertAndSearch(t *testing.T) {
	tr := NewTrie()

	if !tr.InsertWithData("Grossglockner High Alpine Road", int64(1)) {
		t.Error("Expected first insert to report new entry")
	}
	if tr.InsertWithData("Grossglockner High Alpine Road", int64(1)) {
		t.Error("Expected repeat insert to report existing entry")
	}

	data, found := tr.Search("Grossglockner High Alpine Road")
	if !found {
		t.Fatal("Expected exact search to find entry")
	}
	if id, ok := data.(int64); !ok || id != 1 {
		t.Errorf("Expected twist id 1, got %v", data)
	}

	// Case-insensitive by default
	if _, found := tr.Search("grossglockner high alpine road"); !found {
		t.Error("Expected case-insensitive search to match")
	}

	if _, found := tr.Search("Stelvio Pass"); found {
		t.Error("Expected miss for unknown name")
	}
}

func TestTrieAutocomplete(t *testing.T) {
	tr := NewTrie()

	names := []string{
		"Grossglockner High Alpine Road",
		"Grossglockner Loop",
		"Gravel Run Kahlenberg",
		"Stelvio Pass",
	}
	for i, name := range names {
		tr.InsertWithData(name, int64(i+1))
	}

	results := tr.Autocomplete("gro")
	if len(results) != 2 {
		t.Fatalf("Expected 2 suggestions for 'gro', got %d", len(results))
	}

	// Equal counts sort alphabetically
	if results[0].Value != "Grossglockner High Alpine Road" {
		t.Errorf("Expected alphabetical first suggestion, got %s", results[0].Value)
	}

	if got := tr.Autocomplete("zzz"); got != nil {
		t.Errorf("Expected nil for prefix with no matches, got %v", got)
	}
}

func TestTrieAutocompleteRanking(t *testing.T) {
	tr := NewTrie()

	tr.Insert("Stelvio Pass")
	tr.Insert("Stelvio Pass") // inserted twice: higher count
	tr.Insert("Stelvio Northern Approach")

	results := tr.Autocomplete("stelvio")
	if len(results) != 2 {
		t.Fatalf("Expected 2 suggestions, got %d", len(results))
	}
	if results[0].Value != "Stelvio Pass" || results[0].Count != 2 {
		t.Errorf("Expected most-inserted name first, got %s (count %d)",
			results[0].Value, results[0].Count)
	}
}

func TestTrieAutocompleteLimit(t *testing.T) {
	tr := NewTrieWithOptions(false, 3)

	for i := 0; i < 10; i++ {
		tr.Insert(fmt.Sprintf("Alpine Route %d", i))
	}

	results := tr.Autocomplete("alpine")
	if len(results) != 3 {
		t.Errorf("Expected maxSuggestions=3 to cap results, got %d", len(results))
	}

	results = tr.AutocompleteWithLimit("alpine", 5)
	if len(results) != 5 {
		t.Errorf("Expected explicit limit of 5, got %d", len(results))
	}
}

func TestTrieHasPrefix(t *testing.T) {
	tr := NewTrie()

	tr.Insert("Stelvio Pass")

	if !tr.HasPrefix("stel") {
		t.Error("Expected prefix stel to exist")
	}
	if tr.HasPrefix("gro") {
		t.Error("Expected prefix gro to not exist")
	}
	if !tr.HasPrefix("") {
		t.Error("Expected empty prefix to match non-empty trie")
	}
}

func TestTrieDelete(t *testing.T) {
	tr := NewTrie()

	tr.InsertWithData("Stelvio Pass", int64(1))
	tr.InsertWithData("Stelvio Northern Approach", int64(2))

	if !tr.Delete("Stelvio Pass") {
		t.Error("Expected Delete to succeed for existing name")
	}
	if tr.Delete("Stelvio Pass") {
		t.Error("Expected Delete to fail for already-removed name")
	}

	if _, found := tr.Search("Stelvio Pass"); found {
		t.Error("Expected deleted name to be gone")
	}
	if _, found := tr.Search("Stelvio Northern Approach"); !found {
		t.Error("Expected sibling name to survive deletion")
	}
	if tr.Size() != 1 {
		t.Errorf("Expected size 1 after delete, got %d", tr.Size())
	}
}

func TestTrieDeleteNonASCII(t *testing.T) {
	tr := NewTrie()

	tr.InsertWithData("Großglockner Hochalpenstraße", int64(1))

	if !tr.Delete("Großglockner Hochalpenstraße") {
		t.Error("Expected Delete to handle multi-byte runes")
	}
	if tr.Size() != 0 {
		t.Errorf("Expected empty trie, got size %d", tr.Size())
	}
}

func TestTrieCaseSensitiveOption(t *testing.T) {
	tr := NewTrieWithOptions(true, 10)

	tr.Insert("Stelvio Pass")

	if _, found := tr.Search("stelvio pass"); found {
		t.Error("Expected case-sensitive trie to miss lowercased query")
	}
	if _, found := tr.Search("Stelvio Pass"); !found {
		t.Error("Expected case-sensitive trie to match exact case")
	}
}

func TestTrieEmptyValues(t *testing.T) {
	tr := NewTrie()

	if tr.Insert("") {
		t.Error("Expected empty string insert to be rejected")
	}
	if _, found := tr.Search(""); found {
		t.Error("Expected empty string search to miss")
	}
	if tr.Delete("") {
		t.Error("Expected empty string delete to fail")
	}
}

func TestTrieGetAll(t *testing.T) {
	tr := NewTrie()

	tr.Insert("B Route")
	tr.Insert("A Route")
	tr.Insert("A Route")

	all := tr.GetAll()
	if len(all) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(all))
	}
	// Count descending, so the twice-inserted name first
	if all[0].Value != "A Route" {
		t.Errorf("Expected A Route first (count 2), got %s", all[0].Value)
	}
}

func TestTrieClear(t *testing.T) {
	tr := NewTrie()

	tr.Insert("Stelvio Pass")
	tr.Clear()

	if tr.Size() != 0 {
		t.Errorf("Expected empty trie after Clear, got %d", tr.Size())
	}
	if _, found := tr.Search("Stelvio Pass"); found {
		t.Error("Expected cleared trie to miss")
	}
}

func TestTrieConcurrentAccess(t *testing.T) {
	tr := NewTrie()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				name := fmt.Sprintf("Route %d-%d", n, j)
				tr.InsertWithData(name, int64(j))
				tr.Search(name)
				tr.Autocomplete("route")
			}
		}(i)
	}
	wg.Wait()

	if tr.Size() != 500 {
		t.Errorf("Expected 500 names, got %d", tr.Size())
	}
}

func BenchmarkTrieAutocomplete(b *testing.B) {
	tr := NewTrie()
	for i := 0; i < 1000; i++ {
		tr.Insert(fmt.Sprintf("Alpine Route %d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.Autocomplete("alpine")
	}
}

func BenchmarkTrieInsert(b *testing.B) {
	tr := NewTrie()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.Insert(fmt.Sprintf("Route %d", i%10000))
	}
}
