package domain

import (
	"strings"
	"testing"
)

func TestSanitizeSnippet(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		expected string
	}{
		{"collapses whitespace", "a  b\t\nc", "a b c"},
		{"trims edges", "  hello  ", "hello"},
		{"empty stays empty", "", ""},
		{"whitespace only becomes empty", " \n\t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeSnippet(tt.in); got != tt.expected {
				t.Errorf("SanitizeSnippet(%q) = %q, want %q", tt.in, got, tt.expected)
			}
		})
	}

	t.Run("caps length", func(t *testing.T) {
		long := strings.Repeat("x", 2000)
		if got := SanitizeSnippet(long); len(got) != 500 {
			t.Errorf("expected 500 runes, got %d", len(got))
		}
	})
}

func TestDedupeHash(t *testing.T) {
	base := DedupeHash("org-1", "hibp", "admin@sentrax.io", "leaked in breach X")

	t.Run("deterministic", func(t *testing.T) {
		if DedupeHash("org-1", "hibp", "admin@sentrax.io", "leaked in breach X") != base {
			t.Error("same inputs produced different hashes")
		}
	})

	t.Run("entity case is irrelevant", func(t *testing.T) {
		if DedupeHash("org-1", "hibp", "ADMIN@SENTRAX.IO", "leaked in breach X") != base {
			t.Error("entity casing changed the hash")
		}
	})

	t.Run("snippet whitespace is irrelevant", func(t *testing.T) {
		if DedupeHash("org-1", "hibp", "admin@sentrax.io", "  leaked   in\nbreach X ") != base {
			t.Error("snippet whitespace changed the hash")
		}
	})

	t.Run("org scoped", func(t *testing.T) {
		if DedupeHash("org-2", "hibp", "admin@sentrax.io", "leaked in breach X") == base {
			t.Error("different org produced the same hash")
		}
	})

	t.Run("source scoped", func(t *testing.T) {
		if DedupeHash("org-1", "dehashed", "admin@sentrax.io", "leaked in breach X") == base {
			t.Error("different source produced the same hash")
		}
	})

	t.Run("field boundaries are unambiguous", func(t *testing.T) {
		a := DedupeHash("org-1", "ab", "c", "snippet")
		b := DedupeHash("org-1", "a", "bc", "snippet")
		if a == b {
			t.Error("shifting bytes across field boundaries produced the same hash")
		}
	})
}
