package util

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFileName(t *testing.T) {
	got, err := SanitizeFileName(" a/b\\c.json ")
	if err != nil {
		t.Fatalf("SanitizeFileName: %v", err)
	}
	if got != "a_b_c.json" {
		t.Fatalf("unexpected name %q", got)
	}
	if _, err := SanitizeFileName("../x"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestSanitizeMessage(t *testing.T) {
	got := SanitizeMessage("line one\nline\ttwo  ")
	if got != "line one line two" {
		t.Fatalf("unexpected message %q", got)
	}

	long := SanitizeMessage(strings.Repeat("é", 600))
	if utf8.RuneCountInString(long) != 500 {
		t.Fatalf("expected 500 runes, got %d", utf8.RuneCountInString(long))
	}
}
