package util

import (
	"strings"
	"testing"
)

func TestHideAPIKey(t *testing.T) {
	cases := map[string]string{
		"sk-ant-1234567890": "sk-a...7890",
		"abcdefg":           "ab...fg",
		"abc":               "a...c",
		"ab":                "ab",
	}
	for in, want := range cases {
		if got := HideAPIKey(in); got != want {
			t.Fatalf("HideAPIKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskSensitiveQuery(t *testing.T) {
	got := MaskSensitiveQuery("apikey=sk-ant-1234567890&page=2")
	if strings.Contains(got, "1234567890") || !strings.Contains(got, "page=2") {
		t.Fatalf("unexpected masked query %q", got)
	}
	if got := MaskSensitiveQuery("page=2&sort=asc"); got != "page=2&sort=asc" {
		t.Fatalf("non-sensitive query changed: %q", got)
	}
	if got := MaskSensitiveQuery("Access_Token=abcdefghij"); got != "Access_Token=abcd...ghij" {
		t.Fatalf("token not masked: %q", got)
	}
	if got := MaskSensitiveQuery(""); got != "" {
		t.Fatalf("empty query changed: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("short string changed: %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := Truncate("→→→→", 2); got != "→→" {
		t.Fatalf("multi-byte truncation broke runes: %q", got)
	}
	if got := Truncate("x", 0); got != "" {
		t.Fatalf("zero limit should return empty, got %q", got)
	}
}
