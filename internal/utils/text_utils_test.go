package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(5, zap.NewNop())

	if got := tp.TruncateText("abc"); got != "abc" {
		t.Errorf("short text: got %q", got)
	}

	got := tp.TruncateText("abcdéfgh")
	if !strings.HasPrefix(got, "abcd\n") {
		t.Errorf("truncated text: got %q, want cut before the split rune", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated text is not valid UTF-8: %q", got)
	}

	unlimited := NewTextProcessor(0, zap.NewNop())
	if got := unlimited.TruncateText(strings.Repeat("x", 100)); len(got) != 100 {
		t.Errorf("unlimited: got %d bytes, want 100", len(got))
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(0, zap.NewNop())

	got := tp.SanitizeUTF8("ok\xffvalue")
	if got != "okvalue" {
		t.Errorf("got %q, want %q", got, "okvalue")
	}
}

func TestNormalize(t *testing.T) {
	tp := NewTextProcessor(0, zap.NewNop())

	decomposed := "cafe\u0301"
	if got := tp.Normalize(decomposed); got != "caf\u00e9" {
		t.Errorf("got %q, want composed form", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"hello", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d): got %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
