package tui

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"zero width", "anything", 0, ""},
		{"fits", "short", 10, "short"},
		{"exact", "exact", 5, "exact"},
		{"truncated", "a longer title", 9, "a long..."},
		{"tiny width", "abcdef", 3, "abc"},
		{"multi-byte", strings.Repeat("ü", 20), 10, strings.Repeat("ü", 7) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateText(tt.in, tt.width)
			if got != tt.want {
				t.Errorf("truncateText(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncateText produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four five", 9)
	for _, line := range strings.Split(got, "\n") {
		if len([]rune(line)) > 9 {
			t.Errorf("line %q exceeds width", line)
		}
	}
	if wrapText("", 10) != "" {
		t.Error("empty input should wrap to empty output")
	}
	if wrapText("keep\nas one\nparagraph", 80) != "keep as one paragraph" {
		t.Error("line breaks should collapse into spaces")
	}
}
