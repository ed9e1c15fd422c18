package transform

import "testing"

func TestSanitizerClean(t *testing.T) {
	tests := []struct {
		name      string
		sanitizer Sanitizer
		input     string
		want      string
	}{
		{name: "ansi colors", sanitizer: DefaultSanitizer(), input: "\x1b[31mred\x1b[0m\n", want: "red\n"},
		{name: "control chars", sanitizer: DefaultSanitizer(), input: "a\x07b\tc\x00\r\n", want: "ab\tc\r\n"},
		{name: "osc title", sanitizer: DefaultSanitizer(), input: "\x1b]0;title\x07ok", want: "ok"},
		{name: "disabled", sanitizer: Sanitizer{}, input: "\x1b[1mx", want: "\x1b[1mx"},
		{name: "no truncation", sanitizer: Sanitizer{MaxChars: 2, StripANSI: true}, input: "line one\nline two", want: "line one\nline two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sanitizer.Clean(tt.input); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSanitizerTruncate(t *testing.T) {
	tests := []struct {
		name      string
		sanitizer Sanitizer
		input     string
		want      string
		truncated bool
	}{
		{name: "truncate runes", sanitizer: Sanitizer{MaxChars: 3}, input: "héllo", want: "hél", truncated: true},
		{name: "within limit", sanitizer: Sanitizer{MaxChars: 5}, input: "héllo", want: "héllo"},
		{name: "disabled", sanitizer: Sanitizer{}, input: "héllo", want: "héllo"},
		{name: "keeps escapes", sanitizer: DefaultSanitizer(), input: "\x1b[1mx", want: "\x1b[1mx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := tt.sanitizer.Truncate(tt.input)
			if got != tt.want || truncated != tt.truncated {
				t.Fatalf("expected %q (%v), got %q (%v)", tt.want, tt.truncated, got, truncated)
			}
		})
	}
}
