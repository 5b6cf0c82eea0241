package ingestion

import (
	"strings"
	"testing"
)

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text unchanged",
			input: "just text",
			want:  "just text",
		},
		{
			name:  "paragraphs become newlines",
			input: "<p>first</p><p>second</p>",
			want:  "first\n\nsecond",
		},
		{
			name:  "tags stripped",
			input: `<div class="x"><strong>bold</strong> and <em>italic</em></div>`,
			want:  "bold and italic",
		},
		{
			name:  "line breaks normalized",
			input: "one<br>two<br/>three<br />four",
			want:  "one\ntwo\nthree\nfour",
		},
		{
			name:  "carriage returns normalized",
			input: "a\r\nb\rc",
			want:  "a\nb\nc",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanContent(tt.input)
			if got != tt.want {
				t.Fatalf("CleanContent(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanContentCollapsesBlankLines(t *testing.T) {
	got := CleanContent("a\n\n\n\n\nb")
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("triple newline left in output: %q", got)
	}
}
