package tgtext

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello", want: "*hello*"},
		{name: "double asterisks collapse", in: "a **bold** word", want: "*a *bold* word*"},
		{name: "double underscores collapse", in: "an __italic__ word", want: "*an _italic_ word*"},
		{name: "both markers", in: "**a** and __b__", want: "**a* and _b_*"},
		{name: "empty", in: "", want: "**"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Format(tc.in); got != tc.want {
				t.Fatalf("Format(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{name: "empty yields nil", in: "", limit: 4, want: nil},
		{name: "under limit", in: "abc", limit: 4, want: []string{"abc"}},
		{name: "exact limit", in: "abcd", limit: 4, want: []string{"abcd"}},
		{name: "one over", in: "abcde", limit: 4, want: []string{"abcd", "e"}},
		{name: "multiple chunks", in: "abcdefghij", limit: 3, want: []string{"abc", "def", "ghi", "j"}},
		{name: "limit one", in: "ab", limit: 1, want: []string{"a", "b"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Split(tc.in, tc.limit)
			if len(got) != len(tc.want) {
				t.Fatalf("Split(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("chunk %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestSplitCountsRunes(t *testing.T) {
	t.Parallel()

	// Multi-byte runes must never be cut mid-sequence.
	in := strings.Repeat("héллo🚀", 100)
	chunks := Split(in, 7)
	for i, c := range chunks {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk %d is not valid UTF-8: %q", i, c)
		}
		if n := utf8.RuneCountInString(c); n > 7 {
			t.Fatalf("chunk %d has %d runes, want <= 7", i, n)
		}
	}
}

func TestSplitLossless(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"short",
		strings.Repeat("x", 4001),
		strings.Repeat("строка с юникодом ", 500),
	}
	for _, in := range inputs {
		var b strings.Builder
		for _, c := range Split(in, DefaultChunkLen) {
			b.WriteString(c)
		}
		if b.String() != in {
			t.Fatalf("concatenated chunks differ from input (len %d)", len(in))
		}
	}
}

func TestSplitNonPositiveLimit(t *testing.T) {
	t.Parallel()

	got := Split("abc", 0)
	if len(got) != 1 || got[0] != "abc" {
		t.Fatalf("Split with limit 0 = %q, want whole input", got)
	}
}
