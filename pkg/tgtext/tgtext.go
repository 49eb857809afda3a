// Package tgtext prepares completion text for Telegram: markdown
// normalization and fixed-size chunking under the message length limit.
package tgtext

import "strings"

// DefaultChunkLen is the default per-message limit, in runes.
const DefaultChunkLen = 4000

// Format normalizes double markdown markers to Telegram's legacy
// single-character markdown and wraps the whole reply in bold.
func Format(raw string) string {
	s := strings.ReplaceAll(raw, "**", "*")
	s = strings.ReplaceAll(s, "__", "_")
	return "*" + s + "*"
}

// Split slices s into consecutive chunks of at most limit runes each. The
// split is purely positional; the final chunk may be shorter. Concatenating
// the chunks in order reproduces s exactly.
func Split(s string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkLen
	}
	rs := []rune(s)
	if len(rs) == 0 {
		return nil
	}
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	for start := 0; start < len(rs); start += limit {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}
		out = append(out, string(rs[start:end]))
	}
	return out
}
