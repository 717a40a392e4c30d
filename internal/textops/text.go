package textops

import (
	"fmt"
	"strings"
	"unicode/utf8"

	farm "github.com/dgryski/go-farm"
)

// Join concatenates aligned columns element-wise: out[i] is columns[0][i],
// columns[1][i], ... separated by sep. All columns must have equal length.
func Join(columns [][]string, sep string) ([]string, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	n := len(columns[0])
	for c, col := range columns {
		if len(col) != n {
			return nil, fmt.Errorf("join: column %d has %d elements, want %d", c, len(col), n)
		}
	}
	out := make([]string, n)
	parts := make([]string, len(columns))
	for i := range out {
		for c, col := range columns {
			parts[c] = col[i]
		}
		out[i] = strings.Join(parts, sep)
	}
	return out, nil
}

// Split splits s on every occurrence of sep, keeping empty tokens.
// maxSplit < 0 means unlimited. An empty input yields no tokens.
func Split(s, sep string, maxSplit int) []string {
	if s == "" {
		return nil
	}
	if maxSplit == 0 {
		return []string{s}
	}
	if maxSplit < 0 {
		return strings.Split(s, sep)
	}
	return strings.SplitN(s, sep, maxSplit+1)
}

// SplitWhitespace splits s on runs of ASCII whitespace, dropping empty tokens.
func SplitWhitespace(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r < utf8.RuneSelf && isASCIISpace(byte(r))
	})
}

// SplitWhitespaceN splits s on runs of ASCII whitespace performing at most
// maxSplit splits (unlimited when negative). The remainder after the last
// split keeps its inner whitespace but not its leading whitespace.
func SplitWhitespaceN(s string, maxSplit int) []string {
	if maxSplit < 0 {
		return SplitWhitespace(s)
	}
	var out []string
	i := 0
	for {
		for i < len(s) && isASCIISpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return out
		}
		if len(out) == maxSplit {
			return append(out, s[i:])
		}
		j := i
		for j < len(s) && !isASCIISpace(s[j]) {
			j++
		}
		out = append(out, s[i:j])
		i = j
	}
}

func isASCIISpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\v' || c == '\f' || c == '\r'
}

// SplitBytes splits s into single bytes. With skipEmpty, spaces are dropped.
func SplitBytes(s string, skipEmpty bool) []string {
	out := make([]string, 0, len(s))
	for i := 0; i < len(s); i++ {
		if skipEmpty && s[i] == ' ' {
			continue
		}
		out = append(out, s[i:i+1])
	}
	return out
}

// Fingerprint64 hashes the UTF-8 bytes of s with FarmHash Fingerprint64.
func Fingerprint64(s string) uint64 {
	return farm.Fingerprint64([]byte(s))
}

// HashBucket maps s to [0, numBuckets).
func HashBucket(s string, numBuckets int64) int64 {
	return int64(Fingerprint64(s) % uint64(numBuckets)) //nolint:gosec // G115: result < numBuckets.
}

// ASCIIUpper upper-cases ASCII letters and leaves every other byte alone.
func ASCIIUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

// ASCIILower lower-cases ASCII letters and leaves every other byte alone.
func ASCIILower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

// Map applies fn to every element of in.
func Map(in []string, fn func(string) string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = fn(s)
	}
	return out
}
