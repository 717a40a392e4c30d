package textops

import (
	"testing"

	farm "github.com/dgryski/go-farm"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexReplace(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		pattern string
		rewrite string
		global  bool
		want    string
	}{
		{"first space only", "Hello world!", " ", "_", false, "Hello_world!"},
		{"first of many", "Test 1 2 3", " ", "_", false, "Test_1 2 3"},
		{"global", "Test 1 2 3", " ", "_", true, "Test_1_2_3"},
		{"no match", "nospace", " ", "_", false, "nospace"},
		{"back references", "Hello world", `(\w+) (\w+)`, `\2 \1`, false, "world Hello"},
		{"whole match", "abc", "b", `[\0]`, true, "a[b]c"},
		{"literal dollar", "a b", " ", "$1", false, "a$1b"},
		{"escaped backslash", "a b", " ", `\\`, false, `a\b`},
		{"multi-byte", "♠ ♣", " ", "±", true, "♠±♣"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := RegexReplaceAll([]string{tt.in}, tt.pattern, tt.rewrite, tt.global)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out[0])
		})
	}
}

func TestRegexReplaceErrors(t *testing.T) {
	_, err := RegexReplaceAll([]string{"x"}, "(", "_", true)
	require.Error(t, err)

	_, err = ExpandTemplate(`bad\`)
	require.Error(t, err)

	_, err = ExpandTemplate(`\q`)
	require.Error(t, err)
}

func TestCheckRewrite(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		rewrite string
		wantErr bool
	}{
		{"whole match without groups", " ", `[\0]`, false},
		{"last group", `(\w+) (\w+)`, `\2`, false},
		{"group past the end", `(\w+)`, `\3`, true},
		{"group with no groups", " ", `\1`, true},
		{"escaped backslash then digit", " ", `\\1`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := CompileRegex(tt.pattern)
			require.NoError(t, err)
			err = CheckRewrite(re, tt.rewrite)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	_, err := RegexReplaceAll([]string{"a b"}, `(\w)`, `\3`, false)
	require.Error(t, err)
}

func TestJoin(t *testing.T) {
	out, err := Join([][]string{{"a", "x"}, {"b", "y"}, {"c", "z"}}, "±")
	require.NoError(t, err)
	assert.Equal(t, []string{"a±b±c", "x±y±z"}, out)

	_, err = Join([][]string{{"a"}, {"b", "c"}}, "")
	require.Error(t, err)
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"Test", "1", "2", "3"}, Split("Test 1 2 3", " ", -1))
	assert.Equal(t, []string{"a", "", "b"}, Split("a  b", " ", -1))
	assert.Equal(t, []string{"Test", "1 2 3"}, Split("Test 1 2 3", " ", 1))
	assert.Equal(t, []string{"a b"}, Split("a b", " ", 0))
	assert.Empty(t, Split("", " ", -1))

	assert.Equal(t, []string{"a", "b"}, SplitWhitespace("  a \t b\n"))
	assert.Equal(t, []string{"a", "b c  d"}, SplitWhitespaceN("  a   b c  d", 1))
	assert.Equal(t, []string{"a", "b"}, SplitWhitespaceN("a b ", 5))
	assert.Equal(t, []string{"a", " ", "b"}, SplitBytes("a b", false))
	assert.Equal(t, []string{"a", "b"}, SplitBytes("a b", true))
}

func TestFingerprintIsByteLevel(t *testing.T) {
	// U+2660 U+2663 encode to six UTF-8 bytes.
	raw := []byte{0xe2, 0x99, 0xa0, 0xe2, 0x99, 0xa3}
	assert.Equal(t, farm.Fingerprint64(raw), Fingerprint64("♠♣"))
	assert.Equal(t, int64(farm.Fingerprint64(raw)%20), HashBucket("♠♣", 20)) //nolint:gosec // bounded by 20.
}

func TestHashBucketProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("bucket is stable and in range", prop.ForAll(
		func(s string, n int64) bool {
			b := HashBucket(s, n)
			return b >= 0 && b < n && b == HashBucket(s, n)
		},
		gen.AnyString(),
		gen.Int64Range(1, 1<<20),
	))

	properties.TestingRun(t)
}

func TestCaseMapping(t *testing.T) {
	assert.Equal(t, "HELLO ♠ WORLD", ASCIIUpper("Hello ♠ world"))
	assert.Equal(t, "hello ♠ world", ASCIILower("HeLLo ♠ WORLD"))
	// Non-ASCII letters are untouched.
	assert.Equal(t, "ÄB", ASCIIUpper("Äb"))
	assert.Equal(t, []string{"A", "B"}, Map([]string{"a", "b"}, ASCIIUpper))
}
