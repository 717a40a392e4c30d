package textops

import (
	"fmt"
	"regexp"
	"strings"
)

// CompileRegex compiles an RE2 pattern.
func CompileRegex(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return re, nil
}

// ExpandTemplate converts an RE2 rewrite string into a regexp template.
//
// RE2 rewrites reference groups as \0..\9 and escape a backslash as \\.
// Everything else is literal, so '$' is doubled for the regexp expander.
func ExpandTemplate(rewrite string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(rewrite); i++ {
		c := rewrite[i]
		switch c {
		case '\\':
			if i+1 >= len(rewrite) {
				return "", fmt.Errorf("rewrite %q: trailing backslash", rewrite)
			}
			i++
			n := rewrite[i]
			switch {
			case n >= '0' && n <= '9':
				b.WriteString("${")
				b.WriteByte(n)
				b.WriteByte('}')
			case n == '\\':
				b.WriteByte('\\')
			default:
				return "", fmt.Errorf("rewrite %q: invalid escape \\%c", rewrite, n)
			}
		case '$':
			b.WriteString("$$")
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// CheckRewrite rejects rewrites that reference a group re does not have.
func CheckRewrite(re *regexp.Regexp, rewrite string) error {
	for i := 0; i+1 < len(rewrite); i++ {
		if rewrite[i] != '\\' {
			continue
		}
		i++
		if n := rewrite[i]; n >= '0' && n <= '9' && int(n-'0') > re.NumSubexp() {
			return fmt.Errorf("rewrite %q: group \\%c exceeds %d groups in %q", rewrite, n, re.NumSubexp(), re)
		}
	}
	return nil
}

// RegexReplace rewrites matches of re in s. template must come from
// ExpandTemplate. With global unset only the leftmost match is replaced.
func RegexReplace(s string, re *regexp.Regexp, template string, global bool) string {
	if global {
		return re.ReplaceAllString(s, template)
	}
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	var dst []byte
	dst = append(dst, s[:loc[0]]...)
	dst = re.ExpandString(dst, template, s, loc)
	dst = append(dst, s[loc[1]:]...)
	return string(dst)
}

// RegexReplaceAll applies RegexReplace to every element of in.
func RegexReplaceAll(in []string, pattern, rewrite string, global bool) ([]string, error) {
	re, err := CompileRegex(pattern)
	if err != nil {
		return nil, err
	}
	template, err := ExpandTemplate(rewrite)
	if err != nil {
		return nil, err
	}
	if err := CheckRewrite(re, rewrite); err != nil {
		return nil, err
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = RegexReplace(s, re, template, global)
	}
	return out, nil
}
