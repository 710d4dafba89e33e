package streamparser

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	attrPattern       = regexp.MustCompile(`([A-Za-z_][\w\-.:]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	argElementPattern = regexp.MustCompile(`(?s)<arg\s+name\s*=\s*(?:"([^"]*)"|'([^']*)')\s*>(.*?)</arg>`)
)

type attribute struct {
	key   string
	value string
}

// parseAttributes returns the quoted attributes of an opening tag body in
// source order. Values are entity-unescaped.
func parseAttributes(s string) []attribute {
	matches := attrPattern.FindAllStringSubmatch(s, -1)
	attrs := make([]attribute, 0, len(matches))
	for _, m := range matches {
		v := m[2]
		if v == "" {
			v = m[3]
		}
		attrs = append(attrs, attribute{key: m[1], value: html.UnescapeString(v)})
	}
	return attrs
}

func attributeValue(attrs []attribute, key string) (string, bool) {
	for _, a := range attrs {
		if a.key == key {
			return a.value, true
		}
	}
	return "", false
}

// parseArgElements extracts <arg name="k">v</arg> elements from a tool body.
// The first occurrence of a name wins.
func parseArgElements(body string) *Metadata {
	args := NewMetadata()
	for _, m := range argElementPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if name == "" {
			continue
		}
		if _, exists := args.Get(name); exists {
			continue
		}
		args.Set(name, html.UnescapeString(m[3]))
	}
	return args
}

// coerceBool accepts true/1/yes and false/0/no, case-insensitively.
func coerceBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

// coercePositiveInt accepts base-10 integers greater than zero.
func coercePositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func isNameRune(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// findTagEnd returns the index of the '>' closing the tag that starts at or
// before from, skipping quoted attribute values. Only the first limit
// characters are searched.
func findTagEnd(rs []rune, from, limit int) int {
	if limit > len(rs) {
		limit = len(rs)
	}
	var quote rune
	for i := from; i < limit; i++ {
		r := rs[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '>':
			return i
		}
	}
	return -1
}
