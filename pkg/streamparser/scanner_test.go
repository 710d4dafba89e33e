package streamparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanner_AppendAdvanceCompact(t *testing.T) {
	var s Scanner
	s.Append("héllo")
	assert.Equal(t, 5, s.Len())

	s.Advance(2)
	assert.Equal(t, "llo", string(s.Remaining()))

	s.Compact()
	assert.Equal(t, "llo", string(s.Remaining()))
	s.Append(" wörld")
	assert.Equal(t, "llo wörld", string(s.Remaining()))

	s.Advance(100)
	assert.Equal(t, 0, s.Len())
}

func TestIndexRunes(t *testing.T) {
	assert.Equal(t, 3, indexRunes([]rune("abc</x>"), []rune("</x>")))
	assert.Equal(t, -1, indexRunes([]rune("abc</x"), []rune("</x>")))
	assert.Equal(t, 0, indexRunes([]rune("abc"), nil))
}

func TestPartialSuffix(t *testing.T) {
	closer := []rune("</run_bash>")
	assert.Equal(t, 5, partialSuffix([]rune("echo hi</run"), closer))
	assert.Equal(t, 1, partialSuffix([]rune("a <"), closer))
	assert.Equal(t, 0, partialSuffix([]rune("done"), closer))
	assert.Equal(t, 0, partialSuffix([]rune("x</run_bash>"), closer), "a complete token is not a proper prefix")
	assert.Equal(t, 0, partialSuffix(nil, closer))
}

func TestCoercion(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "yes", " Yes "} {
		v, ok := coerceBool(s)
		assert.True(t, ok, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"false", "0", "No"} {
		v, ok := coerceBool(s)
		assert.True(t, ok, s)
		assert.False(t, v, s)
	}
	_, ok := coerceBool("maybe")
	assert.False(t, ok)

	n, ok := coercePositiveInt("42")
	assert.True(t, ok)
	assert.Equal(t, 42, n)
	for _, s := range []string{"0", "-1", "abc", "1.5", ""} {
		_, ok := coercePositiveInt(s)
		assert.False(t, ok, s)
	}
}

func TestParseAttributes(t *testing.T) {
	attrs := parseAttributes(` path="a &amp; b.txt" mode='0644' flag`)
	assert.Equal(t, []attribute{{"path", "a & b.txt"}, {"mode", "0644"}}, attrs)

	v, ok := attributeValue(attrs, "mode")
	assert.True(t, ok)
	assert.Equal(t, "0644", v)
}

func TestParseArgElements(t *testing.T) {
	args := parseArgElements("<arg name=\"a\">1</arg>\n<arg name='b'>x\ny</arg><arg name=\"a\">2</arg>")
	assert.Equal(t, 2, args.Len())
	a, _ := args.Get("a")
	assert.Equal(t, "1", a)
	b, _ := args.Get("b")
	assert.Equal(t, "x\ny", b)
}
