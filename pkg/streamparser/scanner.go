package streamparser

// Scanner buffers received characters and tracks how many were consumed.
type Scanner struct {
	buf []rune
	pos int
}

// Append adds a chunk to the buffer.
func (s *Scanner) Append(chunk string) {
	s.buf = append(s.buf, []rune(chunk)...)
}

// Remaining returns the unconsumed characters. The slice is only valid until
// the next Append or Compact.
func (s *Scanner) Remaining() []rune {
	return s.buf[s.pos:]
}

// Len returns the number of unconsumed characters.
func (s *Scanner) Len() int {
	return len(s.buf) - s.pos
}

// Advance consumes n characters.
func (s *Scanner) Advance(n int) {
	s.pos += n
	if s.pos > len(s.buf) {
		s.pos = len(s.buf)
	}
}

// Compact drops the consumed prefix.
func (s *Scanner) Compact() {
	if s.pos == 0 {
		return
	}
	n := copy(s.buf, s.buf[s.pos:])
	s.buf = s.buf[:n]
	s.pos = 0
}

// indexRunes returns the index of the first occurrence of token in rs, or -1.
func indexRunes(rs []rune, token []rune) int {
	if len(token) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(token) <= len(rs); i++ {
		for j, r := range token {
			if rs[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}

// partialSuffix returns the length of the longest suffix of rs that is a
// proper prefix of token.
func partialSuffix(rs []rune, token []rune) int {
	limit := len(token) - 1
	if limit > len(rs) {
		limit = len(rs)
	}
	for n := limit; n > 0; n-- {
		if string(rs[len(rs)-n:]) == string(token[:n]) {
			return n
		}
	}
	return 0
}
