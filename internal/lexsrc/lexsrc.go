// Package lexsrc implements the character source shared by the number
// reader and the score parser: a byte cursor with one-token pushback,
// CRLF folding, and line/column tracking for diagnostics.
package lexsrc

type pos struct {
	idx, line, col int
}

// Source is a forward-reading byte cursor over an in-memory script.
type Source struct {
	data []byte
	cur  pos
	hist []pos
}

// New wraps data for reading. Line and column numbers start at 1.
func New(data []byte) *Source {
	return &Source{data: data, cur: pos{0, 1, 1}}
}

// AtEnd reports whether the cursor has consumed all input.
func (s *Source) AtEnd() bool { return s.cur.idx >= len(s.data) }

// Peek returns the next byte without consuming it.
func (s *Source) Peek() (byte, bool) {
	if s.AtEnd() {
		return 0, false
	}
	return s.data[s.cur.idx], true
}

// PeekAt returns the byte `ahead` positions past the cursor without
// consuming anything. The score parser and number reader do not call
// it; they use one character of lookahead.
func (s *Source) PeekAt(ahead int) (byte, bool) {
	i := s.cur.idx + ahead
	if i < 0 || i >= len(s.data) {
		return 0, false
	}
	return s.data[i], true
}

// Advance consumes and returns the next byte. A CR, or CRLF pair, is
// folded into a single '\n' so downstream code never sees '\r'.
func (s *Source) Advance() (byte, bool) {
	if s.AtEnd() {
		return 0, false
	}
	s.hist = append(s.hist, s.cur)
	b := s.data[s.cur.idx]
	if b == '\r' {
		s.cur.idx++
		if s.cur.idx < len(s.data) && s.data[s.cur.idx] == '\n' {
			s.cur.idx++
		}
		s.cur.line++
		s.cur.col = 1
		return '\n', true
	}
	s.cur.idx++
	if b == '\n' {
		s.cur.line++
		s.cur.col = 1
	} else {
		s.cur.col++
	}
	return b, true
}

// Unget restores the cursor to just before the last Advance. Every
// Advance is kept on a history stack, so repeated Unget calls step back
// one byte at a time.
func (s *Source) Unget() {
	if len(s.hist) == 0 {
		return
	}
	s.cur = s.hist[len(s.hist)-1]
	s.hist = s.hist[:len(s.hist)-1]
}

// Try consumes the next byte if it equals b, reporting whether it did.
func (s *Source) Try(b byte) bool {
	c, ok := s.Peek()
	if !ok || c != b {
		return false
	}
	s.Advance()
	return true
}

// Pos returns the line and column of the next unread byte.
func (s *Source) Pos() (line, col int) { return s.cur.line, s.cur.col }

func isHSpace(c byte) bool { return c == ' ' || c == '\t' }

// SkipWS consumes horizontal whitespace only.
func (s *Source) SkipWS() {
	for {
		c, ok := s.Peek()
		if !ok || !isHSpace(c) {
			return
		}
		s.Advance()
	}
}

// SkipWSAndNewlines consumes whitespace and line breaks.
func (s *Source) SkipWSAndNewlines() {
	for {
		c, ok := s.Peek()
		if !ok || (!isHSpace(c) && c != '\n') {
			return
		}
		s.Advance()
	}
}
