package lexsrc

import "testing"

func TestAdvanceTracksLineAndCol(t *testing.T) {
	s := New([]byte("ab\ncd"))
	for i := 0; i < 2; i++ {
		s.Advance()
	}
	line, col := s.Pos()
	if line != 1 || col != 3 {
		t.Fatalf("got line=%d col=%d, want 1,3", line, col)
	}
	s.Advance() // consumes '\n'
	line, col = s.Pos()
	if line != 2 || col != 1 {
		t.Fatalf("after newline got line=%d col=%d, want 2,1", line, col)
	}
}

func TestAdvanceFoldsCRLF(t *testing.T) {
	s := New([]byte("a\r\nb"))
	s.Advance() // 'a'
	c, ok := s.Advance()
	if !ok || c != '\n' {
		t.Fatalf("expected CRLF to fold into a single '\\n', got %q ok=%v", c, ok)
	}
	line, _ := s.Pos()
	if line != 2 {
		t.Fatalf("expected line 2 after folded CRLF, got %d", line)
	}
}

func TestUngetRestoresPosition(t *testing.T) {
	s := New([]byte("xyz"))
	s.Advance()
	s.Advance()
	s.Unget()
	s.Unget()
	c, ok := s.Peek()
	if !ok || c != 'x' {
		t.Fatalf("after double unget expected to peek 'x', got %q ok=%v", c, ok)
	}
	line, col := s.Pos()
	if line != 1 || col != 1 {
		t.Fatalf("after double unget expected pos 1,1, got %d,%d", line, col)
	}
}

func TestTryConsumesOnlyOnMatch(t *testing.T) {
	s := New([]byte("ab"))
	if s.Try('b') {
		t.Fatal("Try should not match 'b' when next byte is 'a'")
	}
	if !s.Try('a') {
		t.Fatal("Try should match 'a'")
	}
	c, _ := s.Peek()
	if c != 'b' {
		t.Fatalf("expected cursor advanced past 'a', peek=%q", c)
	}
}

func TestSkipWSStopsAtNewline(t *testing.T) {
	s := New([]byte("  \n  x"))
	s.SkipWS()
	c, _ := s.Peek()
	if c != '\n' {
		t.Fatalf("SkipWS should stop at newline, got %q", c)
	}
	s.SkipWSAndNewlines()
	c, _ = s.Peek()
	if c != 'x' {
		t.Fatalf("SkipWSAndNewlines should reach 'x', got %q", c)
	}
}

func TestAtEnd(t *testing.T) {
	s := New([]byte("a"))
	if s.AtEnd() {
		t.Fatal("should not be at end before consuming the only byte")
	}
	s.Advance()
	if !s.AtEnd() {
		t.Fatal("should be at end after consuming the only byte")
	}
}
