// Package numexpr implements the numeric-expression reader used
// throughout the score grammar: infix arithmetic over `^ * / + -` with
// parenthesized sub-expressions, plus a pluggable symbol reader so the
// same reader can resolve note names (see notes.go) inline with plain
// literals.
package numexpr

import (
	"fmt"
	"math"

	"github.com/cbegin/sgen-go/internal/lexsrc"
)

// SymbolReader attempts to read a symbolic numeric atom (a note name,
// for instance) at the source's current position. ok is false, with the
// source position unchanged, if no symbol starts here.
type SymbolReader func(src *lexsrc.Source) (float64, bool, error)

// Reader parses numeric expressions. The zero value reads plain
// arithmetic with no symbolic atoms.
type Reader struct {
	Symbol SymbolReader
}

// ReadNumber reads a numeric expression starting at the source's
// current position. ok is false, with the position left at the first
// unconsumed byte, if no expression starts here (this is how the
// surrounding parser tells "no number here" from a malformed one).
func (r *Reader) ReadNumber(src *lexsrc.Source) (float64, bool, error) {
	src.SkipWS()
	v, ok, err := r.readExpr(src, 0)
	if err != nil || !ok {
		return 0, ok, err
	}
	if math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("numeric expression overflowed to infinity")
	}
	if math.IsNaN(v) {
		return 0, false, fmt.Errorf("numeric expression is not a number")
	}
	return v, true, nil
}

type binOp struct {
	prec       int
	rightAssoc bool
}

var binOps = map[byte]binOp{
	'+': {1, false},
	'-': {1, false},
	'*': {2, false},
	'/': {2, false},
	'^': {3, true},
}

func (r *Reader) readExpr(src *lexsrc.Source, minPrec int) (float64, bool, error) {
	lhs, ok, err := r.readUnary(src)
	if err != nil || !ok {
		return 0, ok, err
	}
	for {
		src.SkipWS()
		c, ok := src.Peek()
		if !ok {
			break
		}
		op, known := binOps[c]
		if !known || op.prec < minPrec {
			break
		}
		src.Advance()
		src.SkipWS()
		nextMin := op.prec + 1
		if op.rightAssoc {
			nextMin = op.prec
		}
		rhs, ok, err := r.readExpr(src, nextMin)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return 0, false, fmt.Errorf("expected operand after %q", c)
		}
		lhs, err = apply(c, lhs, rhs)
		if err != nil {
			return 0, false, err
		}
	}
	return lhs, true, nil
}

func apply(op byte, a, b float64) (float64, error) {
	switch op {
	case '+':
		return a + b, nil
	case '-':
		return a - b, nil
	case '*':
		return a * b, nil
	case '/':
		if b == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return a / b, nil
	case '^':
		return math.Pow(a, b), nil
	}
	return 0, fmt.Errorf("unknown operator %q", op)
}

func (r *Reader) readUnary(src *lexsrc.Source) (float64, bool, error) {
	src.SkipWS()
	if src.Try('-') {
		v, ok, err := r.readUnary(src)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return 0, false, fmt.Errorf("expected operand after unary '-'")
		}
		return -v, true, nil
	}
	src.Try('+')
	return r.readAtom(src)
}

func (r *Reader) readAtom(src *lexsrc.Source) (float64, bool, error) {
	src.SkipWS()
	if r.Symbol != nil {
		if v, ok, err := r.Symbol(src); err != nil || ok {
			return v, ok, err
		}
	}
	if src.Try('(') {
		v, ok, err := r.readExpr(src, 0)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			return 0, false, fmt.Errorf("expected expression after '('")
		}
		if !src.Try(')') {
			return 0, false, fmt.Errorf("expected ')'")
		}
		return v, true, nil
	}
	return r.readLiteral(src)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// readLiteral reads a decimal literal: digits, an optional '.', more
// digits. At least one digit must appear on one side of the point.
func (r *Reader) readLiteral(src *lexsrc.Source) (float64, bool, error) {
	var digits []byte
	sawDigit := false
	for {
		c, ok := src.Peek()
		if !ok || !isDigit(c) {
			break
		}
		src.Advance()
		digits = append(digits, c)
		sawDigit = true
	}
	if c, ok := src.Peek(); ok && c == '.' {
		src.Advance()
		digits = append(digits, '.')
		for {
			c, ok := src.Peek()
			if !ok || !isDigit(c) {
				break
			}
			src.Advance()
			digits = append(digits, c)
			sawDigit = true
		}
	}
	if !sawDigit {
		// Nothing consumed that wasn't already ungettable; rewind any
		// lone '.' we may have eaten.
		for range digits {
			src.Unget()
		}
		return 0, false, nil
	}
	var v float64
	var frac float64 = -1
	fracDiv := 1.0
	for _, c := range digits {
		if c == '.' {
			frac = 0
			continue
		}
		d := float64(c - '0')
		if frac < 0 {
			v = v*10 + d
		} else {
			fracDiv *= 10
			v += d / fracDiv
		}
	}
	return v, true, nil
}
