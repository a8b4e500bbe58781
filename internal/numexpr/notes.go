package numexpr

import (
	"fmt"
	"math"

	"github.com/cbegin/sgen-go/internal/lexsrc"
)

// justRatio gives the 5-limit just-intonation ratio of each natural
// note, relative to C in the same octave.
var justRatio = map[byte]float64{
	'C': 1.0,
	'D': 9.0 / 8.0,
	'E': 5.0 / 4.0,
	'F': 4.0 / 3.0,
	'G': 3.0 / 2.0,
	'A': 5.0 / 3.0,
	'B': 15.0 / 8.0,
}

var noteOrder = []byte{'C', 'D', 'E', 'F', 'G', 'A', 'B'}

func noteIndex(n byte) int {
	for i, c := range noteOrder {
		if c == n {
			return i
		}
	}
	return -1
}

// NoteSymbol is a numexpr.SymbolReader resolving note-name literals of
// the form <subnote?><A-G><#|b?><octave 0-10> to a frequency in Hz.
// a4Freq is called once per note to fetch the tuning reference
// currently in effect (program.ScriptOptions.A4FreqHz, live-settable
// through the `S n` directive), so a later setting change is honored
// by notes scanned after it.
//
// A lower-case leading letter is a subnote: it blends the named note's
// ratio halfway toward the ratio of the following natural note, giving
// a cheap approximation of a neutral/passing pitch without a second
// full table. Warnings for out-of-range octaves are reported through
// warn, which may be nil.
func NoteSymbol(a4Freq func() float64, warn func(msg string)) SymbolReader {
	return func(src *lexsrc.Source) (float64, bool, error) {
		c, ok := src.Peek()
		if !ok {
			return 0, false, nil
		}
		var sub byte
		if c >= 'a' && c <= 'g' {
			sub = c
			src.Advance()
			c, ok = src.Peek()
			if !ok {
				src.Unget()
				return 0, false, nil
			}
		}
		upper := c
		if upper >= 'a' && upper <= 'z' {
			upper -= 'a' - 'A'
		}
		if noteIndex(upper) < 0 {
			if sub != 0 {
				src.Unget()
			}
			return 0, false, nil
		}
		src.Advance()

		ratio := justRatio[upper]
		if sub != 0 {
			subUpper := sub
			if subUpper >= 'a' && subUpper <= 'z' {
				subUpper -= 'a' - 'A'
			}
			if subUpper == upper {
				// A bare lower-case repeat of the same letter isn't a
				// blend target; the note keeps its own ratio unblended.
				sub = 0
			} else {
				ratio = (justRatio[subUpper] + ratio) / 2
			}
		}

		// accidental
		for {
			c, ok := src.Peek()
			if !ok {
				break
			}
			switch c {
			case '#':
				src.Advance()
				ratio *= twelfthRoot2
			case 'b':
				src.Advance()
				ratio /= twelfthRoot2
			default:
				goto accidentalsDone
			}
		}
	accidentalsDone:

		digits := 0
		octave := 0
		for {
			c, ok := src.Peek()
			if !ok || c < '0' || c > '9' {
				break
			}
			src.Advance()
			octave = octave*10 + int(c-'0')
			digits++
		}
		if digits == 0 {
			return 0, false, fmt.Errorf("note name missing octave digit")
		}
		if octave > 10 {
			if warn != nil {
				warn(fmt.Sprintf("note octave %d out of expected range 0-10", octave))
			}
		}
		c4Freq := a4Freq() * 3.0 / 5.0
		freq := c4Freq * ratio * math.Pow(2, float64(octave-4))
		return freq, true, nil
	}
}

var twelfthRoot2 = math.Pow(2, 1.0/12.0)
