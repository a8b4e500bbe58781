package numexpr

import (
	"math"
	"testing"

	"github.com/cbegin/sgen-go/internal/lexsrc"
)

const testA4Freq = 440.0

func fixedA4() float64 { return testA4Freq }

func readNote(t *testing.T, text string, warn func(string)) (float64, bool) {
	t.Helper()
	r := Reader{Symbol: NoteSymbol(fixedA4, warn)}
	src := lexsrc.New([]byte(text))
	v, ok, err := r.ReadNumber(src)
	if err != nil {
		t.Fatalf("ReadNumber(%q): %v", text, err)
	}
	return v, ok
}

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestA4Is440(t *testing.T) {
	v, ok := readNote(t, "A4", nil)
	if !ok || !approxEqual(v, 440) {
		t.Fatalf("A4 = %v (ok=%v), want 440", v, ok)
	}
}

func TestC4IsFifthBelowA4(t *testing.T) {
	v, ok := readNote(t, "C4", nil)
	want := testA4Freq * 3.0 / 5.0
	if !ok || !approxEqual(v, want) {
		t.Fatalf("C4 = %v (ok=%v), want %v", v, ok, want)
	}
}

func TestOctaveDoublesFrequency(t *testing.T) {
	a4, _ := readNote(t, "A4", nil)
	a5, _ := readNote(t, "A5", nil)
	if !approxEqual(a5, a4*2) {
		t.Fatalf("A5 = %v, want double A4 = %v", a5, a4*2)
	}
}

func TestSharpRaisesBySemitone(t *testing.T) {
	a4, _ := readNote(t, "A4", nil)
	aSharp4, _ := readNote(t, "A#4", nil)
	if !approxEqual(aSharp4, a4*twelfthRoot2) {
		t.Fatalf("A#4 = %v, want %v", aSharp4, a4*twelfthRoot2)
	}
}

func TestFlatLowersBySemitone(t *testing.T) {
	a4, _ := readNote(t, "A4", nil)
	aFlat4, _ := readNote(t, "Ab4", nil)
	if !approxEqual(aFlat4, a4/twelfthRoot2) {
		t.Fatalf("Ab4 = %v, want %v", aFlat4, a4/twelfthRoot2)
	}
}

func TestMissingOctaveIsError(t *testing.T) {
	r := Reader{Symbol: NoteSymbol(fixedA4, nil)}
	src := lexsrc.New([]byte("A"))
	_, _, err := r.ReadNumber(src)
	if err == nil {
		t.Fatal("expected an error for a note name missing its octave digit")
	}
}

func TestNonNoteFallsThrough(t *testing.T) {
	v, ok := readNote(t, "440", nil)
	if !ok || v != 440 {
		t.Fatalf("plain literal should still parse when no note matches, got %v ok=%v", v, ok)
	}
}

func TestOutOfRangeOctaveWarns(t *testing.T) {
	var warned string
	readNote(t, "A12", func(msg string) { warned = msg })
	if warned == "" {
		t.Fatal("expected a warning for an out-of-range octave")
	}
}

func TestSubnoteBlendsAdjacentRatios(t *testing.T) {
	c4, _ := readNote(t, "C4", nil)
	d4, _ := readNote(t, "D4", nil)
	dBlend, ok := readNote(t, "dC4", nil)
	if !ok {
		t.Fatal("expected subnote form to parse")
	}
	wantRatio := (justRatio['D'] + justRatio['C']) / 2
	want := (testA4Freq * 3.0 / 5.0) * wantRatio
	if !approxEqual(dBlend, want) {
		t.Fatalf("dC4 = %v, want %v (between C4=%v and D4=%v)", dBlend, want, c4, d4)
	}
}
