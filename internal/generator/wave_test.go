package generator

import (
	"math"
	"testing"

	"github.com/cbegin/sgen-go/internal/program"
)

func TestOscillatorIsPeriodicOverTableLength(t *testing.T) {
	osc := oscillator{}
	coeff := oscCoeff(waveTableLen) // inc = 2^32/waveTableLen, an exact integer
	var first float64
	for i := 0; i < waveTableLen; i++ {
		s := osc.next(program.WaveSin, coeff, 1, 0)
		if i == 0 {
			first = s
		}
	}
	after := osc.next(program.WaveSin, coeff, 1, 0)
	if math.Abs(after-first) > 1e-9 {
		t.Fatalf("sample after one full table period = %v, want %v (periodicity)", after, first)
	}
}

func TestOscillatorZeroFreqHoldsPhase(t *testing.T) {
	osc := oscillator{}
	a := osc.next(program.WaveSin, 0, 0, 0)
	b := osc.next(program.WaveSin, 0, 0, 0)
	if a != b {
		t.Fatalf("zero-frequency oscillator drifted: %v != %v", a, b)
	}
}

func TestSetPhaseFractionWrapsNegativeAndOverOne(t *testing.T) {
	var o oscillator
	o.setPhaseFraction(1.25)
	p1 := o.phase
	var o2 oscillator
	o2.setPhaseFraction(0.25)
	p2 := o2.phase
	if p1 != p2 {
		t.Fatalf("setPhaseFraction(1.25) phase = %d, want same as setPhaseFraction(0.25) = %d", p1, p2)
	}
}

func TestSetPhaseFractionHalfCycleMatchesTableMidpoint(t *testing.T) {
	var o oscillator
	o.setPhaseFraction(0.5)
	s := o.next(program.WaveSin, 0, 0, 0)
	if math.Abs(s) > 1e-6 {
		t.Fatalf("sine at half cycle = %v, want ~0", s)
	}
}

func TestWaveTablesHaveGuardSampleMatchingStart(t *testing.T) {
	for w := range waveTables {
		if waveTables[w][waveTableLen] != waveTables[w][0] {
			t.Errorf("wave %d: guard sample %v != first sample %v", w, waveTables[w][waveTableLen], waveTables[w][0])
		}
	}
}

func TestSquareShapeSignFlipsAtHalf(t *testing.T) {
	if squareShape(0.1) != 1 {
		t.Error("square shape should be +1 in first half")
	}
	if squareShape(0.6) != -1 {
		t.Error("square shape should be -1 in second half")
	}
}

func TestSawShapeRampsLinearly(t *testing.T) {
	if got := sawShape(0); got != -1 {
		t.Errorf("sawShape(0) = %v, want -1", got)
	}
	if got := sawShape(0.5); got != 0 {
		t.Errorf("sawShape(0.5) = %v, want 0", got)
	}
}
