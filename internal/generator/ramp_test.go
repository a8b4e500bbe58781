package generator

import (
	"math"
	"testing"

	"github.com/cbegin/sgen-go/internal/program"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCurveValueEndpoints(t *testing.T) {
	cases := []program.RampCurve{program.RampLin, program.RampExp, program.RampLog}
	for _, c := range cases {
		v0, vt := 100.0, 880.0
		start := curveValue(c, v0, vt, 0, 10)
		end := curveValue(c, v0, vt, 10, 10)
		if !approxEqual(start, v0) {
			t.Errorf("curve %v at i=0: got %v, want v0=%v", c, start, v0)
		}
		if !approxEqual(end, vt) {
			t.Errorf("curve %v at i=timeLen: got %v, want vt=%v", c, end, vt)
		}
	}
}

func TestCurveValueHoldIgnoresPosition(t *testing.T) {
	v0, vt := 5.0, 50.0
	if got := curveValue(program.RampHold, v0, vt, 0, 10); got != v0 {
		t.Errorf("hold at i=0: got %v, want %v", got, v0)
	}
	if got := curveValue(program.RampHold, v0, vt, 7, 10); got != v0 {
		t.Errorf("hold at i=7: got %v, want %v", got, v0)
	}
}

func TestCurveValueLinIsMonotonic(t *testing.T) {
	v0, vt := 0.0, 100.0
	prev := curveValue(program.RampLin, v0, vt, 0, 100)
	for i := int64(1); i <= 100; i++ {
		cur := curveValue(program.RampLin, v0, vt, i, 100)
		if cur < prev {
			t.Fatalf("lin curve decreased from %v to %v at i=%d", prev, cur, i)
		}
		prev = cur
	}
}

func TestRampStateRunCompletesAtTimeLen(t *testing.T) {
	rs := rampState{v0: 0, active: true, vt: 10, timeLen: 10, curve: program.RampLin}
	buf := make([]float64, 10)
	stillRunning := rs.run(buf, 10, nil)
	if stillRunning {
		t.Fatal("expected ramp to finish after exactly timeLen samples")
	}
	if !approxEqual(rs.v0, 10) {
		t.Fatalf("v0 after completion = %v, want vt=10", rs.v0)
	}
	if !approxEqual(buf[0], 0) {
		t.Errorf("buf[0] = %v, want 0", buf[0])
	}
}

func TestRampStateRunPartialBlockStillsActive(t *testing.T) {
	rs := rampState{v0: 0, active: true, vt: 10, timeLen: 100, curve: program.RampLin}
	buf := make([]float64, 10)
	stillRunning := rs.run(buf, 10, nil)
	if !stillRunning {
		t.Fatal("expected ramp to still be running with only 10/100 samples consumed")
	}
	if rs.pos != 10 {
		t.Fatalf("pos = %d, want 10", rs.pos)
	}
}

func TestRampStateInactiveHoldsV0(t *testing.T) {
	rs := rampState{v0: 42}
	buf := make([]float64, 5)
	stillRunning := rs.run(buf, 5, nil)
	if stillRunning {
		t.Fatal("an inactive ramp should never report as running")
	}
	for i, v := range buf {
		if v != 42 {
			t.Fatalf("buf[%d] = %v, want 42", i, v)
		}
	}
}

func TestFillStateRatioMultipliesByCarrier(t *testing.T) {
	buf := make([]float64, 3)
	mul := []float64{2, 3, 4}
	fillState(buf, 3, 5, true, mul)
	want := []float64{10, 15, 20}
	for i := range buf {
		if !approxEqual(buf[i], want[i]) {
			t.Errorf("buf[%d] = %v, want %v", i, buf[i], want[i])
		}
	}
}

func TestMsToSamples(t *testing.T) {
	if got := msToSamples(500, 48000); got != 24000 {
		t.Fatalf("msToSamples(500, 48000) = %d, want 24000", got)
	}
}
