package generator

import "github.com/cbegin/sgen-go/internal/program"

// rampState is the generator's live, per-field copy of a program.Ramp:
// the Ramp itself is immutable once linked, but evaluating it advances
// a position and eventually folds the goal back into a plain state
// value, exactly as the scripted original's slope module does.
type rampState struct {
	v0      float64
	active  bool
	vt      float64
	timeLen int64 // in samples
	pos     int64
	curve   program.RampCurve
	ratio   bool // v0 represents a multiplier against a carrier buffer
}

func newRampState(r program.Ramp, srate int) rampState {
	rs := rampState{v0: r.V0, ratio: r.Flags&program.RampStateRatio != 0}
	if r.Flags&program.RampSlope != 0 {
		rs.active = true
		rs.vt = r.Vt
		rs.timeLen = msToSamples(r.TimeMS, srate)
		rs.curve = r.Curve
		if r.Flags&program.RampSlopeRatio != 0 {
			rs.ratio = true
		}
	}
	return rs
}

func msToSamples(ms int64, srate int) int64 {
	return int64(float64(ms) * float64(srate) * 0.001)
}

// curveValue evaluates the ear-tuned polynomial trajectories used for
// the exp/log ramp curves: symmetric, non-linear shapes with a clean
// start and end, rather than a true unbounded exponential.
func curveValue(curve program.RampCurve, v0, vt float64, i, timeLen int64) float64 {
	switch curve {
	case program.RampHold:
		return v0
	case program.RampLin:
		return v0 + (vt-v0)*(float64(i)/float64(timeLen))
	case program.RampExp:
		mod := 1 - float64(i)/float64(timeLen)
		modp2 := mod * mod
		modp3 := modp2 * mod
		mod = modp3 + (modp2*modp3-modp2)*(mod*(629.0/1792.0)+modp2*(1163.0/1792.0))
		return vt + (v0-vt)*mod
	case program.RampLog:
		mod := float64(i) / float64(timeLen)
		modp2 := mod * mod
		modp3 := modp2 * mod
		mod = modp3 + (modp2*modp3-modp2)*(mod*(629.0/1792.0)+modp2*(1163.0/1792.0))
		return v0 + (vt-v0)*mod
	}
	return v0
}

// run fills buf[:n] with the parameter's value over the next n samples,
// multiplying by mul (the carrier buffer) wherever ratio mode is set.
// It reports whether the ramp is still running afterward.
func (rs *rampState) run(buf []float64, n int, mul []float64) bool {
	if !rs.active {
		fillState(buf, n, rs.v0, rs.ratio, mul)
		return false
	}
	if rs.ratio && mul != nil {
		// No rebase of v0 against mul happens here: v0 is used as
		// given, and only the per-sample values below are multiplied
		// by mul.
	}
	remaining := rs.timeLen - rs.pos
	runLen := n
	if remaining < int64(n) {
		runLen = int(remaining)
	}
	for i := 0; i < runLen; i++ {
		v := curveValue(rs.curve, rs.v0, rs.vt, rs.pos+int64(i), rs.timeLen)
		if rs.ratio && mul != nil {
			v *= mul[i]
		}
		buf[i] = v
	}
	rs.pos += int64(runLen)
	if rs.pos >= rs.timeLen {
		rs.v0 = rs.vt
		rs.active = false
		var tail []float64
		var tailMul []float64
		if n > runLen {
			tail = buf[runLen:n]
			if mul != nil {
				tailMul = mul[runLen:n]
			}
		}
		fillState(tail, len(tail), rs.v0, rs.ratio, tailMul)
		return false
	}
	return true
}

func fillState(buf []float64, n int, v0 float64, ratio bool, mul []float64) {
	if ratio && mul != nil {
		for i := 0; i < n; i++ {
			buf[i] = v0 * mul[i]
		}
		return
	}
	for i := 0; i < n; i++ {
		buf[i] = v0
	}
}
