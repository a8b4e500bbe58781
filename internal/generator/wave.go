package generator

import (
	"math"

	"github.com/cbegin/sgen-go/internal/program"
)

// waveTableLen is the size of each fixed lookup table; large enough
// that linear interpolation error is inaudible at any reasonable pitch.
const waveTableLen = 2048

var waveTables [5][waveTableLen + 1]float64 // +1 guard sample for interpolation

func init() {
	for i := 0; i < waveTableLen; i++ {
		t := float64(i) / float64(waveTableLen)
		waveTables[program.WaveSin][i] = math.Sin(2 * math.Pi * t)
		waveTables[program.WaveSrs][i] = sqrtSineShape(t)
		waveTables[program.WaveTri][i] = triangleShape(t)
		waveTables[program.WaveSqr][i] = squareShape(t)
		waveTables[program.WaveSaw][i] = sawShape(t)
	}
	for w := range waveTables {
		waveTables[w][waveTableLen] = waveTables[w][0]
	}
}

// sqrtSineShape approximates "srs" (square-root-of-sine) style wave: a
// sine with its magnitude square-rooted, sign preserved, giving a
// brighter harmonic content than a plain sine without square corners.
func sqrtSineShape(t float64) float64 {
	s := math.Sin(2 * math.Pi * t)
	if s >= 0 {
		return math.Sqrt(s)
	}
	return -math.Sqrt(-s)
}

func triangleShape(t float64) float64 {
	if t < 0.25 {
		return 4 * t
	}
	if t < 0.75 {
		return 2 - 4*t
	}
	return 4*t - 4
}

func squareShape(t float64) float64 {
	if t < 0.5 {
		return 1
	}
	return -1
}

func sawShape(t float64) float64 {
	return 2*t - 1
}

// oscCoeff is the phase increment, in 32-bit phase units, corresponding
// to a 1 Hz tone at the given sample rate.
func oscCoeff(srate int) float64 {
	return float64(uint64(1)<<32) / float64(srate)
}

// pmIndexScale converts a phase-modulator sample (in the same -1..1
// range as any oscillator's own output) into a fraction of a full
// cycle. 0.25 cycles of swing per unit amplitude is a conventional
// phase-modulation depth matching typical FM-synth "modulation index"
// ranges.
const pmIndexScale = 0.25

// oscillator is a single operator's running phase-accumulator state.
type oscillator struct {
	phase uint32
}

func (o *oscillator) setPhaseFraction(frac float64) {
	frac -= math.Floor(frac)
	o.phase = uint32(frac * float64(uint64(1)<<32))
}

// next advances the oscillator by one sample and returns its value,
// given the coefficient (see oscCoeff), frequency in Hz, and an
// optional phase-modulation input sample (0 if unmodulated).
func (o *oscillator) next(wave program.Wave, coeff, freq, pm float64) float64 {
	inc := uint32(coeff * freq)
	pmPhase := uint32(int32(pm * pmIndexScale * float64(uint64(1)<<32)))
	lookupPhase := o.phase + pmPhase
	table := &waveTables[wave]
	// 11 bits of table index from the top of the 32-bit phase, with the
	// remaining bits used as the linear-interpolation fraction.
	const shift = 32 - 11
	idx := lookupPhase >> shift
	frac := float64(lookupPhase&((1<<shift)-1)) / float64(uint32(1)<<shift)
	a, b := table[idx], table[idx+1]
	sample := a + (b-a)*frac
	o.phase += inc
	return sample
}
