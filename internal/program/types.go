// Package program defines the linked, immutable program representation
// the generator runs. The linker that builds one from a parsed score is
// package linker.
package program

// Wave selects one of the five fixed oscillator tables.
type Wave uint8

const (
	WaveSin Wave = iota
	WaveSrs
	WaveTri
	WaveSqr
	WaveSaw
)

var waveNames = [...]string{"sin", "srs", "tri", "sqr", "saw"}

func (w Wave) String() string {
	if int(w) < len(waveNames) {
		return waveNames[w]
	}
	return "?"
}

// RampCurve selects the trajectory a Ramp follows from its start value
// to its goal value.
type RampCurve uint8

const (
	RampHold RampCurve = iota
	RampLin
	RampExp
	RampLog
)

// RampFlags records which parts of a Ramp carry meaningful data and
// whether each part is a ratio (relative to a carrier buffer value)
// rather than an absolute value.
type RampFlags uint8

const (
	RampState      RampFlags = 1 << iota // v0 is set
	RampSlope                            // vt/time/curve are set: a slope runs
	RampStateRatio                       // v0 is a ratio of the carrier value
	RampSlopeRatio                       // vt is a ratio of the carrier value
)

// Ramp is a possibly time-varying parameter value: a starting value and
// optionally a slope carrying it to a goal value over time.
type Ramp struct {
	V0, Vt  float64
	TimeMS  int64
	Curve   RampCurve
	Flags   RampFlags
}

// TimeInf marks an operator duration as "run until its voice's carriers
// finish" (used for operators that exist purely to modulate others).
const TimeInf int64 = -1

// OpAttr are the per-operator attribute bits carried in an event.
type OpAttr uint16

const (
	AttrFreqRatio OpAttr = 1 << iota
	AttrDynFreqRatio
	AttrValitFreq
	AttrValitFreqRatio
	AttrValitAmp
	AttrValitPanning
	AttrWaveEnv
)

// VoAttr are the per-voice attribute bits.
type VoAttr uint8

const (
	VoAttrValitPanning VoAttr = 1 << iota
)

// EventParams marks which fields of an Event's VoiceData/OperatorData
// are meaningful; unset fields carry over the previous state.
type EventParams uint32

const (
	PGraph EventParams = 1 << iota
	PPanning
	PValitPanning
	PVoAttr
	PAdjcs
	PWave
	PTime
	PSilence
	PFreq
	PValitFreq
	PDynFreq
	PPhase
	PAmp
	PValitAmp
	PDynAmp
	POpAttr
)

// OperatorID is a dense operator index in 0..Program.OperatorCount-1.
type OperatorID int32

// VoiceID is a dense voice index in 0..Program.VoiceCount-1 (carried by
// each Event.VoiceID).
type VoiceID int32

// Adjacency lists an operator's modulators, split by modulation kind,
// plus the scratch-buffer recursion level assigned to it by the linker.
type Adjacency struct {
	FMods []OperatorID
	PMods []OperatorID
	AMods []OperatorID
	Level int
}

// Graph lists the operator ids making up a voice's carrier set (the
// operators actually mixed to output, as opposed to pure modulators).
type Graph struct {
	Ops []OperatorID
}

// VoiceData is the voice-level state an event may update.
type VoiceData struct {
	Graph        *Graph
	Attr         VoAttr
	Panning      float64
	ValitPanning Ramp
}

// OperatorData is the operator-level state an event may update.
type OperatorData struct {
	Adjcs      *Adjacency
	OperatorID OperatorID
	Attr       OpAttr
	Wave       Wave
	TimeMS     int64
	SilenceMS  int64
	Freq       float64
	DynFreq    float64
	Phase      float64
	Amp        float64
	DynAmp     float64
	ValitFreq  Ramp
	ValitAmp   Ramp
}

// Event is a single timed state change, waiting WaitMS after the
// previous event before taking effect. Voice and/or Operator may be
// nil; Params marks which of their fields are meaningful.
type Event struct {
	WaitMS   int64
	Params   EventParams
	VoiceID  VoiceID
	Voice    *VoiceData
	Operator *OperatorData
}

// ProgramFlags affects overall interpretation.
type ProgramFlags uint16

const (
	// FlagAmpDivVoices scales mixed voice output by 1/voiceCount, so
	// scripts with many simultaneous voices don't clip as readily.
	FlagAmpDivVoices ProgramFlags = 1 << iota
)

// ScriptOptions is the snapshot of ambient, `S`-settable defaults a
// script compiled against: the amplitude multiplier baked into every
// top-level operator's amp at parse time, the tuning reference note
// names resolve against, and the defaults a brand new operator falls
// back on when it omits an explicit `f`/`r` key.
type ScriptOptions struct {
	AmpMult        float64
	A4FreqHz       float64
	DefaultTimeMS  int64
	DefaultFreqHz  float64
	DefaultRelFreq float64
}

// DefaultScriptOptions returns the engine's built-in ScriptOptions,
// in effect until a script's `S` directives override them.
func DefaultScriptOptions() ScriptOptions {
	return ScriptOptions{
		AmpMult:        1.0,
		A4FreqHz:       440.0,
		DefaultTimeMS:  1000,
		DefaultFreqHz:  440.0,
		DefaultRelFreq: 1.0,
	}
}

// Program is the complete, immutable result of linking a score: every
// timed event plus the operator/voice counts the generator needs to
// size its runtime state and scratch buffers.
type Program struct {
	Events        []*Event
	OperatorCount int
	VoiceCount    int
	Flags         ProgramFlags
	Name          string
	Options       ScriptOptions
}
