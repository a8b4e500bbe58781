// Package score implements the symbol-table-backed parser: it turns
// script text into a tree of tentative, mutable operator/voice nodes
// and a flat, document-order event list, still untouched by timing
// closure (that is the linker's job, package linker).
package score

import "github.com/cbegin/sgen-go/internal/program"

// Operator is a tentative, mutable operator version. Re-declaring a
// labelled operator produces a new Operator with Prev pointing at the
// version it patches; Operator.ID stays the same across versions so the
// linker can tell "a new version of voice 3's operator 1" from "a brand
// new operator".
type Operator struct {
	ID   int
	Prev *Operator

	Wave    program.Wave
	WaveSet bool

	Freq      program.Ramp
	FreqSet   bool
	FreqRatio bool // Freq.V0/Vt are ratios of the parent carrier's buffer

	DynFreq      float64
	DynFreqSet   bool
	DynFreqRatio bool

	Phase    float64
	PhaseSet bool

	Amp    program.Ramp
	AmpSet bool

	DynAmp    float64
	DynAmpSet bool

	TimeMS  int64
	TimeSet bool
	TimeInf bool

	SilenceMS  int64
	SilenceSet bool

	FMods, PMods, AMods []*Operator
	AdjcsSet            bool

	Touched program.EventParams
}

// Voice is a tentative, mutable voice version; see Operator's doc for
// the Prev/ID convention.
type Voice struct {
	ID   int
	Prev *Voice

	Panning    float64
	PanningSet bool

	ValitPanning    program.Ramp
	ValitPanningSet bool

	Graph    []*Operator
	GraphSet bool

	Touched program.EventParams
}

// Event is one parsed, timing-unresolved state change. WaitMS is the
// delay, in milliseconds, from the previous event in document order
// (before composite/group timing closure folds it into operator
// silence). DefaultMS, the ambient default duration in effect when the
// event was parsed, supports that closure.
type Event struct {
	WaitMS      int64
	VoiceID     int
	Voice       *Voice
	Operator    *Operator
	GroupEnd    bool
	DefaultMS   int64
}

// Parsed is the parser's full result: the event stream plus the total
// number of distinct operator/voice identities created (their highest
// ID + 1), needed to size the linker's id-keyed tables.
type Parsed struct {
	Events    []*Event
	OperatorN int
	VoiceN    int
	Name      string
	Options   program.ScriptOptions
}
