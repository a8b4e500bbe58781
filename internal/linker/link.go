// Package linker performs timing closure and flattens a parsed score
// into an immutable program.Program. It exists as its own package,
// separate from internal/program's data types, because it needs to
// depend on internal/score while internal/score's types themselves
// depend on internal/program (a plain Ramp, etc.) — putting the linker
// in package program would create an import cycle.
package linker

import (
	"fmt"

	"github.com/cbegin/sgen-go/internal/diag"
	"github.com/cbegin/sgen-go/internal/program"
	"github.com/cbegin/sgen-go/internal/score"
)

// Link performs the timing closure and flattens a parsed score into an
// immutable Program: every operator's implicit duration is filled in
// from the ambient default, silence folded into the same operator's
// time exactly once, and every operator/voice reference is
// resolved to a dense integer id. Diagnostics accumulate the same way
// as during parsing; err is non-nil only if the input was too
// malformed to produce any program at all.
func Link(parsed *score.Parsed) (*program.Program, []diag.Diagnostic, error) {
	l := &linker{
		parsed:  parsed,
		opLevel: make(map[int]int),
	}
	return l.run()
}

type linker struct {
	parsed *score.Parsed
	diags  []diag.Diagnostic

	opLevel map[int]int
}

func (l *linker) warnf(format string, args ...any) {
	l.diags = append(l.diags, diag.Diagnostic{Kind: diag.Semantic, Message: fmt.Sprintf(format, args...)})
}

func (l *linker) run() (*program.Program, []diag.Diagnostic, error) {
	events := make([]*program.Event, 0, len(l.parsed.Events))

	// Pass 1: default-duration fill + silence fold. Each score.Event's
	// operator carries its own explicit time/silence if set; otherwise
	// the ambient default (recorded per-event at parse time) applies.
	// Silence folds into time exactly once here, not again downstream.
	for _, se := range l.parsed.Events {
		op := se.Operator
		if op == nil {
			continue
		}
		if !op.TimeSet {
			if op.Prev == nil {
				op.TimeMS = se.DefaultMS
				op.TimeSet = true
			}
			// a patch event with no explicit time leaves duration to
			// whatever the generator's carried-forward state already
			// holds; nothing to fill here.
		}
		if op.SilenceSet && op.TimeSet && !op.TimeInf {
			op.TimeMS += op.SilenceMS
		}
	}

	// Pass 2: recursively derive modulation depth for every operator
	// reachable from a voice graph, recorded as Adjacency.Level so a
	// Program consumer never needs to re-walk the parse-time graph. The
	// generator does not read it: each operator owns its own buffers.
	for _, se := range l.parsed.Events {
		if se.Voice == nil {
			continue
		}
		for _, carrier := range se.Voice.Graph {
			l.assignLevel(carrier, 0, make(map[int]bool))
		}
	}

	// Pass 3: flatten to Program events, assigning dense adjacency and
	// graph structures from the parser's pointer-based ones.
	for _, se := range l.parsed.Events {
		ev := &program.Event{
			WaitMS:  se.WaitMS,
			VoiceID: program.VoiceID(se.VoiceID),
		}
		if se.Operator != nil {
			od, params := l.buildOperatorData(se.Operator)
			ev.Operator = od
			ev.Params |= params
		}
		if se.Voice != nil {
			vd, params := l.buildVoiceData(se.Voice)
			ev.Voice = vd
			ev.Params |= params
		}
		events = append(events, ev)
	}

	prog := &program.Program{
		Events:        events,
		OperatorCount: l.parsed.OperatorN,
		VoiceCount:    l.parsed.VoiceN,
		Name:          l.parsed.Name,
		Options:       l.parsed.Options,
	}
	if prog.VoiceCount > 1 {
		prog.Flags |= program.FlagAmpDivVoices
	}
	return prog, l.diags, nil
}

// assignLevel walks an operator's modulator lists to compute the
// deepest recursion level beneath it, matching the original's
// increasing-accumulator-index scratch buffer scheme: a carrier is
// level 0, its modulators level 1, their modulators level 2, etc.
func (l *linker) assignLevel(op *score.Operator, level int, visiting map[int]bool) {
	if visiting[op.ID] {
		l.warnf("operator graph contains a cycle at operator %d", op.ID)
		return
	}
	visiting[op.ID] = true
	if cur, ok := l.opLevel[op.ID]; !ok || level > cur {
		l.opLevel[op.ID] = level
	}
	for _, m := range op.FMods {
		l.assignLevel(m, level+1, visiting)
	}
	for _, m := range op.PMods {
		l.assignLevel(m, level+1, visiting)
	}
	for _, m := range op.AMods {
		l.assignLevel(m, level+1, visiting)
	}
	delete(visiting, op.ID)
}

func (l *linker) buildOperatorData(op *score.Operator) (*program.OperatorData, program.EventParams) {
	od := &program.OperatorData{OperatorID: program.OperatorID(op.ID)}
	var params program.EventParams

	if op.WaveSet {
		od.Wave = op.Wave
		params |= program.PWave
	}
	if op.TimeSet {
		if op.TimeInf {
			od.TimeMS = program.TimeInf
		} else {
			od.TimeMS = op.TimeMS
		}
		params |= program.PTime
	}
	if op.SilenceSet {
		od.SilenceMS = op.SilenceMS
		params |= program.PSilence
	}
	if op.FreqSet {
		od.Freq = op.Freq.V0
		params |= program.PFreq
		if op.Freq.Flags&program.RampSlope != 0 {
			od.ValitFreq = op.Freq
			params |= program.PValitFreq
		}
	}
	if op.DynFreqSet {
		od.DynFreq = op.DynFreq
		params |= program.PDynFreq
	}
	if op.PhaseSet {
		od.Phase = op.Phase
		params |= program.PPhase
	}
	if op.AmpSet {
		od.Amp = op.Amp.V0
		params |= program.PAmp
		if op.Amp.Flags&program.RampSlope != 0 {
			od.ValitAmp = op.Amp
			params |= program.PValitAmp
		}
	}
	if op.DynAmpSet {
		od.DynAmp = op.DynAmp
		params |= program.PDynAmp
	}

	var attr program.OpAttr
	if op.FreqRatio {
		attr |= program.AttrFreqRatio
	}
	if op.DynFreqRatio {
		attr |= program.AttrDynFreqRatio
	}
	if op.FreqSet && op.Freq.Flags&program.RampSlope != 0 {
		attr |= program.AttrValitFreq
		if op.Freq.Flags&program.RampSlopeRatio != 0 {
			attr |= program.AttrValitFreqRatio
		}
	}
	if op.AmpSet && op.Amp.Flags&program.RampSlope != 0 {
		attr |= program.AttrValitAmp
	}
	if attr != 0 {
		od.Attr = attr
		params |= program.POpAttr
	}

	if op.AdjcsSet {
		od.Adjcs = &program.Adjacency{
			FMods: toIDs(op.FMods),
			PMods: toIDs(op.PMods),
			AMods: toIDs(op.AMods),
			Level: l.opLevel[op.ID],
		}
		params |= program.PAdjcs
	}

	return od, params
}

func toIDs(ops []*score.Operator) []program.OperatorID {
	if len(ops) == 0 {
		return nil
	}
	ids := make([]program.OperatorID, len(ops))
	for i, o := range ops {
		ids[i] = program.OperatorID(o.ID)
	}
	return ids
}

func (l *linker) buildVoiceData(v *score.Voice) (*program.VoiceData, program.EventParams) {
	vd := &program.VoiceData{}
	var params program.EventParams
	if v.GraphSet {
		vd.Graph = &program.Graph{Ops: toIDs(v.Graph)}
		params |= program.PGraph
	}
	if v.PanningSet {
		vd.Panning = v.Panning
		params |= program.PPanning
	}
	if v.ValitPanningSet {
		vd.ValitPanning = v.ValitPanning
		params |= program.PValitPanning
		vd.Attr |= program.VoAttrValitPanning
		params |= program.PVoAttr
	}
	return vd, params
}
