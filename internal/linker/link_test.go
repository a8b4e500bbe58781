package linker

import (
	"testing"

	"github.com/cbegin/sgen-go/internal/program"
	"github.com/cbegin/sgen-go/internal/score"
)

func TestDefaultDurationFillsNewOperators(t *testing.T) {
	src := "Osin f440"
	parsed, _, err := score.Parse([]byte(src), score.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog, _, err := Link(parsed)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if len(prog.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(prog.Events))
	}
	od := prog.Events[0].Operator
	if prog.Events[0].Params&program.PTime == 0 {
		t.Fatal("expected PTime to be set by default-duration fill")
	}
	if od.TimeMS != 1000 {
		t.Fatalf("TimeMS = %d, want the parser's 1000ms ambient default", od.TimeMS)
	}
}

func TestSilenceFoldsIntoTime(t *testing.T) {
	src := "Osin t500 s100"
	parsed, _, err := score.Parse([]byte(src), score.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog, _, err := Link(parsed)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	od := prog.Events[0].Operator
	if od.TimeMS != 600 {
		t.Fatalf("TimeMS = %d, want 500+100=600 after silence fold", od.TimeMS)
	}
	if od.SilenceMS != 100 {
		t.Fatalf("SilenceMS = %d, want 100", od.SilenceMS)
	}
}

func TestInfiniteTimeSkipsSilenceFold(t *testing.T) {
	// 'ti' is only reachable from the grammar on a nested modulator
	// operator (score.Parse rejects it at the top level), but the
	// silence-fold behavior it triggers is a linker concern independent
	// of nesting, so this builds the tentative graph by hand.
	op := &score.Operator{ID: 0, TimeSet: true, TimeInf: true, SilenceMS: 100, SilenceSet: true}
	voice := &score.Voice{ID: 0, Graph: []*score.Operator{op}, GraphSet: true}
	parsed := &score.Parsed{
		Events:    []*score.Event{{VoiceID: 0, Voice: voice, Operator: op, DefaultMS: 1000}},
		OperatorN: 1,
		VoiceN:    1,
		Options:   program.DefaultScriptOptions(),
	}
	prog, _, err := Link(parsed)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	od := prog.Events[0].Operator
	if od.TimeMS != program.TimeInf {
		t.Fatalf("TimeMS = %d, want TimeInf for an infinite-duration operator", od.TimeMS)
	}
}

func TestAdjacencyLevelsIncreaseWithDepth(t *testing.T) {
	src := "Osin f440 f~[Osin f220 p+[Osin f110]]"
	parsed, _, err := score.Parse([]byte(src), score.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog, _, err := Link(parsed)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	var levels []int
	for _, ev := range prog.Events {
		if ev.Operator != nil && ev.Operator.Adjcs != nil {
			levels = append(levels, ev.Operator.Adjcs.Level)
		}
	}
	if len(levels) != 2 {
		t.Fatalf("got %d operators with adjacency, want 2 (carrier + fmod)", len(levels))
	}
	// carrier (level 0) is linked last in this script, its fmod (level 1)
	// and that fmod's own pmod (level 2, no further adjacency of its own)
	// come first in document order.
	foundZero, foundOne := false, false
	for _, l := range levels {
		if l == 0 {
			foundZero = true
		}
		if l == 1 {
			foundOne = true
		}
	}
	if !foundZero || !foundOne {
		t.Fatalf("levels = %v, want one 0 (carrier) and one 1 (its fmod)", levels)
	}
}

func TestVoiceCountAboveOneEnablesAmpDivVoices(t *testing.T) {
	src := "Osin f440\nOsin f220"
	parsed, _, err := score.Parse([]byte(src), score.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog, _, err := Link(parsed)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if prog.Flags&program.FlagAmpDivVoices == 0 {
		t.Fatal("expected FlagAmpDivVoices to be set automatically for a multi-voice program")
	}
}

func TestGraphCycleReportsDiagnosticInsteadOfHanging(t *testing.T) {
	// A genuine operator cycle can't be written directly through the
	// script grammar (modulators are always freshly declared), so this
	// exercises assignLevel's cycle guard directly against a hand-built
	// score graph.
	a := &score.Operator{ID: 0}
	b := &score.Operator{ID: 1}
	a.FMods = []*score.Operator{b}
	b.FMods = []*score.Operator{a}
	l := &linker{opLevel: make(map[int]int)}
	l.assignLevel(a, 0, make(map[int]bool))
	if len(l.diags) == 0 {
		t.Fatal("expected a diagnostic reporting the operator-graph cycle")
	}
}
