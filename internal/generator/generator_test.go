package generator

import (
	"testing"

	"github.com/cbegin/sgen-go/internal/linker"
	"github.com/cbegin/sgen-go/internal/program"
	"github.com/cbegin/sgen-go/internal/score"
)

func compile(t *testing.T, src string) *program.Program {
	t.Helper()
	parsed, _, err := score.Parse([]byte(src), score.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog, _, err := linker.Link(parsed)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	return prog
}

func TestRunProducesNonSilentOutputForSimpleTone(t *testing.T) {
	prog := compile(t, "Osin f440 a0.5 t500")
	gen := New(prog, 8000)
	out := make([]int16, 400) // 200 frames
	wrote, _ := gen.Run(out, 200)
	if wrote == 0 {
		t.Fatal("expected at least some frames written")
	}
	nonZero := false
	for _, s := range out {
		if s != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Fatal("expected a non-silent 440Hz tone, got all zero samples")
	}
}

func TestPanLawFullRightSilencesLeftChannel(t *testing.T) {
	ev := &program.Event{
		VoiceID: 0,
		Params:  program.PGraph | program.PPanning | program.PWave | program.PTime | program.PFreq | program.PAmp,
		Voice: &program.VoiceData{
			Graph:   &program.Graph{Ops: []program.OperatorID{0}},
			Panning: 1,
		},
		Operator: &program.OperatorData{
			OperatorID: 0,
			Wave:       program.WaveSin,
			TimeMS:     100,
			Freq:       440,
			Amp:        0.8,
		},
	}
	prog := &program.Program{
		Events:        []*program.Event{ev},
		OperatorCount: 1,
		VoiceCount:    1,
	}
	gen := New(prog, 8000)
	out := make([]int16, 200) // 100 frames
	gen.Run(out, 100)

	for i := 0; i < 100; i++ {
		left := out[i*2]
		if left != 0 {
			t.Fatalf("frame %d: left channel = %d, want 0 under full-right panning", i, left)
		}
	}
	anyRight := false
	for i := 0; i < 100; i++ {
		if out[i*2+1] != 0 {
			anyRight = true
			break
		}
	}
	if !anyRight {
		t.Fatal("expected non-zero samples on the right channel")
	}
}

func TestGeneratorReportsCompletionOfFiniteProgram(t *testing.T) {
	prog := compile(t, "Osin f440 a0.5 t10")
	gen := New(prog, 8000)
	buf := make([]int16, 32)
	more := true
	iterations := 0
	for more && iterations < 50 {
		_, m := gen.Run(buf, 16)
		more = m
		iterations++
	}
	if more {
		t.Fatal("expected the generator to report completion within a bounded number of calls")
	}
}

func TestFMModulationAudiblyDiffersFromPureTone(t *testing.T) {
	plain := compile(t, "Osin f220 a0.5 t50")
	modulated := compile(t, "Osin f220 a0.5 t50 f~[Osin f440 a1.0]")

	genPlain := New(plain, 8000)
	genMod := New(modulated, 8000)

	outPlain := make([]int16, 800)
	outMod := make([]int16, 800)
	genPlain.Run(outPlain, 400)
	genMod.Run(outMod, 400)

	differs := false
	for i := range outPlain {
		if outPlain[i] != outMod[i] {
			differs = true
			break
		}
	}
	if !differs {
		t.Fatal("expected FM modulation to audibly change the carrier's output")
	}
}
