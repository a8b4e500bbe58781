// Package sgen compiles and renders programs written in a compact,
// line-oriented scripting language for FM/AM/PM operator-graph audio
// synthesis. Compile turns source text into a linked program; Render
// (or a Generator obtained directly) turns a linked program into
// sample-accurate stereo PCM.
package sgen

import (
	"github.com/cbegin/sgen-go/internal/diag"
	"github.com/cbegin/sgen-go/internal/generator"
	"github.com/cbegin/sgen-go/internal/linker"
	"github.com/cbegin/sgen-go/internal/program"
	"github.com/cbegin/sgen-go/internal/score"
)

// Diagnostic reports a single compile-time issue. Compile's error
// return, not a Diagnostic, signals input so malformed that no Program
// could be produced at all.
type Diagnostic = diag.Diagnostic

// Program is a fully linked, sample-rate-independent script ready for
// playback; see internal/program for its structure.
type Program = program.Program

// Options configures Compile.
type Options struct {
	// Name labels the resulting Program (Program.Name); purely
	// cosmetic: neither diagnostics nor the WAV output include it.
	Name string
}

// Compile parses and links script source into a Program. Diagnostics
// accumulate from both the parse and link stages; err is non-nil only
// when src could not be turned into any program at all.
func Compile(src []byte, opts Options) (*program.Program, []Diagnostic, error) {
	parsed, diags, err := score.Parse(src, score.Options{Name: opts.Name})
	if err != nil {
		return nil, diags, err
	}
	prog, linkDiags, err := linker.Link(parsed)
	diags = append(diags, linkDiags...)
	if err != nil {
		return nil, diags, err
	}
	return prog, diags, nil
}

// NewGenerator returns a live render loop for prog at the given sample
// rate. Callers drive it with repeated Run calls, e.g. from a Driver's
// pull callback or an offline renderer.
func NewGenerator(prog *program.Program, sampleRate int) *generator.Generator {
	return generator.New(prog, sampleRate)
}

// renderChunkFrames bounds how many frames Render asks the generator
// for per Run call; arbitrary, just small enough to keep Render's own
// peak allocation modest for long programs.
const renderChunkFrames = 4096

// Render fully renders prog to interleaved stereo int16 PCM at
// sampleRate, growing the result until the program signals it has no
// more signal to give or maxFrames is reached (0 means unbounded,
// appropriate only for programs with no infinite-duration operator).
func Render(prog *program.Program, sampleRate int, maxFrames int) []int16 {
	gen := generator.New(prog, sampleRate)
	out := make([]int16, 0, renderChunkFrames*2)
	buf := make([]int16, renderChunkFrames*2)
	total := 0
	for maxFrames == 0 || total < maxFrames {
		want := renderChunkFrames
		if maxFrames != 0 && maxFrames-total < want {
			want = maxFrames - total
		}
		wrote, more := gen.Run(buf[:want*2], want)
		out = append(out, buf[:wrote*2]...)
		total += wrote
		if !more {
			break
		}
	}
	return out
}

// Driver is the external collaborator that turns a Generator's output
// into audible sound; internal/audio.Player implements it against
// ebiten's audio context.
type Driver interface {
	Play()
	Pause()
	Stop() error
}
