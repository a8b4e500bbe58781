// Command sgen compiles a script and either plays it back live or
// renders it to a WAV file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cbegin/sgen-go"
	intaudio "github.com/cbegin/sgen-go/internal/audio"
	"github.com/cbegin/sgen-go/internal/wavwriter"
)

const defaultScript = "Osin f440 a0.5 t500"

func main() {
	var (
		sampleRate = flag.Int("r", 44100, "output sample rate")
		scriptPath = flag.String("f", "", "path to a script file")
		inline     = flag.String("e", "", "inline script text")
		outPath    = flag.String("o", "", "render to this WAV file instead of playing live")
		maxSeconds = flag.Float64("m", 60, "render/playback time limit in seconds (0 = unbounded)")
		name       = flag.String("n", "", "program name, stored on the compiled program")
	)
	flag.Parse()

	src, err := resolveInput(*scriptPath, *inline)
	if err != nil {
		log.Fatal(err)
	}

	prog, diags, err := sgen.Compile([]byte(src), sgen.Options{Name: *name})
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "%s:%d:%d: %s\n", d.Kind, d.Line, d.Col, d.Message)
	}
	if err != nil {
		log.Fatal(err)
	}

	maxFrames := 0
	if *maxSeconds > 0 {
		maxFrames = int(*maxSeconds * float64(*sampleRate))
	}

	if *outPath != "" {
		if err := renderToFile(prog, *sampleRate, maxFrames, *outPath); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := playLive(prog, *sampleRate, maxFrames); err != nil {
		log.Fatal(err)
	}
}

func resolveInput(path, inline string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return defaultScript, nil
}

func renderToFile(prog *sgen.Program, sampleRate, maxFrames int, path string) error {
	samples := sgen.Render(prog, sampleRate, maxFrames)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := wavwriter.New(f, 2, sampleRate)
	if err != nil {
		return err
	}
	if err := w.WriteSamples(samples); err != nil {
		return err
	}
	return w.Close()
}

func playLive(prog *sgen.Program, sampleRate, maxFrames int) error {
	gen := sgen.NewGenerator(prog, sampleRate)
	remaining := -1
	if maxFrames > 0 {
		remaining = maxFrames
	}
	bounded := &boundedGenerator{gen: gen, remaining: remaining}

	player, err := intaudio.NewPlayer(sampleRate, bounded)
	if err != nil {
		return err
	}
	player.Play()
	for player.IsPlaying() {
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

// boundedGenerator caps a generator's output at remaining frames (or
// is unbounded if remaining < 0), satisfying internal/audio.Generator.
type boundedGenerator struct {
	gen interface {
		Run(out []int16, frames int) (int, bool)
	}
	remaining int
}

func (b *boundedGenerator) Run(out []int16, frames int) (int, bool) {
	if b.remaining >= 0 && frames > b.remaining {
		frames = b.remaining
	}
	wrote, more := b.gen.Run(out, frames)
	if b.remaining >= 0 {
		b.remaining -= wrote
		if b.remaining <= 0 {
			more = false
		}
	}
	return wrote, more
}
