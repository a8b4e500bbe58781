package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Generator is the minimal surface StreamReader needs to pull audio: a
// program-driven render loop that fills a stereo int16 buffer and
// reports whether it has more signal to give. internal/generator.Generator
// satisfies this without either package importing the other.
type Generator interface {
	Run(out []int16, frames int) (wrote int, more bool)
}

type StreamReader struct {
	mu    sync.Mutex
	gen   Generator
	ibuf  []int16
	fbuf  []float32
	ended bool
}

func NewStreamReader(gen Generator) *StreamReader {
	return &StreamReader{gen: gen}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	if r.ended {
		return 0, io.EOF
	}
	need := frames * 2
	if cap(r.ibuf) < need {
		r.ibuf = make([]int16, need)
		r.fbuf = make([]float32, need)
	}
	r.ibuf = r.ibuf[:need]
	r.fbuf = r.fbuf[:need]
	wrote, more := r.gen.Run(r.ibuf, frames)
	wroteSamples := wrote * 2
	for i := 0; i < wroteSamples; i++ {
		r.fbuf[i] = float32(r.ibuf[i]) / 32768
	}
	for i := wroteSamples; i < need; i++ {
		r.fbuf[i] = 0
	}
	for i := 0; i < need; i++ {
		u := math.Float32bits(r.fbuf[i])
		binary.LittleEndian.PutUint32(p[i*4:], u)
	}
	if !more {
		r.ended = true
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioContextErr  error
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioContextErr != nil {
		return nil, audioContextErr
	}
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

func NewPlayer(sampleRate int, gen Generator) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(gen)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{
		player: pl,
		reader: reader,
	}, nil
}

func (p *Player) Play()  { p.player.Play() }
func (p *Player) Pause() { p.player.Pause() }
func (p *Player) IsPlaying() bool {
	return p.player.IsPlaying()
}

// Position returns the current playback position (what the listener actually hears).
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}
