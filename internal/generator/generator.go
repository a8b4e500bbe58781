// Package generator implements the sample-accurate render loop: given
// a linked program.Program, it produces interleaved stereo 16-bit PCM
// one call at a time, resuming exactly where the previous call left
// off (events, voices, and every operator's running oscillator phase
// and ramp position persist across calls).
package generator

import (
	"math"

	"github.com/cbegin/sgen-go/internal/program"
)

// bufLen bounds how many samples are generated per operator recursion
// pass before voice/panning mixing runs again, matching the scripted
// original's fixed sub-block size.
const bufLen = 256

type operatorNode struct {
	wave    program.Wave
	osc     oscillator
	time    int64 // samples remaining; program.TimeInf runs until carriers finish
	silence int64
	freq    float64
	dynFreq float64
	amp     float64
	dynAmp  float64
	attr    program.OpAttr

	valitFreq rampState
	valitAmp  rampState

	fmods, pmods, amods []program.OperatorID

	outBuf  []float64
	freqBuf []float64
	ampBuf  []float64
}

type voiceNode struct {
	ops             []program.OperatorID
	panning         float64
	valitPanning    rampState
	hasValitPanning bool
	initialized     bool
	active          bool
	pos             int64
}

// Generator is a program's live playback state. It is not safe for
// concurrent use: callers must serialize calls to Run, typically from
// a single audio pull thread (see internal/audio).
type Generator struct {
	srate int
	coeff float64

	operators []operatorNode
	voices    []voiceNode

	events           []*program.Event
	eventWaitSamples []int64
	eventIdx         int
	eventPos         int64
	voiceCursor      int

	ampScale float64
}

// New builds playback state for prog at the given sample rate. The
// Generator is immediately ready for Run; it does not need to be told
// when the program "starts".
func New(prog *program.Program, srate int) *Generator {
	g := &Generator{
		srate:    srate,
		coeff:    oscCoeff(srate),
		events:   prog.Events,
		ampScale: 1,
	}
	g.operators = make([]operatorNode, prog.OperatorCount)
	for i := range g.operators {
		g.operators[i].outBuf = make([]float64, bufLen)
		g.operators[i].freqBuf = make([]float64, bufLen)
		g.operators[i].ampBuf = make([]float64, bufLen)
	}
	g.voices = make([]voiceNode, prog.VoiceCount)
	g.eventWaitSamples = make([]int64, len(prog.Events))
	for i, e := range prog.Events {
		g.eventWaitSamples[i] = msToSamples(e.WaitMS, srate)
	}
	if prog.Flags&program.FlagAmpDivVoices != 0 && prog.VoiceCount > 0 {
		g.ampScale = 1 / float64(prog.VoiceCount)
	}
	return g
}

func timeSamples(ms int64, srate int) int64 {
	if ms == program.TimeInf {
		return program.TimeInf
	}
	return msToSamples(ms, srate)
}

func (g *Generator) handleEvent(e *program.Event) {
	if od := e.Operator; od != nil {
		on := &g.operators[od.OperatorID]
		if e.Params&program.PWave != 0 {
			on.wave = od.Wave
		}
		if e.Params&program.POpAttr != 0 {
			attr := od.Attr
			if e.Params&program.PFreq == 0 {
				attr &^= program.AttrFreqRatio
				attr |= on.attr & program.AttrFreqRatio
			}
			on.attr = attr
		}
		if e.Params&program.PTime != 0 {
			on.time = timeSamples(od.TimeMS, g.srate)
		}
		if e.Params&program.PSilence != 0 {
			on.silence = msToSamples(od.SilenceMS, g.srate)
		}
		if e.Params&program.PFreq != 0 {
			on.freq = od.Freq
		}
		if e.Params&program.PValitFreq != 0 {
			on.valitFreq = newRampState(od.ValitFreq, g.srate)
			on.valitFreq.v0 = on.freq
		}
		if e.Params&program.PDynFreq != 0 {
			on.dynFreq = od.DynFreq
		}
		if e.Params&program.PPhase != 0 {
			on.osc.setPhaseFraction(od.Phase)
		}
		if e.Params&program.PAmp != 0 {
			on.amp = od.Amp
		}
		if e.Params&program.PValitAmp != 0 {
			on.valitAmp = newRampState(od.ValitAmp, g.srate)
			on.valitAmp.v0 = on.amp
		}
		if e.Params&program.PDynAmp != 0 {
			on.dynAmp = od.DynAmp
		}
		if e.Params&program.PAdjcs != 0 {
			on.fmods = od.Adjcs.FMods
			on.pmods = od.Adjcs.PMods
			on.amods = od.Adjcs.AMods
		}
	}
	if vd := e.Voice; vd != nil {
		vn := &g.voices[e.VoiceID]
		if e.Params&program.PGraph != 0 {
			vn.ops = vd.Graph.Ops
		}
		if e.Params&program.PPanning != 0 {
			vn.panning = vd.Panning
		}
		if e.Params&program.PValitPanning != 0 {
			vn.valitPanning = newRampState(vd.ValitPanning, g.srate)
			vn.valitPanning.v0 = vn.panning
			vn.hasValitPanning = true
		}
		vn.initialized = true
		vn.active = true
		vn.pos = 0
		if int(e.VoiceID) < g.voiceCursor {
			g.voiceCursor = int(e.VoiceID)
		}
	}
}

// sumModulators recursively renders len(ids)'s operators over blockLen
// samples and returns their sample-wise sum, or nil if ids is empty.
func (g *Generator) sumModulators(ids []program.OperatorID, blockLen int) []float64 {
	if len(ids) == 0 {
		return nil
	}
	mix := make([]float64, blockLen)
	for _, id := range ids {
		child := &g.operators[id]
		if child.time == 0 {
			continue
		}
		g.runBlock(child, blockLen, false)
		for i := 0; i < blockLen; i++ {
			mix[i] += child.outBuf[i]
		}
	}
	return mix
}

// runBlock renders up to blockLen samples for operator on, recursing
// into its modulator lists first. It returns the number of samples
// actually produced (less than blockLen only if on's remaining time or
// silence ran out mid-block).
func (g *Generator) runBlock(on *operatorNode, blockLen int, acc bool) int {
	buf := on.outBuf[:blockLen]
	silenceLen := 0
	if on.silence > 0 {
		silenceLen = blockLen
		if on.silence < int64(blockLen) {
			silenceLen = int(on.silence)
		}
		if !acc {
			for i := 0; i < silenceLen; i++ {
				buf[i] = 0
			}
		}
		on.silence -= int64(silenceLen)
		if on.time != program.TimeInf {
			on.time -= int64(silenceLen)
		}
	}
	activeLen := blockLen - silenceLen
	if activeLen <= 0 {
		return silenceLen
	}
	skipLen := 0
	if on.time != program.TimeInf && on.time < int64(activeLen) {
		skipLen = activeLen - int(on.time)
		activeLen = int(on.time)
	}
	start := silenceLen
	end := silenceLen + activeLen

	freqMod := g.sumModulators(on.fmods, blockLen)
	if on.attr&program.AttrValitFreq != 0 && on.attr&program.AttrValitFreqRatio != 0 {
		if on.attr&program.AttrFreqRatio == 0 && freqMod != nil && freqMod[start] != 0 {
			on.attr |= program.AttrFreqRatio
			on.freq /= freqMod[start]
		}
	} else if on.attr&program.AttrFreqRatio != 0 && on.attr&program.AttrValitFreq != 0 && freqMod != nil {
		on.attr &^= program.AttrFreqRatio
		on.freq *= freqMod[start]
	}

	freqBuf := on.freqBuf[:blockLen]
	if on.attr&program.AttrValitFreq != 0 {
		on.valitFreq.v0 = on.freq
		var mod []float64
		if freqMod != nil {
			mod = freqMod[start:end]
		}
		stillRunning := on.valitFreq.run(freqBuf[start:end], activeLen, mod)
		on.freq = on.valitFreq.v0
		if !stillRunning {
			on.attr &^= program.AttrValitFreq | program.AttrValitFreqRatio
		}
	} else {
		for i := start; i < end; i++ {
			v := on.freq
			if freqMod != nil {
				dynScaled := on.dynFreq
				if on.attr&program.AttrDynFreqRatio != 0 {
					dynScaled *= v
				}
				v += (dynScaled - v) * freqMod[i]
			}
			freqBuf[i] = v
		}
	}

	useAmpBuf := len(on.amods) > 0 || on.attr&program.AttrValitAmp != 0
	var ampBuf []float64
	if useAmpBuf {
		ampBuf = on.ampBuf[:blockLen]
		if on.attr&program.AttrValitAmp != 0 {
			on.valitAmp.v0 = on.amp
			stillRunning := on.valitAmp.run(ampBuf[start:end], activeLen, nil)
			on.amp = on.valitAmp.v0
			if !stillRunning {
				on.attr &^= program.AttrValitAmp
			}
		} else {
			for i := start; i < end; i++ {
				ampBuf[i] = on.amp
			}
		}
		if len(on.amods) > 0 {
			ampMod := g.sumModulators(on.amods, blockLen)
			diff := on.dynAmp - on.amp
			for i := start; i < end; i++ {
				ampBuf[i] = on.amp + ampMod[i]*diff
			}
		}
	}

	phaseMod := g.sumModulators(on.pmods, blockLen)

	for i := start; i < end; i++ {
		var pm float64
		if phaseMod != nil {
			pm = phaseMod[i]
		}
		amp := on.amp
		if useAmpBuf {
			amp = ampBuf[i]
		}
		s := on.osc.next(on.wave, g.coeff, freqBuf[i], pm) * amp
		if acc {
			buf[i] += s
		} else {
			buf[i] = s
		}
	}
	if skipLen > 0 && !acc {
		for i := end; i < blockLen; i++ {
			buf[i] = 0
		}
	}
	if on.time != program.TimeInf {
		on.time -= int64(activeLen)
	}
	return silenceLen + activeLen
}

func clampAdd16(existing int16, add float64) int16 {
	sum := int32(existing) + int32(math.Round(add*32767))
	if sum > 32767 {
		return 32767
	}
	if sum < -32768 {
		return -32768
	}
	return int16(sum)
}

// runVoice renders a voice's carriers and mixes them, pan-split, into
// the interleaved stereo slice out. The pan law matches the scripted
// original exactly: p = s*pan; left += s-p; right += p.
func (g *Generator) runVoice(vn *voiceNode, out []int16, bufFrames int) int {
	if len(vn.ops) == 0 {
		return 0
	}
	timeLeft := int64(0)
	for _, id := range vn.ops {
		on := &g.operators[id]
		if on.time == 0 {
			continue
		}
		if on.time != program.TimeInf && on.time > timeLeft {
			timeLeft = on.time
		}
	}
	if timeLeft > int64(bufFrames) {
		timeLeft = int64(bufFrames)
	}
	ret := 0
	remaining := int(timeLeft)
	for remaining > 0 {
		blockLen := remaining
		if blockLen > bufLen {
			blockLen = bufLen
		}
		remaining -= blockLen

		genLen := 0
		for _, id := range vn.ops {
			on := &g.operators[id]
			if on.time == 0 {
				continue
			}
			n := g.runBlock(on, blockLen, false)
			if n > genLen {
				genLen = n
			}
		}
		if genLen == 0 {
			break
		}

		var panBuf []float64
		if vn.hasValitPanning {
			panBuf = make([]float64, genLen)
			vn.valitPanning.v0 = vn.panning
			stillRunning := vn.valitPanning.run(panBuf, genLen, nil)
			vn.panning = vn.valitPanning.v0
			if !stillRunning {
				vn.hasValitPanning = false
			}
		}
		for i := 0; i < genLen; i++ {
			var s float64
			for _, id := range vn.ops {
				s += g.operators[id].outBuf[i]
			}
			s *= g.ampScale
			pan := vn.panning
			if panBuf != nil {
				pan = panBuf[i]
			}
			p := s * pan
			outIdx := (ret + i) * 2
			out[outIdx+0] = clampAdd16(out[outIdx+0], s-p)
			out[outIdx+1] = clampAdd16(out[outIdx+1], p)
		}
		ret += genLen
	}
	vn.pos += int64(ret)
	finished := true
	for _, id := range vn.ops {
		if g.operators[id].time != 0 {
			finished = false
			break
		}
	}
	if finished {
		vn.active = false
	}
	return ret
}

// Run renders up to frames stereo frames into out (interleaved
// left/right int16), advancing generator state by exactly that many
// frames (or fewer, only once playback has genuinely ended). It
// reports how many frames it wrote and whether more signal remains.
func (g *Generator) Run(out []int16, frames int) (wrote int, more bool) {
	for i := range out {
		out[i] = 0
	}
	remLen := frames
	bufFrameOff := 0
	total := 0

	for {
		skipLen := 0
		for g.eventIdx < len(g.events) {
			wait := g.eventWaitSamples[g.eventIdx]
			if g.eventPos < wait {
				remaining := wait - g.eventPos
				if remaining < int64(remLen) {
					skipLen = remLen - int(remaining)
					remLen = int(remaining)
				}
				g.eventPos += int64(remLen)
				break
			}
			g.handleEvent(g.events[g.eventIdx])
			g.eventIdx++
			g.eventPos = 0
		}

		lastLen := 0
		for i := g.voiceCursor; i < len(g.voices); i++ {
			vn := &g.voices[i]
			if !vn.active {
				continue
			}
			voiceLen := g.runVoice(vn, out[bufFrameOff*2:], remLen)
			if voiceLen > lastLen {
				lastLen = voiceLen
			}
		}
		total += lastLen

		if skipLen == 0 {
			break
		}
		bufFrameOff += remLen
		remLen = skipLen
	}

	for {
		if g.voiceCursor == len(g.voices) {
			if g.eventIdx != len(g.events) {
				break
			}
			return total, false
		}
		vn := &g.voices[g.voiceCursor]
		if !vn.initialized || vn.active {
			break
		}
		g.voiceCursor++
	}
	return frames, true
}
