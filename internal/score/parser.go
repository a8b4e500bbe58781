package score

import (
	"fmt"

	"github.com/cbegin/sgen-go/internal/diag"
	"github.com/cbegin/sgen-go/internal/lexsrc"
	"github.com/cbegin/sgen-go/internal/numexpr"
	"github.com/cbegin/sgen-go/internal/program"
	"github.com/cbegin/sgen-go/internal/symtab"
)

// Options configures parsing. The zero value is usable.
type Options struct {
	// Name labels the resulting Parsed, carried through to Program.Name;
	// purely cosmetic, the parser itself does not use it.
	Name string
}

type labelEntry struct {
	op    *Operator
	voice *Voice
}

type parser struct {
	src     *lexsrc.Source
	nums    *numexpr.Reader
	symbols *symtab.Table
	labels  map[int]labelEntry // symtab id -> latest binding

	nextOpID, nextVoiceID int
	options               program.ScriptOptions
	pendingWaitMS         int64

	events  []*Event
	diags   []diag.Diagnostic
	stopped bool
}

// Parse compiles script source into a tentative, timing-unresolved
// event stream. A non-nil error is returned only for conditions that
// make any result meaningless (an unreadable script); everything else
// is reported through the returned diagnostics while parsing continues
// on a best-effort basis.
func Parse(src []byte, opts Options) (*Parsed, []diag.Diagnostic, error) {
	p := &parser{
		src:     lexsrc.New(src),
		symbols: symtab.New(),
		labels:  make(map[int]labelEntry),
		options: program.DefaultScriptOptions(),
	}
	p.nums = &numexpr.Reader{Symbol: numexpr.NoteSymbol(p.a4FreqFn(), p.warnFn())}

	for !p.stopped && !p.src.AtEnd() {
		p.src.SkipWSAndNewlines()
		if p.src.AtEnd() {
			break
		}
		c, _ := p.src.Peek()
		switch {
		case c == '#':
			p.parseDirective()
		case c == 'S':
			p.parseSettings()
		case c == 'O':
			p.parseNewOperator()
		case c == '@':
			p.parseReference()
		case c == '\\':
			p.parseWait()
		case c == '|':
			p.src.Advance()
			p.closeGroup()
		default:
			line, col := p.src.Pos()
			p.errf(diag.Syntactic, line, col, "unexpected character %q", c)
			p.src.Advance() // always make progress
		}
	}

	return &Parsed{
		Events:    p.events,
		OperatorN: p.nextOpID,
		VoiceN:    p.nextVoiceID,
		Name:      opts.Name,
		Options:   p.options,
	}, p.diags, nil
}

func (p *parser) warnFn() func(string) {
	return func(msg string) {
		line, col := p.src.Pos()
		p.diags = append(p.diags, diag.Diagnostic{Kind: diag.Semantic, Line: line, Col: col, Message: msg})
	}
}

// a4FreqFn returns the getter numexpr.NoteSymbol uses to read the
// current tuning reference, so an `S n<hz>` directive earlier in the
// script affects every note name scanned after it.
func (p *parser) a4FreqFn() func() float64 {
	return func() float64 { return p.options.A4FreqHz }
}

func (p *parser) errf(kind diag.Kind, line, col int, format string, args ...any) {
	p.diags = append(p.diags, diag.Diagnostic{Kind: kind, Line: line, Col: col, Message: fmt.Sprintf(format, args...)})
}

// parseDirective handles `#!` line comments and `#Q` immediate stop.
func (p *parser) parseDirective() {
	p.src.Advance() // '#'
	c, ok := p.src.Peek()
	if ok && c == 'Q' {
		p.src.Advance()
		p.stopped = true
		return
	}
	if ok && c == '!' {
		p.src.Advance()
	}
	for {
		c, ok := p.src.Peek()
		if !ok || c == '\n' {
			return
		}
		p.src.Advance()
	}
}

// parseSettings handles `S { setting_key number_expr }`, the
// ScriptOptions override sub-mode: `a` amp_mult, `f` default_freq_hz,
// `n` A4_freq_hz (tuning reference), `r` default_rel_freq, `t`
// default_time_ms.
func (p *parser) parseSettings() {
	p.src.Advance() // 'S'
	for {
		p.src.SkipWS()
		c, ok := p.src.Peek()
		if !ok {
			return
		}
		switch c {
		case 'a':
			p.src.Advance()
			v, ok, err := p.nums.ReadNumber(p.src)
			if err != nil || !ok {
				line, col := p.src.Pos()
				p.errf(diag.Syntactic, line, col, "expected number after 'S a'")
				return
			}
			p.options.AmpMult = v
		case 'f':
			p.src.Advance()
			v, ok, err := p.nums.ReadNumber(p.src)
			if err != nil || !ok {
				line, col := p.src.Pos()
				p.errf(diag.Syntactic, line, col, "expected number after 'S f'")
				return
			}
			p.options.DefaultFreqHz = v
		case 'n':
			p.src.Advance()
			v, ok, err := p.nums.ReadNumber(p.src)
			if err != nil || !ok {
				line, col := p.src.Pos()
				p.errf(diag.Syntactic, line, col, "expected number after 'S n'")
				return
			}
			if v < 1 {
				line, col := p.src.Pos()
				p.errf(diag.Semantic, line, col, "ignoring tuning frequency (Hz) below 1.0")
				continue
			}
			p.options.A4FreqHz = v
		case 'r':
			p.src.Advance()
			v, ok, err := p.nums.ReadNumber(p.src)
			if err != nil || !ok {
				line, col := p.src.Pos()
				p.errf(diag.Syntactic, line, col, "expected number after 'S r'")
				return
			}
			p.options.DefaultRelFreq = v
		case 't':
			p.src.Advance()
			v, ok, err := p.nums.ReadNumber(p.src)
			if err != nil || !ok {
				line, col := p.src.Pos()
				p.errf(diag.Syntactic, line, col, "expected number after 'S t'")
				return
			}
			if v < 0 {
				line, col := p.src.Pos()
				p.errf(diag.Semantic, line, col, "ignoring 't' with sub-zero time")
				continue
			}
			p.options.DefaultTimeMS = int64(v)
		default:
			return
		}
	}
}

func (p *parser) parseWait() {
	p.src.Advance() // '\'
	v, ok, err := p.nums.ReadNumber(p.src)
	if err != nil || !ok {
		line, col := p.src.Pos()
		p.errf(diag.Syntactic, line, col, "expected number after '\\'")
		return
	}
	p.pendingWaitMS += int64(v)
}

func (p *parser) closeGroup() {
	if len(p.events) == 0 {
		return
	}
	p.events[len(p.events)-1].GroupEnd = true
}

func (p *parser) takePendingWait() int64 {
	w := p.pendingWaitMS
	p.pendingWaitMS = 0
	return w
}

// tryReadLabel reads a `'name` label suffix, if present.
func (p *parser) tryReadLabel() (int, bool) {
	if !p.src.Try('\'') {
		return 0, false
	}
	name := p.readIdent()
	if name == "" {
		line, col := p.src.Pos()
		p.errf(diag.Syntactic, line, col, "expected label name after \"'\"")
		return 0, false
	}
	return p.symbols.Intern(name), true
}

func (p *parser) readIdent() string {
	var b []byte
	for {
		c, ok := p.src.Peek()
		if !ok || !isIdentByte(c) {
			break
		}
		p.src.Advance()
		b = append(b, c)
	}
	return string(b)
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

var waveNames = map[string]program.Wave{
	"sin": program.WaveSin,
	"srs": program.WaveSrs,
	"tri": program.WaveTri,
	"sqr": program.WaveSqr,
	"saw": program.WaveSaw,
}

var curveNames = map[string]program.RampCurve{
	"hold": program.RampHold,
	"lin":  program.RampLin,
	"exp":  program.RampExp,
	"log":  program.RampLog,
}

// readWaveName reads the keyword identifier following a wave_name
// production (`sin`/`srs`/`tri`/`sqr`/`saw`) and resolves it.
func (p *parser) readWaveName() (program.Wave, string) {
	name := p.readIdent()
	w, ok := waveNames[name]
	if !ok {
		return 0, name
	}
	return w, name
}

// parseNewOperator handles `O<wave_name><label?>` plus its param list
// and any chained composite sub-events, registering a brand new voice
// wrapping a single carrier operator.
func (p *parser) parseNewOperator() {
	p.src.Advance() // 'O'
	wave, name := p.readWaveName()
	if name == "" {
		line, col := p.src.Pos()
		p.errf(diag.Syntactic, line, col, "expected wave name after 'O'")
		return
	}
	if _, ok := waveNames[name]; !ok {
		line, col := p.src.Pos()
		p.errf(diag.Syntactic, line, col, "unknown wave name %q", name)
		return
	}

	op := &Operator{ID: p.nextOpID, Wave: wave, WaveSet: true}
	p.nextOpID++
	// A brand new operator starts from the ambient ScriptOptions
	// defaults (amp always 1.0; freq from default_freq_hz at top
	// level), overridden below by any explicit 'a'/'f' key.
	op.Amp = program.Ramp{V0: 1.0, Flags: program.RampState}
	op.AmpSet = true
	op.Freq = program.Ramp{V0: p.options.DefaultFreqHz, Flags: program.RampState}
	op.FreqSet = true

	voice := &Voice{ID: p.nextVoiceID, Graph: []*Operator{op}, GraphSet: true, Panning: 0, PanningSet: true}
	p.nextVoiceID++

	if labelID, ok := p.tryReadLabel(); ok {
		p.labels[labelID] = labelEntry{op: op, voice: voice}
	}

	p.parseParamChain(op, voice, true)
}

// parseReference handles `@label ...` (patch one existing node) and
// `@[label label ...] ...` (patch several at once with identical
// param text, the bind-scope multicast).
func (p *parser) parseReference() {
	p.src.Advance() // '@'
	if p.src.Try('[') {
		var targets []labelEntry
		var ids []int
		for {
			p.src.SkipWSAndNewlines()
			if p.src.Try(']') {
				break
			}
			name := p.readIdent()
			if name == "" {
				line, col := p.src.Pos()
				p.errf(diag.Syntactic, line, col, "expected label inside '@[...]'")
				p.src.Advance()
				continue
			}
			id := p.symbols.Intern(name)
			entry, ok := p.labels[id]
			if !ok {
				line, col := p.src.Pos()
				p.errf(diag.Semantic, line, col, "undefined label %q", name)
				continue
			}
			targets = append(targets, entry)
			ids = append(ids, id)
		}
		if len(targets) == 0 {
			return
		}
		// lexsrc has no arbitrary seek, so a bind scope's param text is
		// read once, against the first target; the same field values
		// are then applied verbatim to the remaining targets (see
		// DESIGN.md for this simplification).
		first := &Operator{ID: targets[0].op.ID, Prev: targets[0].op}
		p.parseParamChain(first, targets[0].voice, false)
		p.labels[ids[0]] = labelEntry{op: p.events[len(p.events)-1].Operator, voice: targets[0].voice}
		for i, t := range targets[1:] {
			clone := *first
			clone.ID = t.op.ID
			clone.Prev = t.op
			p.emitPatchEvent(&clone, t.voice)
			p.labels[ids[i+1]] = labelEntry{op: &clone, voice: t.voice}
		}
		return
	}
	name := p.readIdent()
	if name == "" {
		line, col := p.src.Pos()
		p.errf(diag.Syntactic, line, col, "expected label after '@'")
		return
	}
	id := p.symbols.Intern(name)
	entry, ok := p.labels[id]
	if !ok {
		line, col := p.src.Pos()
		p.errf(diag.Semantic, line, col, "undefined label %q", name)
		// still consume a param chain so parsing can resync
		p.patchExisting(labelEntry{op: &Operator{ID: -1}, voice: &Voice{ID: -1}})
		return
	}
	p.patchExisting(entry)
	entry.op = p.events[len(p.events)-1].Operator
	p.labels[id] = entry
}

func (p *parser) emitPatchEvent(op *Operator, voice *Voice) {
	ev := &Event{
		VoiceID:   voice.ID,
		Operator:  op,
		DefaultMS: p.options.DefaultTimeMS,
	}
	p.events = append(p.events, ev)
}

func (p *parser) patchExisting(entry labelEntry) {
	newOp := &Operator{ID: entry.op.ID, Prev: entry.op}
	newVoice := entry.voice
	p.parseParamChain(newOp, newVoice, false)
}

// parseParamChain parses a statement's param list, emits its Event,
// and follows any `;` composite continuation or trailing `|`/`\`.
func (p *parser) parseParamChain(op *Operator, voice *Voice, isNewVoice bool) {
	for {
		touchedBefore := voice.Touched
		p.parseParams(op, voice, false)

		// op->amp *= sopt.ampmult is applied once per node, only
		// outside a modulator list (original_source/parser.c,
		// end_operator); parseParamChain is exclusively that
		// non-nested path, so every iteration here qualifies.
		if op.AmpSet {
			op.Amp.V0 *= p.options.AmpMult
		}

		wait := p.takePendingWait()
		ev := &Event{
			WaitMS:    wait,
			VoiceID:   voice.ID,
			Operator:  op,
			DefaultMS: p.options.DefaultTimeMS,
		}
		if isNewVoice || voice.Touched != touchedBefore {
			vs := *voice
			ev.Voice = &vs
		}
		p.events = append(p.events, ev)
		isNewVoice = false

		p.src.SkipWS()
		c, ok := p.src.Peek()
		if ok && c == '|' {
			p.src.Advance()
			ev.GroupEnd = true
			p.src.SkipWS()
			c, ok = p.src.Peek()
		}
		if !ok || c != ';' {
			return
		}
		p.src.Advance() // ';'
		op = &Operator{ID: op.ID, Prev: op}
	}
}

// parseParams consumes a whitespace-separated run of per-operator
// param keys, stopping at the first token that doesn't start one.
// voice is non-nil only in the non-nested (top-level/patch) context,
// where 'P' may update it; nested marks a modulator-list declaration,
// where 'ti' is valid but 'P' has nothing to attach to.
func (p *parser) parseParams(op *Operator, voice *Voice, nested bool) {
	for {
		p.src.SkipWS()
		c, ok := p.src.Peek()
		if !ok {
			return
		}
		switch c {
		case 'a':
			p.parseAmp(op)
		case 'f':
			p.parseFreq(op, false)
		case 'r':
			p.parseFreq(op, true)
		case 'p':
			p.parsePhase(op)
		case 'P':
			p.parsePanning(voice)
		case 's':
			p.parseSilence(op)
		case 't':
			p.parseTime(op, nested)
		case 'w':
			p.parseWave(op)
		default:
			return
		}
	}
}

// parseRampOrNumber reads either a plain number_expr or a keyed ramp
// literal `{ 'c' curve_name | 't' number | 'v' number_expr }` in any
// order, e.g. `{v880 t500 clin}`.
func (p *parser) parseRampOrNumber(ratio bool) (program.Ramp, bool) {
	p.src.SkipWS()
	if p.src.Try('{') {
		var (
			curve    program.RampCurve
			timeMS   int64
			goal     float64
			haveGoal bool
		)
		for {
			p.src.SkipWSAndNewlines()
			if p.src.Try('}') {
				break
			}
			c, ok := p.src.Peek()
			if !ok {
				line, col := p.src.Pos()
				p.errf(diag.Syntactic, line, col, "unterminated ramp literal")
				return program.Ramp{}, false
			}
			switch c {
			case 'c':
				p.src.Advance()
				name := p.readIdent()
				cv, ok := curveNames[name]
				if !ok {
					line, col := p.src.Pos()
					p.errf(diag.Syntactic, line, col, "unknown ramp curve name %q", name)
					return program.Ramp{}, false
				}
				curve = cv
			case 't':
				p.src.Advance()
				v, ok, err := p.nums.ReadNumber(p.src)
				if err != nil || !ok {
					line, col := p.src.Pos()
					p.errf(diag.Syntactic, line, col, "expected ramp time in ms after 't'")
					return program.Ramp{}, false
				}
				timeMS = int64(v)
			case 'v':
				p.src.Advance()
				v, ok, err := p.nums.ReadNumber(p.src)
				if err != nil || !ok {
					line, col := p.src.Pos()
					p.errf(diag.Syntactic, line, col, "expected ramp target value after 'v'")
					return program.Ramp{}, false
				}
				goal = v
				haveGoal = true
			default:
				line, col := p.src.Pos()
				p.errf(diag.Syntactic, line, col, "unknown ramp literal key %q", c)
				p.src.Advance()
			}
		}
		if !haveGoal {
			line, col := p.src.Pos()
			p.errf(diag.Semantic, line, col, "ramp literal missing 'v' target value")
			return program.Ramp{}, false
		}
		flags := program.RampSlope
		if ratio {
			flags |= program.RampSlopeRatio
		}
		return program.Ramp{Vt: goal, TimeMS: timeMS, Curve: curve, Flags: flags}, true
	}
	v, ok, err := p.nums.ReadNumber(p.src)
	if err != nil || !ok {
		line, col := p.src.Pos()
		p.errf(diag.Syntactic, line, col, "expected number or ramp literal")
		return program.Ramp{}, false
	}
	flags := program.RampState
	if ratio {
		flags |= program.RampStateRatio
	}
	return program.Ramp{V0: v, Flags: flags}, true
}

// parseModList reads a bracketed list of new operator declarations to
// serve as modulators, e.g. the `[Osin f440 Osin f220]` of
// `f~[Osin f440 Osin f220]`.
func (p *parser) parseModList() []*Operator {
	p.src.SkipWS()
	if !p.src.Try('[') {
		return nil
	}
	var ops []*Operator
	for {
		p.src.SkipWSAndNewlines()
		if p.src.Try(']') {
			break
		}
		c, ok := p.src.Peek()
		if !ok {
			line, col := p.src.Pos()
			p.errf(diag.Syntactic, line, col, "unterminated modulator list")
			break
		}
		if c != 'O' {
			line, col := p.src.Pos()
			p.errf(diag.Syntactic, line, col, "expected operator declaration in modulator list")
			p.src.Advance()
			continue
		}
		p.src.Advance()
		wave, name := p.readWaveName()
		if _, ok := waveNames[name]; !ok {
			line, col := p.src.Pos()
			p.errf(diag.Syntactic, line, col, "unknown wave name %q", name)
			continue
		}
		sub := &Operator{ID: p.nextOpID, Wave: wave, WaveSet: true}
		p.nextOpID++
		// A modulator is always nested, so it defaults from
		// default_rel_freq (a ratio of its parent carrier's buffer)
		// rather than default_freq_hz (original_source/parser.c's
		// new_operator: op->freq = sopt.def_ratio; attr |= FREQRATIO).
		sub.Amp = program.Ramp{V0: 1.0, Flags: program.RampState}
		sub.AmpSet = true
		sub.Freq = program.Ramp{V0: p.options.DefaultRelFreq, Flags: program.RampState}
		sub.FreqSet = true
		sub.FreqRatio = true
		if labelID, ok := p.tryReadLabel(); ok {
			p.labels[labelID] = labelEntry{op: sub}
		}
		p.parseParams(sub, nil, true)
		// A modulator declared inline is still a fresh operator the
		// linker/generator must see initialized, even though it never
		// joins a voice graph directly.
		p.events = append(p.events, &Event{Operator: sub, DefaultMS: p.options.DefaultTimeMS})
		ops = append(ops, sub)
	}
	return ops
}

func (p *parser) parseAmp(op *Operator) {
	p.src.Advance() // 'a'
	c, _ := p.src.Peek()
	switch c {
	case ',':
		p.src.Advance()
		v, ok, err := p.nums.ReadNumber(p.src)
		if err != nil || !ok {
			line, col := p.src.Pos()
			p.errf(diag.Syntactic, line, col, "expected number after 'a,'")
			return
		}
		op.DynAmp = v
		op.DynAmpSet = true
	case '~':
		p.src.Advance()
		op.AMods = p.parseModList()
		op.AdjcsSet = true
	default:
		r, ok := p.parseRampOrNumber(false)
		if !ok {
			return
		}
		op.Amp = r
		op.AmpSet = true
	}
}

func (p *parser) parseFreq(op *Operator, ratio bool) {
	p.src.Advance() // 'f' or 'r'
	c, _ := p.src.Peek()
	switch c {
	case ',':
		p.src.Advance()
		v, ok, err := p.nums.ReadNumber(p.src)
		if err != nil || !ok {
			line, col := p.src.Pos()
			p.errf(diag.Syntactic, line, col, "expected number after 'f,'")
			return
		}
		op.DynFreq = v
		op.DynFreqSet = true
		op.DynFreqRatio = ratio
	case '~':
		p.src.Advance()
		op.FMods = p.parseModList()
		op.AdjcsSet = true
	default:
		r, ok := p.parseRampOrNumber(ratio)
		if !ok {
			return
		}
		op.Freq = r
		op.FreqSet = true
		op.FreqRatio = ratio
	}
}

func (p *parser) parsePhase(op *Operator) {
	p.src.Advance() // 'p'
	c, _ := p.src.Peek()
	if c == '+' {
		p.src.Advance()
		op.PMods = p.parseModList()
		op.AdjcsSet = true
		return
	}
	v, ok, err := p.nums.ReadNumber(p.src)
	if err != nil || !ok {
		line, col := p.src.Pos()
		p.errf(diag.Syntactic, line, col, "expected number after 'p'")
		return
	}
	op.Phase = v
	op.PhaseSet = true
}

// parsePanning handles the `P` step key (voice stereo panning). It is
// only meaningful when voice is non-nil, i.e. on the operator a voice
// is actually attached to; inside a modulator list there is no voice
// to update, so the value is still consumed (for resync) but dropped.
func (p *parser) parsePanning(voice *Voice) {
	p.src.Advance() // 'P'
	r, ok := p.parseRampOrNumber(false)
	if !ok || voice == nil {
		return
	}
	if r.Flags&program.RampSlope != 0 {
		voice.ValitPanning = r
		voice.ValitPanningSet = true
		voice.Touched |= program.PValitPanning
	} else {
		voice.Panning = r.V0
		voice.PanningSet = true
		voice.Touched |= program.PPanning
	}
}

func (p *parser) parseSilence(op *Operator) {
	p.src.Advance() // 's'
	v, ok, err := p.nums.ReadNumber(p.src)
	if err != nil || !ok {
		line, col := p.src.Pos()
		p.errf(diag.Syntactic, line, col, "expected number after 's'")
		return
	}
	op.SilenceMS = int64(v)
	op.SilenceSet = true
}

// parseTime handles `t` (explicit duration) and `ti` (infinite time).
// `ti` is only meaningful on a pure modulator operator — a voice's own
// carrier running forever would never let its voice finish — so using
// it on a non-nested operator is reported rather than silently
// accepted (spec open question, resolved in DESIGN.md).
func (p *parser) parseTime(op *Operator, nested bool) {
	p.src.Advance() // 't'
	if p.src.Try('i') {
		if !nested {
			line, col := p.src.Pos()
			p.errf(diag.Semantic, line, col, "'ti' (infinite time) is only valid on a modulator operator")
			return
		}
		op.TimeInf = true
		op.TimeSet = true
		return
	}
	v, ok, err := p.nums.ReadNumber(p.src)
	if err != nil || !ok {
		line, col := p.src.Pos()
		p.errf(diag.Syntactic, line, col, "expected number or 'i' after 't'")
		return
	}
	if v < 0 {
		line, col := p.src.Pos()
		p.errf(diag.Semantic, line, col, "ignoring 't' with sub-zero time")
		return
	}
	op.TimeMS = int64(v)
	op.TimeSet = true
}

func (p *parser) parseWave(op *Operator) {
	p.src.Advance() // 'w'
	wave, name := p.readWaveName()
	if name == "" {
		line, col := p.src.Pos()
		p.errf(diag.Syntactic, line, col, "expected wave name after 'w'")
		return
	}
	if _, ok := waveNames[name]; !ok {
		line, col := p.src.Pos()
		p.errf(diag.Syntactic, line, col, "unknown wave name %q", name)
		return
	}
	op.Wave = wave
	op.WaveSet = true
}
