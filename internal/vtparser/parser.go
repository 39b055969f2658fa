package vtparser

// Parser is a total, non-suspending VT500-family state machine. Feed never
// returns an error: malformed sequences are dropped per VT500 tradition, and
// the parser resumes into a defined state regardless of what came before.
type Parser struct {
	handler Handler

	state state

	params   Params
	private  byte
	overflow bool

	intermediates [maxIntermediate]byte
	interCount    int

	oscBuf []byte

	pendingTerm state

	utf8Remaining int
	utf8Accum     rune
}

// New creates a Parser dispatching to handler.
func New(handler Handler) *Parser {
	return &Parser{handler: handler, state: stateGround}
}

// SetHandler swaps the dispatch target without resetting parser state.
func (p *Parser) SetHandler(h Handler) { p.handler = h }

// Reset returns the parser to Ground with no pending sequence.
func (p *Parser) Reset() {
	p.resetToGround()
}

// Feed processes an arbitrary byte slice, which may split a sequence or a
// UTF-8 code point at any boundary; state needed to resume lives on p and
// survives across calls.
func (p *Parser) Feed(data []byte) {
	for _, b := range data {
		p.advance(b)
	}
}

func (p *Parser) advance(b byte) {
	switch b {
	case 0x18, 0x1A: // CAN, SUB
		p.abort(b)
		return
	case 0x1B: // ESC
		p.onEscByte()
		return
	}
	if b >= 0x80 && b <= 0x9F && p.state != stateGround {
		// A raw C1 control in the middle of a sequence aborts it.
		p.abort(0)
		return
	}
	switch p.state {
	case stateGround:
		p.groundByte(b)
	case stateEscape:
		p.escapeByte(b)
	case stateEscapeIntermediate:
		p.escapeIntermediateByte(b)
	case stateCsiEntry:
		p.csiEntryByte(b)
	case stateCsiParam:
		p.csiParamByte(b)
	case stateCsiIntermediate:
		p.csiIntermediateByte(b)
	case stateCsiIgnore:
		p.csiIgnoreByte(b)
	case stateDcsEntry:
		p.dcsEntryByte(b)
	case stateDcsParam:
		p.dcsParamByte(b)
	case stateDcsIntermediate:
		p.dcsIntermediateByte(b)
	case stateDcsPassthrough:
		p.handler.DCSPut(b)
	case stateDcsIgnore:
		// consumed silently
	case stateOscString:
		p.oscByte(b)
	case stateSosPmApcString:
		// consumed silently, no dispatch capability for SOS/PM/APC
	case stateStringST:
		p.stringSTByte(b)
	}
}

// abort implements the CAN/SUB and stray-C1 "cancel whatever is in flight"
// rule. execByte is 0 when the abort was triggered by a raw C1, in which
// case nothing is executed (only the sequence is cancelled).
func (p *Parser) abort(execByte byte) {
	p.flushIncompleteUTF8()
	if p.state == stateDcsPassthrough {
		p.handler.DCSUnhook()
	}
	p.resetToGround()
	if execByte != 0 {
		p.handler.Execute(execByte)
	}
}

func (p *Parser) flushIncompleteUTF8() {
	if p.utf8Remaining > 0 {
		p.utf8Remaining = 0
		p.handler.Print(0xFFFD)
	}
}

func (p *Parser) resetToGround() {
	p.state = stateGround
	p.params.reset()
	p.private = 0
	p.overflow = false
	p.interCount = 0
	p.oscBuf = p.oscBuf[:0]
}

func (p *Parser) resetToEscape() {
	p.flushIncompleteUTF8()
	p.state = stateEscape
	p.params.reset()
	p.private = 0
	p.overflow = false
	p.interCount = 0
}

// digitChecked feeds a digit to the active parameter slot and marks the
// sequence overflowed (to be dropped at the final byte) if it exceeds the
// 65535 cap.
func (p *Parser) digitChecked(d int) bool {
	if !p.params.digit(d) {
		p.overflow = true
		return false
	}
	return true
}

func (p *Parser) pushIntermediate(b byte) {
	if p.interCount < maxIntermediate {
		p.intermediates[p.interCount] = b
		p.interCount++
	}
}

func (p *Parser) currentIntermediates() []byte {
	return p.intermediates[:p.interCount]
}

// --- Ground ---

func (p *Parser) groundByte(b byte) {
	switch {
	case b < 0x20:
		p.handler.Execute(b)
	case b == 0x7F:
		// DEL is ignored.
	case b < 0x80:
		p.handler.Print(rune(b))
	default:
		p.decodeUTF8Byte(b)
	}
}

func (p *Parser) decodeUTF8Byte(b byte) {
	if p.utf8Remaining == 0 {
		switch {
		case b&0xE0 == 0xC0:
			if b == 0xC0 || b == 0xC1 {
				p.handler.Print(0xFFFD)
				return
			}
			p.utf8Accum = rune(b & 0x1F)
			p.utf8Remaining = 1
		case b&0xF0 == 0xE0:
			p.utf8Accum = rune(b & 0x0F)
			p.utf8Remaining = 2
		case b&0xF8 == 0xF0:
			if b > 0xF4 {
				p.handler.Print(0xFFFD)
				return
			}
			p.utf8Accum = rune(b & 0x07)
			p.utf8Remaining = 3
		default:
			// Stray continuation byte or 0xF5-0xFF.
			p.handler.Print(0xFFFD)
		}
		return
	}
	if b&0xC0 != 0x80 {
		// Expected a continuation byte and didn't get one: the pending
		// sequence is malformed. Emit the replacement and reprocess b fresh
		// — it may be the start of the next, well-formed sequence.
		p.utf8Remaining = 0
		p.handler.Print(0xFFFD)
		p.advance(b)
		return
	}
	p.utf8Accum = (p.utf8Accum << 6) | rune(b&0x3F)
	p.utf8Remaining--
	if p.utf8Remaining == 0 {
		p.handler.Print(p.utf8Accum)
	}
}

// --- Escape / Escape-intermediate ---

func (p *Parser) onEscByte() {
	switch p.state {
	case stateOscString, stateDcsPassthrough, stateDcsIgnore, stateSosPmApcString,
		stateDcsEntry, stateDcsParam, stateDcsIntermediate:
		p.pendingTerm = p.state
		p.state = stateStringST
	default:
		p.resetToEscape()
	}
}

func (p *Parser) stringSTByte(b byte) {
	if b == '\\' {
		switch p.pendingTerm {
		case stateOscString:
			p.dispatchOSC()
		case stateDcsPassthrough:
			p.handler.DCSUnhook()
		}
		p.resetToGround()
		return
	}
	// Not a genuine String Terminator — recover into Escape and reprocess b.
	if p.pendingTerm == stateDcsPassthrough {
		p.handler.DCSUnhook()
	}
	p.resetToEscape()
	p.escapeByte(b)
}

func (p *Parser) escapeByte(b byte) {
	switch {
	case b < 0x20:
		p.handler.Execute(b)
	case b >= 0x20 && b <= 0x2F:
		p.pushIntermediate(b)
		p.state = stateEscapeIntermediate
	case b == '[':
		p.state = stateCsiEntry
		p.params.reset()
		p.private = 0
		p.overflow = false
		p.interCount = 0
	case b == ']':
		p.state = stateOscString
		p.oscBuf = p.oscBuf[:0]
	case b == 'P':
		p.state = stateDcsEntry
		p.params.reset()
		p.interCount = 0
	case b == 'X', b == '^', b == '_':
		p.state = stateSosPmApcString
	case b == '\\':
		p.resetToGround() // stray ST
	case b >= 0x30 && b <= 0x7E:
		p.handler.ESCDispatch(p.currentIntermediates(), b)
		p.resetToGround()
	default:
		p.resetToGround()
	}
}

func (p *Parser) escapeIntermediateByte(b byte) {
	switch {
	case b < 0x20:
		p.handler.Execute(b)
	case b >= 0x20 && b <= 0x2F:
		p.pushIntermediate(b)
	case b >= 0x30 && b <= 0x7E:
		p.handler.ESCDispatch(p.currentIntermediates(), b)
		p.resetToGround()
	default:
		p.resetToGround()
	}
}

// --- CSI ---

func (p *Parser) csiEntryByte(b byte) {
	switch {
	case b < 0x20:
		p.handler.Execute(b)
	case b >= '0' && b <= '9':
		p.params.digit(int(b - '0'))
		p.state = stateCsiParam
	case b == ';' || b == ':':
		if !p.params.next() {
			p.state = stateCsiIgnore
		} else {
			p.state = stateCsiParam
		}
	case b >= 0x3C && b <= 0x3F:
		p.private = b
		p.state = stateCsiParam
	case b >= 0x20 && b <= 0x2F:
		p.pushIntermediate(b)
		p.state = stateCsiIntermediate
	case b >= 0x40 && b <= 0x7E:
		p.finishCSI(b)
	default:
		p.state = stateCsiIgnore
	}
}

func (p *Parser) csiParamByte(b byte) {
	switch {
	case b < 0x20:
		p.handler.Execute(b)
	case b >= '0' && b <= '9':
		if !p.digitChecked(int(b - '0')) {
			p.state = stateCsiIgnore
		}
	case b == ';' || b == ':':
		if !p.params.next() {
			p.state = stateCsiIgnore
		}
	case b >= 0x3C && b <= 0x3F:
		p.state = stateCsiIgnore
	case b >= 0x20 && b <= 0x2F:
		p.pushIntermediate(b)
		p.state = stateCsiIntermediate
	case b >= 0x40 && b <= 0x7E:
		p.finishCSI(b)
	default:
		p.state = stateCsiIgnore
	}
}

func (p *Parser) csiIntermediateByte(b byte) {
	switch {
	case b < 0x20:
		p.handler.Execute(b)
	case b >= 0x20 && b <= 0x2F:
		p.pushIntermediate(b)
	case b >= 0x40 && b <= 0x7E:
		p.finishCSI(b)
	default:
		p.state = stateCsiIgnore
	}
}

func (p *Parser) csiIgnoreByte(b byte) {
	switch {
	case b < 0x20:
		p.handler.Execute(b)
	case b >= 0x40 && b <= 0x7E:
		p.resetToGround()
	default:
		// consumed, no dispatch
	}
}

func (p *Parser) finishCSI(final byte) {
	if p.overflow {
		p.resetToGround()
		return
	}
	p.handler.CSIDispatch(&p.params, p.private, p.currentIntermediates(), final)
	p.resetToGround()
}

// --- DCS ---

func (p *Parser) dcsEntryByte(b byte) {
	switch {
	case b >= '0' && b <= '9':
		p.params.digit(int(b - '0'))
		p.state = stateDcsParam
	case b == ';' || b == ':':
		if !p.params.next() {
			p.state = stateDcsIgnore
		} else {
			p.state = stateDcsParam
		}
	case b >= 0x20 && b <= 0x2F:
		p.pushIntermediate(b)
		p.state = stateDcsIntermediate
	case b >= 0x40 && b <= 0x7E:
		p.hookDCS(b)
	default:
		p.state = stateDcsIgnore
	}
}

func (p *Parser) dcsParamByte(b byte) {
	switch {
	case b >= '0' && b <= '9':
		if !p.digitChecked(int(b - '0')) {
			p.state = stateDcsIgnore
		}
	case b == ';' || b == ':':
		if !p.params.next() {
			p.state = stateDcsIgnore
		}
	case b >= 0x20 && b <= 0x2F:
		p.pushIntermediate(b)
		p.state = stateDcsIntermediate
	case b >= 0x40 && b <= 0x7E:
		p.hookDCS(b)
	default:
		p.state = stateDcsIgnore
	}
}

func (p *Parser) dcsIntermediateByte(b byte) {
	switch {
	case b >= 0x20 && b <= 0x2F:
		p.pushIntermediate(b)
	case b >= 0x40 && b <= 0x7E:
		p.hookDCS(b)
	default:
		p.state = stateDcsIgnore
	}
}

func (p *Parser) hookDCS(final byte) {
	if p.overflow {
		p.state = stateDcsIgnore
		return
	}
	p.handler.DCSHook(&p.params, p.currentIntermediates(), final)
	p.state = stateDcsPassthrough
}

// --- OSC ---

func (p *Parser) oscByte(b byte) {
	if b == 0x07 { // BEL terminator
		p.dispatchOSC()
		p.resetToGround()
		return
	}
	if b < 0x20 {
		// Any other C0 aborts the OSC string without a dispatch.
		p.resetToGround()
		return
	}
	p.oscBuf = append(p.oscBuf, b)
}

func (p *Parser) dispatchOSC() {
	buf := p.oscBuf
	command := -1
	data := buf
	i := 0
	for i < len(buf) && buf[i] >= '0' && buf[i] <= '9' {
		i++
	}
	if i > 0 {
		n := 0
		for _, d := range buf[:i] {
			n = n*10 + int(d-'0')
		}
		command = n
		if i < len(buf) && buf[i] == ';' {
			data = buf[i+1:]
		} else {
			data = buf[i:]
		}
	}
	p.handler.OSCDispatch(command, data)
}
