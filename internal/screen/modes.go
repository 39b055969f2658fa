package screen

// Modes holds the boolean flags latched by SM/RM (CSI h/l) and DECSET/DECRST
// (CSI ? h/l). Only the modes consulted elsewhere in the buffer get
// dedicated fields; anything else is recognized and tracked in Other so
// set/reset never errors on an unrecognized mode number.
type Modes struct {
	CursorVisible   bool // DEC 25
	OriginMode      bool // DEC 6
	AutoWrap        bool // DEC 7, default on
	BracketedPaste  bool // DEC 2004, tracked not rendered
	Other           map[int]bool
}

func defaultModes() Modes {
	return Modes{
		CursorVisible: true,
		AutoWrap:      true,
		Other:         make(map[int]bool),
	}
}

// setPrivate applies a DEC private mode (CSI ? n h/l).
func (m *Modes) setPrivate(n int, on bool) {
	switch n {
	case 6:
		m.OriginMode = on
	case 7:
		m.AutoWrap = on
	case 25:
		m.CursorVisible = on
	case 2004:
		m.BracketedPaste = on
	default:
		m.Other[n] = on
	}
}

// setANSI applies a non-private mode (CSI n h/l). None of these are named
// elsewhere in the buffer; track them in Other.
func (m *Modes) setANSI(n int, on bool) {
	m.Other[n] = on
}
