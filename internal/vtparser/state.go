// Package vtparser implements the Paul Williams VT500-series state machine:
// a byte/UTF-8 stream goes in, typed dispatch calls come out. The parser
// itself never fails and never retains meaning across Feed calls other than
// the state needed to resume a sequence split across chunk boundaries.
package vtparser

// state is one node of the VT500 parser state table.
type state int

const (
	stateGround state = iota
	stateEscape
	stateEscapeIntermediate
	stateCsiEntry
	stateCsiParam
	stateCsiIntermediate
	stateCsiIgnore
	stateDcsEntry
	stateDcsParam
	stateDcsIntermediate
	stateDcsPassthrough
	stateDcsIgnore
	stateOscString
	stateSosPmApcString
	// stateStringST is not one of the named VT500 states; it is the
	// transient "did that ESC mean ST?" lookahead used while inside an
	// OSC/DCS/SOS-PM-APC string, folded into Escape conceptually but kept
	// distinct here so the pending string state can be resumed or unwound.
	stateStringST
)

const (
	maxParams       = 16
	maxParamValue   = 65535
	maxIntermediate = 2
)
