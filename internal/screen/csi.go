package screen

import (
	"fmt"

	"github.com/ehrlich-b/termalive/internal/vtparser"
)

// CSIDispatch implements vtparser.Handler, routing a completed CSI sequence
// to the matching cursor/erase/mode/SGR/query operation.
func (s *Screen) CSIDispatch(params *vtparser.Params, private byte, intermediates []byte, final byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch final {
	case 'A': // CUU
		s.moveRel(0, -params.Get(0, 1))
	case 'B': // CUD
		s.moveRel(0, params.Get(0, 1))
	case 'C': // CUF
		s.moveRel(params.Get(0, 1), 0)
	case 'D': // CUB
		s.moveRel(-params.Get(0, 1), 0)
	case 'E': // CNL
		s.cx = 0
		s.moveRel(0, params.Get(0, 1))
	case 'F': // CPL
		s.cx = 0
		s.moveRel(0, -params.Get(0, 1))
	case 'G': // CHA
		s.moveCol(params.Get(0, 1))
	case '`': // HPA
		s.moveCol(params.Get(0, 1))
	case 'H', 'f': // CUP, HVP
		s.moveAbs(params.Get(0, 1), params.Get(1, 1))
	case 'd': // VPA
		s.moveRow(params.Get(0, 1))
	case 'J': // ED
		s.eraseDisplay(params.Get(0, 0))
	case 'K': // EL
		s.eraseLine(params.Get(0, 0))
	case 'L': // IL
		s.insertLines(params.Get(0, 1))
	case 'M': // DL
		s.deleteLines(params.Get(0, 1))
	case 'P': // DCH
		s.deleteChars(params.Get(0, 1))
	case '@': // ICH
		s.insertChars(params.Get(0, 1))
	case 'X': // ECH
		s.eraseChars(params.Get(0, 1))
	case 'S': // SU
		s.scrollRegion(params.Get(0, 1), true)
	case 'T': // SD
		s.scrollRegion(params.Get(0, 1), false)
	case 'r': // DECSTBM
		s.setScrollRegion(params)
	case 'h':
		s.setMode(params, private, true)
	case 'l':
		s.setMode(params, private, false)
	case 'm': // SGR
		s.sgr(params)
	case 's':
		if private == 0 {
			s.saveCursor()
		}
	case 'u':
		if private == 0 {
			s.restoreCursor()
		}
	case 'n': // DSR
		s.deviceStatusReport(params.Get(0, 0))
	case 'c': // DA
		s.deviceAttributes(private)
	case 'g': // TBC
		s.clearTabStops(params.Get(0, 0))
	default:
		// Unrecognized final byte: ignored, matching the parser's tolerance
		// for sequences it cannot act on.
	}
}

func (s *Screen) eraseDisplay(mode int) {
	last := s.width*s.height - 1
	cur := s.index(s.cx, s.cy)
	switch mode {
	case 0:
		s.clearIndexRange(cur, last)
	case 1:
		s.clearIndexRange(0, cur)
	case 2, 3:
		s.clearIndexRange(0, last)
	}
}

func (s *Screen) eraseLine(mode int) {
	rowStart := s.cy * s.width
	rowEnd := rowStart + s.width - 1
	cur := s.index(s.cx, s.cy)
	switch mode {
	case 0:
		s.clearIndexRange(cur, rowEnd)
	case 1:
		s.clearIndexRange(rowStart, cur)
	case 2:
		s.clearIndexRange(rowStart, rowEnd)
	}
}

func (s *Screen) clearIndexRange(from, to int) {
	if from < 0 {
		from = 0
	}
	if to > len(s.cells)-1 {
		to = len(s.cells) - 1
	}
	blank := blankCell(s.pen)
	for i := from; i <= to; i++ {
		s.cells[i] = blank
	}
}

func (s *Screen) insertLines(n int) {
	if s.cy < s.scrollTop || s.cy > s.scrollBottom {
		return
	}
	top := s.scrollTop
	s.scrollTop = s.cy
	s.scrollRegion(n, false)
	s.scrollTop = top
}

func (s *Screen) deleteLines(n int) {
	if s.cy < s.scrollTop || s.cy > s.scrollBottom {
		return
	}
	top := s.scrollTop
	s.scrollTop = s.cy
	s.scrollRegion(n, true)
	s.scrollTop = top
}

func (s *Screen) insertChars(n int) {
	rowStart := s.cy * s.width
	rowEnd := rowStart + s.width
	cur := s.index(s.cx, s.cy)
	if n > rowEnd-cur {
		n = rowEnd - cur
	}
	if n <= 0 {
		return
	}
	copy(s.cells[cur+n:rowEnd], s.cells[cur:rowEnd-n])
	s.clearIndexRange(cur, cur+n-1)
}

func (s *Screen) deleteChars(n int) {
	rowEnd := s.cy*s.width + s.width
	cur := s.index(s.cx, s.cy)
	if n > rowEnd-cur {
		n = rowEnd - cur
	}
	if n <= 0 {
		return
	}
	copy(s.cells[cur:rowEnd-n], s.cells[cur+n:rowEnd])
	s.clearIndexRange(rowEnd-n, rowEnd-1)
}

func (s *Screen) eraseChars(n int) {
	rowEnd := s.cy*s.width + s.width - 1
	cur := s.index(s.cx, s.cy)
	to := cur + n - 1
	if to > rowEnd {
		to = rowEnd
	}
	s.clearIndexRange(cur, to)
}

func (s *Screen) setScrollRegion(params *vtparser.Params) {
	top := params.Get(0, 1) - 1
	bottom := params.Get(1, s.height) - 1
	if top < 0 {
		top = 0
	}
	if bottom > s.height-1 {
		bottom = s.height - 1
	}
	if top >= bottom {
		s.scrollTop, s.scrollBottom = 0, s.height-1
	} else {
		s.scrollTop, s.scrollBottom = top, bottom
	}
	// DECSTBM also homes the cursor, subject to origin mode.
	s.moveAbs(1, 1)
}

func (s *Screen) setMode(params *vtparser.Params, private byte, on bool) {
	for i := 0; i < params.Len(); i++ {
		n := params.Get(i, 0)
		if private == '?' {
			s.modes.setPrivate(n, on)
		} else {
			s.modes.setANSI(n, on)
		}
	}
}

func (s *Screen) clearTabStops(mode int) {
	switch mode {
	case 0:
		if s.cx < len(s.tabStops) {
			s.tabStops[s.cx] = false
		}
	case 3:
		for i := range s.tabStops {
			s.tabStops[i] = false
		}
	}
}

func (s *Screen) deviceStatusReport(code int) {
	if s.writeBack == nil {
		return
	}
	switch code {
	case 5: // status report: device OK
		s.writeBack([]byte("\x1b[0n"))
	case 6: // cursor position report
		s.writeBack([]byte(fmt.Sprintf("\x1b[%d;%dR", s.cy+1, s.cx+1)))
	}
}

func (s *Screen) deviceAttributes(private byte) {
	if s.writeBack == nil || private != 0 {
		return
	}
	s.writeBack([]byte("\x1b[?1;2c"))
}
