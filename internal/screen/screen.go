// Package screen implements the VT cell grid that consumes dispatch events
// from vtparser and maintains cursor, pen, modes, and scroll region state.
package screen

import (
	"strings"
	"sync"

	"github.com/ehrlich-b/termalive/internal/vtparser"
)

// Screen is the default vtparser.Handler: a W*H cell grid with cursor, pen,
// scroll region, and window title. All exported methods are thread-safe.
type Screen struct {
	mu sync.Mutex

	width, height int
	cells         []Cell

	cx, cy      int
	pendingWrap bool

	pen   Pen
	modes Modes

	scrollTop, scrollBottom int

	savedX, savedY int
	savedPen       Pen
	hasSaved       bool

	title string

	tabStops []bool

	g0, g1  charsetID
	activeG int

	writeBack func([]byte)
}

var _ vtparser.Handler = (*Screen)(nil)

// New creates a Screen of the given dimensions, initialized exactly as
// described for Reset.
func New(width, height int) *Screen {
	s := &Screen{}
	s.resizeLocked(width, height)
	return s
}

// SetWriteBack installs the capability used to answer DSR/DA device queries.
func (s *Screen) SetWriteBack(fn func([]byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeBack = fn
}

// Resize reinitializes the grid at new dimensions. Contents are cleared;
// callers that need reflow reconstruct from the ring buffer (§4.E).
func (s *Screen) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizeLocked(width, height)
}

func (s *Screen) resizeLocked(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	s.width, s.height = width, height
	s.cells = make([]Cell, width*height)
	s.pen = DefaultPen
	for i := range s.cells {
		s.cells[i] = blankCell(s.pen)
	}
	s.cx, s.cy = 0, 0
	s.pendingWrap = false
	s.modes = defaultModes()
	s.scrollTop, s.scrollBottom = 0, height-1
	s.hasSaved = false
	s.savedPen = DefaultPen
	s.title = ""
	s.tabStops = make([]bool, width)
	for i := 0; i < width; i += 8 {
		s.tabStops[i] = true
	}
	s.g0, s.g1 = charsetASCII, charsetASCII
	s.activeG = 0
}

// Reset returns the buffer to a state byte-equivalent to a freshly
// constructed buffer of the same dimensions (§4.B invariant).
func (s *Screen) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizeLocked(s.width, s.height)
}

func (s *Screen) index(x, y int) int { return y*s.width + x }

func (s *Screen) clampCursor() {
	if s.cx < 0 {
		s.cx = 0
	}
	if s.cx > s.width-1 {
		s.cx = s.width - 1
	}
	if s.cy < 0 {
		s.cy = 0
	}
	if s.cy > s.height-1 {
		s.cy = s.height - 1
	}
}

// --- Exported read-only contract (§6) ---

func (s *Screen) Width() int  { s.mu.Lock(); defer s.mu.Unlock(); return s.width }
func (s *Screen) Height() int { s.mu.Lock(); defer s.mu.Unlock(); return s.height }

func (s *Screen) CursorX() int { s.mu.Lock(); defer s.mu.Unlock(); return s.cx }
func (s *Screen) CursorY() int { s.mu.Lock(); defer s.mu.Unlock(); return s.cy }

func (s *Screen) CursorVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modes.CursorVisible
}

func (s *Screen) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// GetCell returns a copy of the cell at (x,y), or the zero Cell if out of range.
func (s *Screen) GetCell(x, y int) Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return Cell{}
	}
	return s.cells[s.index(x, y)]
}

// GetRowText returns row y's text with trailing spaces trimmed.
func (s *Screen) GetRowText(y int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if y < 0 || y >= s.height {
		return ""
	}
	var b strings.Builder
	row := s.cells[y*s.width : y*s.width+s.width]
	for _, c := range row {
		ch := c.Ch
		if ch == 0 {
			ch = ' '
		}
		b.WriteRune(ch)
	}
	return strings.TrimRight(b.String(), " ")
}

// --- Handler: Print / Execute ---

// Print implements the cell-writing rule of §4.B.
func (s *Screen) Print(r rune) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingWrap && s.modes.AutoWrap {
		s.pendingWrap = false
		s.cx = 0
		s.advanceLine()
	}

	ch := s.mapCharset(r)
	s.cells[s.index(s.cx, s.cy)] = Cell{Ch: ch, Pen: s.pen, Width: 1}

	if s.cx < s.width-1 {
		s.cx++
	} else if s.modes.AutoWrap {
		s.pendingWrap = true
	}
}

// Execute implements C0/C1 control handling (§4.B).
func (s *Screen) Execute(b byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch b {
	case 0x07: // BEL — ignored in the buffer itself
	case 0x08: // BS
		if s.cx > 0 {
			s.cx--
		}
		s.pendingWrap = false
	case 0x09: // HT
		s.cx = s.nextTabStop(s.cx)
		s.pendingWrap = false
	case 0x0A, 0x0B, 0x0C: // LF, VT, FF
		s.advanceLine()
		s.pendingWrap = false
	case 0x0D: // CR
		s.cx = 0
		s.pendingWrap = false
	case 0x84: // IND
		s.advanceLine()
		s.pendingWrap = false
	case 0x85: // NEL
		s.cx = 0
		s.advanceLine()
		s.pendingWrap = false
	case 0x88: // HTS
		if s.cx >= 0 && s.cx < len(s.tabStops) {
			s.tabStops[s.cx] = true
		}
	case 0x8D: // RI
		s.reverseLine()
		s.pendingWrap = false
	}
}

func (s *Screen) nextTabStop(x int) int {
	for i := x + 1; i < s.width; i++ {
		if s.tabStops[i] {
			return i
		}
	}
	return s.width - 1
}

// advanceLine moves the cursor down one row, scrolling the region when the
// cursor sits on its bottom margin.
func (s *Screen) advanceLine() {
	if s.cy == s.scrollBottom {
		s.scrollRegion(1, true)
	} else if s.cy < s.height-1 {
		s.cy++
	}
}

// reverseLine moves the cursor up one row, scrolling down when on the top margin.
func (s *Screen) reverseLine() {
	if s.cy == s.scrollTop {
		s.scrollRegion(1, false)
	} else if s.cy > 0 {
		s.cy--
	}
}

// scrollRegion shifts rows top..bottom (inclusive) by n, losing rows pushed
// past the far edge and filling the near edge with blanks at the current pen.
func (s *Screen) scrollRegion(n int, up bool) {
	top, bottom := s.scrollTop, s.scrollBottom
	if top >= bottom || n <= 0 {
		return
	}
	rows := bottom - top + 1
	if n > rows {
		n = rows
	}
	blank := blankCell(s.pen)
	if up {
		for y := top; y <= bottom-n; y++ {
			copy(s.cells[y*s.width:(y+1)*s.width], s.cells[(y+n)*s.width:(y+n+1)*s.width])
		}
		for y := bottom - n + 1; y <= bottom; y++ {
			fillRow(s.cells[y*s.width:(y+1)*s.width], blank)
		}
	} else {
		for y := bottom; y >= top+n; y-- {
			copy(s.cells[y*s.width:(y+1)*s.width], s.cells[(y-n)*s.width:(y-n+1)*s.width])
		}
		for y := top; y < top+n; y++ {
			fillRow(s.cells[y*s.width:(y+1)*s.width], blank)
		}
	}
}

func fillRow(row []Cell, c Cell) {
	for i := range row {
		row[i] = c
	}
}
