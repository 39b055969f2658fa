package screen

// Attr is the pen's attribute bitset.
type Attr uint8

const (
	AttrBold Attr = 1 << iota
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrInverse
	AttrStrikethrough
)

// Pen holds the drawing attributes applied to each subsequently written cell.
type Pen struct {
	FG, BG Color
	Attrs  Attr
}

// DefaultPen is the reset (SGR 0) pen.
var DefaultPen = Pen{FG: DefaultColor, BG: DefaultColor}

func (a Attr) has(f Attr) bool { return a&f != 0 }

// Cell is one grid position.
type Cell struct {
	Ch    rune
	Pen   Pen
	Width int // always 1; double-width glyphs are stored as a single cell
}

// blankCell returns a space cell carrying pen's colors, used by erase
// operations, which take their fill color from the current pen's background.
func blankCell(pen Pen) Cell {
	return Cell{Ch: ' ', Pen: pen, Width: 1}
}
