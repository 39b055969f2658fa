package screen

// ColorKind tags which variant of Color is active.
type ColorKind uint8

const (
	// ColorDefault is the terminal's default foreground/background — it
	// survives SGR reset and is distinct from any indexed color.
	ColorDefault ColorKind = iota
	ColorIndexed
	ColorTrueColor
)

// Color is a tagged union: Default, Indexed(0..255) covering the 16 ANSI
// colors plus the 240-entry xterm palette, or TrueColor(r,g,b).
type Color struct {
	Kind  ColorKind
	Index uint8
	R     uint8
	G     uint8
	B     uint8
}

// DefaultColor is the sentinel foreground/background, preserved across SGR 0.
var DefaultColor = Color{Kind: ColorDefault}

// Indexed builds an indexed-palette color.
func Indexed(i uint8) Color { return Color{Kind: ColorIndexed, Index: i} }

// TrueColorRGB builds a 24-bit color.
func TrueColorRGB(r, g, b uint8) Color { return Color{Kind: ColorTrueColor, R: r, G: g, B: b} }
