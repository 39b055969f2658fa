package screen

import "github.com/ehrlich-b/termalive/internal/vtparser"

// sgr applies a Select Graphic Rendition sequence to the current pen. An
// empty parameter list is equivalent to a single 0 (full reset). Malformed
// 38/48 extended-color sub-sequences abort just that parameter and resume
// scanning at the next slot, rather than aborting the whole sequence.
func (s *Screen) sgr(params *vtparser.Params) {
	n := params.Len()
	if n == 0 {
		s.pen = DefaultPen
		return
	}
	for i := 0; i < n; i++ {
		code := params.Get(i, 0)
		switch {
		case code == 0:
			s.pen = DefaultPen
		case code == 1:
			s.pen.Attrs |= AttrBold
		case code == 3:
			s.pen.Attrs |= AttrItalic
		case code == 4:
			s.pen.Attrs |= AttrUnderline
		case code == 5:
			s.pen.Attrs |= AttrBlink
		case code == 7:
			s.pen.Attrs |= AttrInverse
		case code == 9:
			s.pen.Attrs |= AttrStrikethrough
		case code == 22:
			s.pen.Attrs &^= AttrBold
		case code == 23:
			s.pen.Attrs &^= AttrItalic
		case code == 24:
			s.pen.Attrs &^= AttrUnderline
		case code == 25:
			s.pen.Attrs &^= AttrBlink
		case code == 27:
			s.pen.Attrs &^= AttrInverse
		case code == 29:
			s.pen.Attrs &^= AttrStrikethrough
		case code >= 30 && code <= 37:
			s.pen.FG = Indexed(uint8(code - 30))
		case code == 38:
			if c, consumed := parseExtendedColor(params, i); consumed > 0 {
				s.pen.FG = c
				i += consumed
			}
		case code == 39:
			s.pen.FG = DefaultColor
		case code >= 40 && code <= 47:
			s.pen.BG = Indexed(uint8(code - 40))
		case code == 48:
			if c, consumed := parseExtendedColor(params, i); consumed > 0 {
				s.pen.BG = c
				i += consumed
			}
		case code == 49:
			s.pen.BG = DefaultColor
		case code >= 90 && code <= 97:
			s.pen.FG = Indexed(uint8(code - 90 + 8))
		case code >= 100 && code <= 107:
			s.pen.BG = Indexed(uint8(code - 100 + 8))
		}
	}
}

// parseExtendedColor reads the 5 (indexed) or 2 (truecolor) sub-parameters
// following a 38/48 code at slot i. Returns the color and how many extra
// slots it consumed, or consumed=0 if the sub-sequence was malformed.
func parseExtendedColor(params *vtparser.Params, i int) (Color, int) {
	if i+1 >= params.Len() {
		return Color{}, 0
	}
	switch params.Get(i+1, -1) {
	case 5:
		if i+2 >= params.Len() {
			return Color{}, 0
		}
		idx := params.Get(i+2, 0)
		if idx < 0 || idx > 255 {
			return Color{}, 0
		}
		return Indexed(uint8(idx)), 2
	case 2:
		if i+4 >= params.Len() {
			return Color{}, 0
		}
		r := params.Get(i+2, 0)
		g := params.Get(i+3, 0)
		b := params.Get(i+4, 0)
		return TrueColorRGB(uint8(r), uint8(g), uint8(b)), 4
	default:
		return Color{}, 0
	}
}
