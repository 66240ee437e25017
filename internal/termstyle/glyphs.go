package termstyle

// Glyph sets used by the renderer for split borders, float borders,
// shadows, and the status bar tabs module.

// BorderGlyphs holds the line-drawing characters for borders.
type BorderGlyphs struct {
	Horizontal  rune
	Vertical    rune
	TopLeft     rune
	TopRight    rune
	BottomLeft  rune
	BottomRight rune
	Cross       rune
	TeeLeft     rune
	TeeRight    rune
	TeeUp       rune
	TeeDown     rune
}

// TabGlyphs holds the status-bar tabs module glyphs.
type TabGlyphs struct {
	ArrowLeft  string
	ArrowRight string
	Separator  string
}

// Rounded is the default border glyph set.
var Rounded = BorderGlyphs{
	Horizontal:  '─',
	Vertical:    '│',
	TopLeft:     '╭',
	TopRight:    '╮',
	BottomLeft:  '╰',
	BottomRight: '╯',
	Cross:       '┼',
	TeeLeft:     '┤',
	TeeRight:    '├',
	TeeUp:       '┴',
	TeeDown:     '┬',
}

// Square is the plain-corner border glyph set.
var Square = BorderGlyphs{
	Horizontal:  '─',
	Vertical:    '│',
	TopLeft:     '┌',
	TopRight:    '┐',
	BottomLeft:  '└',
	BottomRight: '┘',
	Cross:       '┼',
	TeeLeft:     '┤',
	TeeRight:    '├',
	TeeUp:       '┴',
	TeeDown:     '┬',
}

// ShadowRight is the glyph for the 1-column right drop shadow.
const ShadowRight = '█'

// ShadowBottom is the upper-half-block glyph for the bottom drop shadow;
// it visually matches the full-height right shadow column.
const ShadowBottom = '▀'

// Tabs is the default tabs module glyph set.
var Tabs = TabGlyphs{
	ArrowLeft:  "❮",
	ArrowRight: "❯",
	Separator:  "│",
}

// BorderSet returns the named glyph set, defaulting to Rounded.
func BorderSet(name string) BorderGlyphs {
	switch name {
	case "square":
		return Square
	default:
		return Rounded
	}
}
