// Package cellbuf provides the cell grid the renderer composes into and the
// differential emitter that turns two grids into a minimal escape-sequence
// delta.
package cellbuf

// Cell is one terminal cell: a rune plus its SGR prefix (empty means
// default attributes).
type Cell struct {
	R     rune
	Style string
}

// Blank is the cleared cell value.
var Blank = Cell{R: ' '}

// Rect is a cell-coordinate rectangle.
type Rect struct {
	X, Y, W, H int
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Buffer is a W x H grid of cells.
type Buffer struct {
	W, H  int
	Cells [][]Cell
}

// New returns a cleared buffer of the given size.
func New(w, h int) *Buffer {
	b := &Buffer{}
	b.Resize(w, h)
	return b
}

// Resize reallocates the grid and clears it.
func (b *Buffer) Resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	b.W, b.H = w, h
	b.Cells = make([][]Cell, h)
	for y := range b.Cells {
		b.Cells[y] = make([]Cell, w)
		for x := range b.Cells[y] {
			b.Cells[y][x] = Blank
		}
	}
}

// Clear resets every cell to Blank.
func (b *Buffer) Clear() {
	for y := range b.Cells {
		for x := range b.Cells[y] {
			b.Cells[y][x] = Blank
		}
	}
}

// Set writes one cell, ignoring out-of-bounds coordinates.
func (b *Buffer) Set(x, y int, c Cell) {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return
	}
	b.Cells[y][x] = c
}

// Get reads one cell; out-of-bounds coordinates return Blank.
func (b *Buffer) Get(x, y int) Cell {
	if x < 0 || y < 0 || x >= b.W || y >= b.H {
		return Blank
	}
	return b.Cells[y][x]
}

// SetString writes a run of single-width runes starting at (x,y), clipped
// to the buffer. Returns the x position after the last written rune.
func (b *Buffer) SetString(x, y int, s string, style string) int {
	for _, r := range s {
		b.Set(x, y, Cell{R: r, Style: style})
		x++
	}
	return x
}

// FillRect sets every cell of the clipped rectangle to c.
func (b *Buffer) FillRect(r Rect, c Cell) {
	for y := r.Y; y < r.Y+r.H; y++ {
		for x := r.X; x < r.X+r.W; x++ {
			b.Set(x, y, c)
		}
	}
}

// CopyFrom copies src into b cell by cell (sizes must match to copy fully;
// excess is clipped).
func (b *Buffer) CopyFrom(src *Buffer) {
	for y := 0; y < b.H && y < src.H; y++ {
		copy(b.Cells[y], src.Cells[y][:min(b.W, src.W)])
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
