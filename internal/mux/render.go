package mux

import (
	"bytes"
	"fmt"

	"github.com/vito/midterm"

	"hexe/internal/cellbuf"
	"hexe/internal/pop"
	"hexe/internal/statusbar"
	"hexe/internal/termstyle"
)

const (
	styleBorder        = "\033[90m"
	styleBorderFocused = "\033[36m"
	styleShadow        = "\033[90m"
	styleSelection     = "\033[7m"
	styleIndicator     = "\033[7m"
	styleNote          = "\033[7;33m"
	stylePopup         = "\033[7m"
	styleTabActive     = "\033[7;36m"
	styleTabInactive   = "\033[90m"
)

// Renderer owns the back/front cell buffers and the cursor state emitted
// with each delta.
type Renderer struct {
	back, front *cellbuf.Buffer
	forceFull   bool
}

// NewRenderer allocates both buffers.
func NewRenderer(w, h int) *Renderer {
	return &Renderer{
		back:      cellbuf.New(w, h),
		front:     cellbuf.New(w, h),
		forceFull: true,
	}
}

// Invalidate forces the next frame to be a full repaint.
func (r *Renderer) Invalidate() {
	r.forceFull = true
}

// Resize reallocates the buffers for a new terminal size.
func (r *Renderer) Resize(w, h int) {
	r.back.Resize(w, h)
	r.front.Resize(w, h)
	r.forceFull = true
}

// RenderFrame composes the full screen into the back buffer and returns
// the delta bytes plus cursor sequences, to be written atomically.
func (s *State) RenderFrame(r *Renderer) []byte {
	r.back.Clear()
	glyphs := termstyle.BorderSet(s.Cfg.Status.BorderStyle)

	t := s.CurrentTab()
	if t != nil {
		for _, p := range t.Layout.Splits {
			if p.DidClear {
				r.forceFull = true
				p.DidClear = false
			}
			s.drawPane(r.back, p)
		}
		if t.Layout.Count() > 1 {
			s.drawSplitBorders(r.back, t.Layout, glyphs)
		}
	}

	// Floats back-to-front, active float last.
	active := s.ActiveFloat()
	for _, f := range s.VisibleFloats(s.ActiveTab) {
		if f == active {
			continue
		}
		s.drawFloat(r.back, f, glyphs, false)
	}
	if active != nil && s.floatVisibleOn(active, s.ActiveTab) {
		if active.DidClear {
			r.forceFull = true
			active.DidClear = false
		}
		s.drawFloat(r.back, active, glyphs, true)
	}

	if s.StatusH > 0 {
		s.drawStatusBar(r.back)
	}

	// TAB realm below MUX realm.
	if t != nil {
		s.drawNote(r.back, t.Pop.Note, s.TermH-s.StatusH-1)
		s.drawPopup(r.back, t.Pop.Popup)
	}
	s.drawNote(r.back, s.Pop.Note, s.TermH-s.StatusH-2)
	s.drawPopup(r.back, s.Pop.Popup)

	var prev *cellbuf.Buffer
	if !r.forceFull {
		prev = r.front
	}
	delta := cellbuf.Diff(prev, r.back)
	r.forceFull = false
	r.back, r.front = r.front, r.back

	var out bytes.Buffer
	out.Write(delta)
	out.WriteString(s.cursorBytes())
	return out.Bytes()
}

// paneSource returns the terminal and top row the pane's viewport shows.
func paneSource(p *Pane) (*midterm.Terminal, int) {
	if p.Scrolled() {
		return p.Scrollback, p.viewportTop()
	}
	start := p.Vt.Cursor.Y - p.H + 1
	if start < 0 {
		start = 0
	}
	return p.Vt, start
}

// drawPane renders a pane's cell grid, selection overlay, scroll
// indicator, and pane-scope notification into the buffer.
func (s *State) drawPane(buf *cellbuf.Buffer, p *Pane) {
	vt, start := paneSource(p)
	for row := 0; row < p.H; row++ {
		drawVTRow(buf, vt, start+row, p.X, p.Y+row, p.W)
	}
	s.overlaySelection(buf, p)
	if p.Scrolled() {
		ind := fmt.Sprintf("[+%d]", p.Scroll)
		x := p.X + p.W - len(ind)
		if x < p.X {
			x = p.X
		}
		buf.SetString(x, p.Y, ind, styleIndicator)
	}
	if p.Pop.Note != nil {
		s.drawNoteAt(buf, p.Pop.Note, p.X, p.Y, p.W)
	}
}

// drawVTRow copies one terminal row into the buffer, styled per format
// region and padded with blanks.
func drawVTRow(buf *cellbuf.Buffer, vt *midterm.Terminal, row, dstX, dstY, width int) {
	if row < 0 || row >= len(vt.Content) {
		for x := 0; x < width; x++ {
			buf.Set(dstX+x, dstY, cellbuf.Blank)
		}
		return
	}
	line := vt.Content[row]
	pos := 0
	for region := range vt.Format.Regions(row) {
		style := region.F.Render()
		if region.F == (midterm.Format{}) {
			style = ""
		}
		for i := 0; i < region.Size && pos < width; i++ {
			r := ' '
			if pos < len(line) {
				r = line[pos]
			}
			if r == 0 {
				r = ' '
			}
			buf.Set(dstX+pos, dstY, cellbuf.Cell{R: r, Style: style})
			pos++
		}
		if pos >= width {
			break
		}
	}
	for ; pos < width; pos++ {
		buf.Set(dstX+pos, dstY, cellbuf.Blank)
	}
}

// overlaySelection inverts the cells of the pane-local projection of the
// buffer-coordinate selection.
func (s *State) overlaySelection(buf *cellbuf.Buffer, p *Pane) {
	if p.UUID != s.Sel.PaneUUID || (!s.Sel.Active && !s.Sel.Have) {
		return
	}
	x1, y1, x2, y2 := s.Sel.StartX, s.Sel.StartY, s.Sel.EndX, s.Sel.EndY
	if y2 < y1 || (y1 == y2 && x2 < x1) {
		x1, y1, x2, y2 = x2, y2, x1, y1
	}
	top := p.viewportTop()
	for row := 0; row < p.H; row++ {
		bufY := top + row
		if bufY < y1 || bufY > y2 {
			continue
		}
		colStart, colEnd := 0, p.W-1
		if bufY == y1 {
			colStart = x1
		}
		if bufY == y2 {
			colEnd = x2
		}
		for col := colStart; col <= colEnd && col < p.W; col++ {
			c := buf.Get(p.X+col, p.Y+row)
			c.Style += styleSelection
			buf.Set(p.X+col, p.Y+row, c)
		}
	}
}

// drawSplitBorders walks the layout tree and draws the one-cell border
// each split reserves, with crosses where borders meet.
func (s *State) drawSplitBorders(buf *cellbuf.Buffer, l *Layout, g termstyle.BorderGlyphs) {
	s.drawNodeBorders(buf, l.Root, l.X, l.Y, l.W, l.H, g)
}

func (s *State) drawNodeBorders(buf *cellbuf.Buffer, n *Node, x, y, w, h int, g termstyle.BorderGlyphs) {
	if n == nil || n.Leaf() {
		return
	}
	if n.Dir == SplitH {
		firstW := int(float64(w)*n.Ratio) - 1
		if firstW < 1 {
			firstW = 1
		}
		bx := x + firstW
		for by := y; by < y+h; by++ {
			s.setBorderCell(buf, bx, by, g.Vertical, g)
		}
		s.drawNodeBorders(buf, n.First, x, y, firstW, h, g)
		s.drawNodeBorders(buf, n.Second, bx+1, y, w-firstW-1, h, g)
		return
	}
	firstH := int(float64(h)*n.Ratio) - 1
	if firstH < 1 {
		firstH = 1
	}
	by := y + firstH
	for bx := x; bx < x+w; bx++ {
		s.setBorderCell(buf, bx, by, g.Horizontal, g)
	}
	s.drawNodeBorders(buf, n.First, x, y, w, firstH, g)
	s.drawNodeBorders(buf, n.Second, x, by+1, w, h-firstH-1, g)
}

// setBorderCell writes a border glyph, upgrading to a cross where a
// perpendicular border already sits.
func (s *State) setBorderCell(buf *cellbuf.Buffer, x, y int, r rune, g termstyle.BorderGlyphs) {
	cur := buf.Get(x, y)
	if (cur.R == g.Vertical && r == g.Horizontal) || (cur.R == g.Horizontal && r == g.Vertical) {
		r = g.Cross
	}
	buf.Set(x, y, cellbuf.Cell{R: r, Style: styleBorder})
}

// drawFloat renders shadow, border, title, content, selection, indicator,
// and note for one float.
func (s *State) drawFloat(buf *cellbuf.Buffer, f *Pane, g termstyle.BorderGlyphs, focused bool) {
	bx, by, bw, bh := f.BorderX, f.BorderY, f.BorderW, f.BorderH

	if s.Cfg.Status.Shadow {
		for y := by + 1; y < by+bh+1; y++ {
			buf.Set(bx+bw, y, cellbuf.Cell{R: termstyle.ShadowRight, Style: styleShadow})
		}
		for x := bx + 1; x < bx+bw+1; x++ {
			buf.Set(x, by+bh, cellbuf.Cell{R: termstyle.ShadowBottom, Style: styleShadow})
		}
	}

	style := styleBorder
	if focused {
		style = styleBorderFocused
	}
	buf.Set(bx, by, cellbuf.Cell{R: g.TopLeft, Style: style})
	buf.Set(bx+bw-1, by, cellbuf.Cell{R: g.TopRight, Style: style})
	buf.Set(bx, by+bh-1, cellbuf.Cell{R: g.BottomLeft, Style: style})
	buf.Set(bx+bw-1, by+bh-1, cellbuf.Cell{R: g.BottomRight, Style: style})
	for x := bx + 1; x < bx+bw-1; x++ {
		buf.Set(x, by, cellbuf.Cell{R: g.Horizontal, Style: style})
		buf.Set(x, by+bh-1, cellbuf.Cell{R: g.Horizontal, Style: style})
	}
	for y := by + 1; y < by+bh-1; y++ {
		buf.Set(bx, y, cellbuf.Cell{R: g.Vertical, Style: style})
		buf.Set(bx+bw-1, y, cellbuf.Cell{R: g.Vertical, Style: style})
	}

	title := f.Title
	if title == "" && f.FloatKey != 0 {
		title = string(f.FloatKey)
	}
	if title != "" && len(title)+4 <= bw {
		buf.SetString(bx+2, by, " "+title+" ", style)
	}

	// Interior blanks under the content so stale cells never show.
	buf.FillRect(cellbuf.Rect{X: bx + 1, Y: by + 1, W: bw - 2, H: bh - 2}, cellbuf.Blank)

	s.drawPane(buf, f)
}

// drawStatusBar builds and renders the bar row.
func (s *State) drawStatusBar(buf *cellbuf.Buffer) {
	bar := statusbar.Bar{
		Glyphs:        termstyle.Tabs,
		ActiveStyle:   styleTabActive,
		InactiveStyle: styleTabInactive,
		FillStyle:     styleTabInactive,
	}
	for i, t := range s.Tabs {
		bar.Tabs = append(bar.Tabs, statusbar.TabInfo{Name: t.Name, Active: i == s.ActiveTab})
	}
	bar.Left = append(bar.Left, statusbar.Module{Text: " " + s.Name, Style: styleTabInactive, Priority: 10})
	if p := s.FocusedPane(); p != nil {
		if sh, ok := s.PaneShells[p.UUID]; ok {
			if sh.Cmd != "" {
				bar.Right = append(bar.Right, statusbar.Module{Text: sh.Cmd, Style: styleTabInactive, Priority: 5})
			}
			if sh.Cwd != "" {
				bar.Right = append(bar.Right, statusbar.Module{Text: sh.Cwd + " ", Style: styleTabInactive, Priority: 8})
			}
		}
	}
	bar.Render(buf, s.TermH-1, s.TermW)
}

// drawNote renders a scope notification right-aligned on the given row.
func (s *State) drawNote(buf *cellbuf.Buffer, n *pop.Notification, row int) {
	if n == nil || row < 0 {
		return
	}
	s.drawNoteAt(buf, n, 0, row, s.TermW)
}

func (s *State) drawNoteAt(buf *cellbuf.Buffer, n *pop.Notification, x, y, w int) {
	msg := " " + n.Message + " "
	if len(msg) > w {
		msg = msg[:w]
	}
	buf.SetString(x+w-len(msg), y, msg, styleNote)
}

// drawPopup renders a centered popup box.
func (s *State) drawPopup(buf *cellbuf.Buffer, p *pop.Popup) {
	if p == nil || p.Done() {
		return
	}
	lines := []string{p.Title}
	switch p.Kind {
	case pop.KindConfirm:
		lines = append(lines, "", "[y] yes   [n] no")
	case pop.KindPicker:
		lines = append(lines, "")
		for i, item := range p.Items {
			prefix := "  "
			if i == p.Index {
				prefix = "> "
			}
			lines = append(lines, prefix+item)
		}
	}
	w := 0
	for _, l := range lines {
		if len(l) > w {
			w = len(l)
		}
	}
	w += 4
	h := len(lines) + 2
	x := (s.TermW - w) / 2
	y := (s.TermH - h) / 2
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	buf.FillRect(cellbuf.Rect{X: x, Y: y, W: w, H: h}, cellbuf.Cell{R: ' ', Style: stylePopup})
	for i, l := range lines {
		buf.SetString(x+2, y+1+i, l, stylePopup)
	}
}

// cursorBytes emits cursor style, position, and visibility for the focused
// pane.
func (s *State) cursorBytes() string {
	p := s.FocusedPane()
	blocked := s.Pop.IsBlocked()
	if t := s.CurrentTab(); t != nil && t.Pop.IsBlocked() {
		blocked = true
	}
	if p == nil || blocked || p.Scrolled() || p.Dead {
		return "\033[?25l"
	}
	_, start := paneSource(p)
	cx := p.X + p.Vt.Cursor.X
	cy := p.Y + (p.Vt.Cursor.Y - start)
	if cx < p.X || cx >= p.X+p.W || cy < p.Y || cy >= p.Y+p.H {
		return "\033[?25l"
	}
	return fmt.Sprintf("\033[0 q\033[%d;%dH\033[?25h", cy+1, cx+1)
}
