// Package statusbar lays out the mux status bar: a centered tabs module
// flanked by left and right sections whose modules drop by priority when
// the terminal is narrow.
package statusbar

import (
	"github.com/mattn/go-runewidth"

	"hexe/internal/cellbuf"
	"hexe/internal/termstyle"
)

// Module is one status bar item. Higher priority survives longer when
// width runs out.
type Module struct {
	Text     string
	Style    string
	Priority int
}

// TabInfo describes one tab entry for the tabs module.
type TabInfo struct {
	Name   string
	Active bool
}

// Bar holds one frame's status bar content.
type Bar struct {
	Left  []Module
	Right []Module
	Tabs  []TabInfo

	Glyphs        termstyle.TabGlyphs
	ActiveStyle   string
	InactiveStyle string
	FillStyle     string
}

// tabsWidth returns the exact cell width of the rendered tabs module.
func (b *Bar) tabsWidth() int {
	if len(b.Tabs) == 0 {
		return 0
	}
	w := runewidth.StringWidth(b.Glyphs.ArrowLeft) + runewidth.StringWidth(b.Glyphs.ArrowRight)
	for i, t := range b.Tabs {
		if i > 0 {
			w += runewidth.StringWidth(b.Glyphs.Separator)
		}
		w += runewidth.StringWidth(" " + t.Name + " ")
	}
	return w
}

// fit drops the lowest-priority modules until the section fits the budget.
// Modules keep their relative order.
func fit(mods []Module, budget int) []Module {
	kept := make([]Module, len(mods))
	copy(kept, mods)
	width := func() int {
		w := 0
		for i, m := range kept {
			if i > 0 {
				w++
			}
			w += runewidth.StringWidth(m.Text)
		}
		return w
	}
	for len(kept) > 0 && width() > budget {
		lowest := 0
		for i, m := range kept {
			if m.Priority < kept[lowest].Priority {
				lowest = i
			}
		}
		kept = append(kept[:lowest], kept[lowest+1:]...)
	}
	return kept
}

// Render draws the bar onto row of the buffer across the full width.
func (b *Bar) Render(buf *cellbuf.Buffer, row, width int) {
	buf.FillRect(cellbuf.Rect{X: 0, Y: row, W: width, H: 1}, cellbuf.Cell{R: ' ', Style: b.FillStyle})

	// Center: the tabs module, measured exactly and centered on the
	// terminal midpoint.
	tw := b.tabsWidth()
	centerStart := width/2 - tw/2
	if centerStart < 0 {
		centerStart = 0
	}
	x := centerStart
	if tw > 0 && tw <= width {
		x = buf.SetString(x, row, b.Glyphs.ArrowLeft, b.InactiveStyle)
		for i, t := range b.Tabs {
			if i > 0 {
				x = buf.SetString(x, row, b.Glyphs.Separator, b.InactiveStyle)
			}
			style := b.InactiveStyle
			if t.Active {
				style = b.ActiveStyle
			}
			x = buf.SetString(x, row, " "+t.Name+" ", style)
		}
		x = buf.SetString(x, row, b.Glyphs.ArrowRight, b.InactiveStyle)
	} else {
		centerStart = width / 2
		x = centerStart
	}
	centerEnd := x

	// Left section fills the leftward budget.
	leftBudget := centerStart - 1
	if leftBudget < 0 {
		leftBudget = 0
	}
	lx := 0
	for i, m := range fit(b.Left, leftBudget) {
		if i > 0 {
			lx++
		}
		lx = buf.SetString(lx, row, m.Text, m.Style)
	}

	// Right section fills the rightward budget, right-aligned.
	rightBudget := width - centerEnd - 1
	if rightBudget < 0 {
		rightBudget = 0
	}
	kept := fit(b.Right, rightBudget)
	rw := 0
	for i, m := range kept {
		if i > 0 {
			rw++
		}
		rw += runewidth.StringWidth(m.Text)
	}
	rx := width - rw
	for i, m := range kept {
		if i > 0 {
			rx++
		}
		rx = buf.SetString(rx, row, m.Text, m.Style)
	}
}
