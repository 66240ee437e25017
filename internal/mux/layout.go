package mux

import "sort"

// SplitDir is the axis of an interior split node.
type SplitDir int

const (
	SplitH SplitDir = iota // side-by-side, border column between
	SplitV                 // stacked, border row between
)

// Node is a layout tree node: a pane leaf (First==nil) or an interior
// split owning both children.
type Node struct {
	PaneID int // leaf pane id, meaningless for splits
	Dir    SplitDir
	Ratio  float64
	First  *Node
	Second *Node
}

// Leaf reports whether the node references a pane.
func (n *Node) Leaf() bool { return n.First == nil }

// Layout is the per-tab binary split tree over a set of panes.
type Layout struct {
	X, Y, W, H int // usable region, excluding the status bar

	Root      *Node
	Splits    map[int]*Pane
	FocusedID int
	NextID    int
}

// NewLayout builds a single-pane layout.
func NewLayout(x, y, w, h int, p *Pane) *Layout {
	l := &Layout{
		X: x, Y: y, W: w, H: h,
		Root:      &Node{PaneID: p.ID},
		Splits:    map[int]*Pane{p.ID: p},
		FocusedID: p.ID,
		NextID:    p.ID + 1,
	}
	p.Resize(x, y, w, h)
	return l
}

// Focused returns the focused pane, or nil for an empty layout.
func (l *Layout) Focused() *Pane {
	return l.Splits[l.FocusedID]
}

// Count returns the number of panes.
func (l *Layout) Count() int { return len(l.Splits) }

// findLeaf returns the leaf node for a pane id and its parent split.
func findLeaf(n, parent *Node, id int) (*Node, *Node) {
	if n == nil {
		return nil, nil
	}
	if n.Leaf() {
		if n.PaneID == id {
			return n, parent
		}
		return nil, nil
	}
	if leaf, par := findLeaf(n.First, n, id); leaf != nil {
		return leaf, par
	}
	return findLeaf(n.Second, n, id)
}

// Split replaces the focused leaf with an interior node holding the old
// pane first and the new pane second at ratio 0.5, recalculates, and
// focuses the new pane.
func (l *Layout) Split(dir SplitDir, newPane *Pane) {
	leaf, _ := findLeaf(l.Root, nil, l.FocusedID)
	if leaf == nil {
		return
	}
	newPane.ID = l.NextID
	l.NextID++
	l.Splits[newPane.ID] = newPane

	old := &Node{PaneID: leaf.PaneID}
	leaf.First = old
	leaf.Second = &Node{PaneID: newPane.ID}
	leaf.Dir = dir
	leaf.Ratio = 0.5

	l.Recalculate()
	l.SetFocus(newPane.ID)
}

// Close removes the pane by id, collapsing its parent split into the
// surviving sibling. Returns the removed pane, or nil when it is the last
// pane (the caller decides whether that becomes a tab close).
func (l *Layout) Close(id int) *Pane {
	p, ok := l.Splits[id]
	if !ok || len(l.Splits) <= 1 {
		return nil
	}

	// Move focus off the closing pane first, in ascending-id order.
	if l.FocusedID == id {
		ids := make([]int, 0, len(l.Splits))
		for pid := range l.Splits {
			if pid != id {
				ids = append(ids, pid)
			}
		}
		sort.Ints(ids)
		next := ids[0]
		for _, pid := range ids {
			if pid > id {
				next = pid
				break
			}
		}
		l.SetFocus(next)
	}

	leaf, parent := findLeaf(l.Root, nil, id)
	if leaf == nil {
		return nil
	}
	delete(l.Splits, id)
	if parent == nil {
		// Root leaf with siblings impossible: len>1 guaranteed a parent.
		return p
	}
	survivor := parent.First
	if survivor == leaf {
		survivor = parent.Second
	}
	*parent = *survivor

	l.Recalculate()
	return p
}

// CloseFocused removes the focused pane.
func (l *Layout) CloseFocused() *Pane {
	return l.Close(l.FocusedID)
}

// SetFocus moves focus to the pane id; unfocus and focus happen together.
func (l *Layout) SetFocus(id int) {
	if _, ok := l.Splits[id]; !ok {
		return
	}
	for pid, p := range l.Splits {
		p.Focused = pid == id
	}
	l.FocusedID = id
}

// Recalculate assigns rectangles depth-first. A horizontal split of width
// w gives the first child floor(w*ratio)-1 columns, one border column, and
// the rest to the second child; vertical splits are analogous with rows.
func (l *Layout) Recalculate() {
	l.recalc(l.Root, l.X, l.Y, l.W, l.H)
}

func (l *Layout) recalc(n *Node, x, y, w, h int) {
	if n == nil {
		return
	}
	if n.Leaf() {
		if p := l.Splits[n.PaneID]; p != nil {
			p.Resize(x, y, w, h)
		}
		return
	}
	if n.Dir == SplitH {
		firstW := int(float64(w)*n.Ratio) - 1
		if firstW < 1 {
			firstW = 1
		}
		secondW := w - firstW - 1
		if secondW < 1 {
			secondW = 1
		}
		l.recalc(n.First, x, y, firstW, h)
		l.recalc(n.Second, x+firstW+1, y, secondW, h)
		return
	}
	firstH := int(float64(h)*n.Ratio) - 1
	if firstH < 1 {
		firstH = 1
	}
	secondH := h - firstH - 1
	if secondH < 1 {
		secondH = 1
	}
	l.recalc(n.First, x, y, w, firstH)
	l.recalc(n.Second, x, y+firstH+1, w, secondH)
}

// ResizeArea updates the usable region and recalculates every pane.
func (l *Layout) ResizeArea(x, y, w, h int) {
	l.X, l.Y, l.W, l.H = x, y, w, h
	l.Recalculate()
}

// FocusDirectional moves focus to the best pane strictly beyond the
// focused pane's edge in the given direction. Candidates are scored by
// |primary delta| + |secondary delta|/2; minimum wins, first-encountered
// breaks ties. cursorX/cursorY refine the secondary axis origin when >= 0.
func (l *Layout) FocusDirectional(dir Direction, cursorX, cursorY int) bool {
	cur := l.Focused()
	if cur == nil {
		return false
	}
	origX := cur.X + cur.W/2
	origY := cur.Y + cur.H/2
	if cursorX >= 0 {
		origX = cursorX
	}
	if cursorY >= 0 {
		origY = cursorY
	}

	ids := make([]int, 0, len(l.Splits))
	for id := range l.Splits {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	best := -1
	bestScore := 0
	for _, id := range ids {
		p := l.Splits[id]
		if p == cur {
			continue
		}
		var primary, secondary int
		switch dir {
		case DirLeft:
			if p.X+p.W > cur.X {
				continue
			}
			primary = origX - (p.X + p.W)
			secondary = delta(origY, p.Y, p.H)
		case DirRight:
			if p.X < cur.X+cur.W {
				continue
			}
			primary = p.X - origX
			secondary = delta(origY, p.Y, p.H)
		case DirUp:
			if p.Y+p.H > cur.Y {
				continue
			}
			primary = origY - (p.Y + p.H)
			secondary = delta(origX, p.X, p.W)
		case DirDown:
			if p.Y < cur.Y+cur.H {
				continue
			}
			primary = p.Y - origY
			secondary = delta(origX, p.X, p.W)
		}
		score := abs(primary) + abs(secondary)/2
		if best == -1 || score < bestScore {
			best = id
			bestScore = score
		}
	}
	if best < 0 {
		return false
	}
	l.SetFocus(best)
	return true
}

// delta returns the distance from v to the [lo, lo+size) interval, zero
// when inside.
func delta(v, lo, size int) int {
	if v < lo {
		return lo - v
	}
	if v >= lo+size {
		return v - (lo + size - 1)
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Direction is a focus/nudge direction.
type Direction int

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

// ParseDirection maps a config string to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return DirUp, true
	case "down":
		return DirDown, true
	case "left":
		return DirLeft, true
	case "right":
		return DirRight, true
	}
	return DirUp, false
}
