package mux

import (
	"fmt"
	"testing"
)

// fillPane writes n numbered lines into the pane's terminals.
func fillPane(p *Pane, n int) {
	for i := 0; i < n; i++ {
		p.Feed([]byte(fmt.Sprintf("row-%03d\r\n", i)))
	}
}

func TestSelectionAnchorsInBufferCoords(t *testing.T) {
	s, _ := newTestState(80, 24)
	p := s.FocusedPane()
	fillPane(p, 100)

	topAtPress := p.viewportTop()
	s.HandleMouse(mouseBtnLeft, 5, 3, true, []byte("\x1b[<0;6;4M"))
	if !s.Sel.Active {
		t.Fatalf("press should begin a selection")
	}
	if s.Sel.StartY != topAtPress+3 || s.Sel.StartX != 5 {
		t.Fatalf("anchor = (%d,%d), want (5,%d)", s.Sel.StartX, s.Sel.StartY, topAtPress+3)
	}

	// Scrolling during the drag must not move the buffer anchor.
	p.ScrollUp(10)
	if s.Sel.StartY != topAtPress+3 {
		t.Fatalf("anchor drifted after scroll")
	}

	topAtRelease := p.viewportTop()
	s.HandleMouse(mouseBtnLeft|mouseBtnMotion, 10, 5, true, nil)
	if s.Sel.EndY != topAtRelease+5 || s.Sel.EndX != 10 {
		t.Fatalf("cursor = (%d,%d), want (10,%d)", s.Sel.EndX, s.Sel.EndY, topAtRelease+5)
	}

	s.HandleMouse(mouseBtnLeft, 10, 5, false, nil)
	if s.Sel.Active || !s.Sel.Have {
		t.Fatalf("release should finish the selection")
	}
}

func TestTextBetweenTrimsTrailingSpaces(t *testing.T) {
	p, _ := newTestPane(0, 0, 0, 40, 10)
	p.Feed([]byte("alpha   \r\nbeta\r\n"))
	got := p.TextBetween(0, 0, 3, 1)
	if got != "alpha\nbeta" {
		t.Fatalf("extracted %q", got)
	}
}

func TestTextBetweenNormalizesReversedRange(t *testing.T) {
	p, _ := newTestPane(0, 0, 0, 40, 10)
	p.Feed([]byte("one\r\ntwo\r\n"))
	forward := p.TextBetween(0, 0, 2, 1)
	backward := p.TextBetween(2, 1, 0, 0)
	if forward != backward {
		t.Fatalf("%q != %q", forward, backward)
	}
}

func TestWheelScrollsNonAltPane(t *testing.T) {
	s, _ := newTestState(80, 24)
	p := s.FocusedPane()
	fillPane(p, 100)
	s.HandleMouse(mouseBtnWheelUp, 10, 10, true, []byte("\x1b[<64;11;11M"))
	if p.Scroll != 3 {
		t.Fatalf("wheel should scroll 3 lines, got %d", p.Scroll)
	}
}

func TestWheelForwardsToAltScreenPane(t *testing.T) {
	s, sink := newTestState(80, 24)
	p := s.FocusedPane()
	p.AltScreen = true
	raw := []byte("\x1b[<64;11;11M")
	s.HandleMouse(mouseBtnWheelUp, 10, 10, true, raw)
	if sink.String() != string(raw) {
		t.Fatalf("alt-screen pane should receive wheel bytes, got %q", sink.String())
	}
	if p.Scroll != 0 {
		t.Fatalf("alt-screen pane must not scroll internally")
	}
}

func TestAltScreenPressWithOverrideSelects(t *testing.T) {
	s, _ := newTestState(80, 24)
	p := s.FocusedPane()
	p.AltScreen = true
	s.HandleMouse(mouseBtnLeft|mouseModShift, 5, 3, true, []byte("\x1b[<4;6;4M"))
	if !s.Sel.Active {
		t.Fatalf("override modifier should force selection in alt-screen")
	}
}

func TestStatusBarClickSwitchesTab(t *testing.T) {
	s, _ := newTestState(80, 24)
	lx, ly, lw, lh := s.LayoutArea()
	p2, _ := newTestPane(0, lx, ly, lw, lh)
	s.AddTab(NewTab("2", NewLayout(lx, ly, lw, lh, p2)))

	// Tabs module: " 1 | 2 " centered on column 40.
	hit := s.TermW/2 + 2
	s.HandleMouse(mouseBtnLeft, hit, s.TermH-1, true, nil)
	if s.ActiveTab != 1 {
		t.Fatalf("status bar click should switch tabs, active=%d", s.ActiveTab)
	}
}
