package mux

import "testing"

func TestFloatPlacementIdempotent(t *testing.T) {
	s, _ := newTestState(120, 40)
	f := addTestFloat(s, 'f')

	s.Resize(120, 40)
	x1, y1, w1, h1 := f.BorderX, f.BorderY, f.BorderW, f.BorderH
	s.Resize(120, 40)
	if f.BorderX != x1 || f.BorderY != y1 || f.BorderW != w1 || f.BorderH != h1 {
		t.Fatalf("same-size resize moved the float")
	}

	s.Resize(80, 24)
	s.Resize(120, 40)
	if f.BorderX != x1 || f.BorderY != y1 || f.BorderW != w1 || f.BorderH != h1 {
		t.Fatalf("resize round trip moved the float: (%d,%d,%d,%d) != (%d,%d,%d,%d)",
			f.BorderX, f.BorderY, f.BorderW, f.BorderH, x1, y1, w1, h1)
	}
}

func TestNudgePreservedAcrossResize(t *testing.T) {
	s, _ := newTestState(120, 40)
	f := addTestFloat(s, 'f')
	s.focusFloat(f)

	s.NudgeFloat(DirRight)
	s.NudgeFloat(DirRight)
	x := f.BorderX
	s.Resize(120, 40)
	if f.BorderX != x {
		t.Fatalf("nudge must survive a same-size resize: %d != %d", f.BorderX, x)
	}
}

func TestNudgeClampsToEdges(t *testing.T) {
	s, _ := newTestState(120, 40)
	f := addTestFloat(s, 'f')
	s.focusFloat(f)
	for i := 0; i < 500; i++ {
		s.NudgeFloat(DirLeft)
		s.NudgeFloat(DirUp)
	}
	if f.BorderX != 0 || f.BorderY != 0 {
		t.Fatalf("float should clamp at the origin, got (%d,%d)", f.BorderX, f.BorderY)
	}
}

func TestGlobalFloatPerTabVisibility(t *testing.T) {
	s, _ := newTestState(120, 40)
	lx, ly, lw, lh := s.LayoutArea()
	p2, _ := newTestPane(0, lx, ly, lw, lh)
	s.AddTab(NewTab("2", NewLayout(lx, ly, lw, lh, p2)))

	f := addTestFloat(s, 'g')
	f.Global = true
	f.ParentTab = -1
	f.VisibleOn = map[int]bool{0: true}

	if !s.floatVisibleOn(f, 0) {
		t.Fatalf("toggled-on tab should show the global float")
	}
	if s.floatVisibleOn(f, 1) {
		t.Fatalf("global float must stay hidden on other tabs")
	}
}

func TestTabBoundFloatHiddenElsewhere(t *testing.T) {
	s, _ := newTestState(120, 40)
	lx, ly, lw, lh := s.LayoutArea()
	p2, _ := newTestPane(0, lx, ly, lw, lh)
	s.AddTab(NewTab("2", NewLayout(lx, ly, lw, lh, p2)))

	f := addTestFloat(s, 'f') // bound to tab 0
	if !s.floatVisibleOn(f, 0) || s.floatVisibleOn(f, 1) {
		t.Fatalf("tab-bound float visibility wrong")
	}
}

func TestCloseTabAdjustsFloatBindings(t *testing.T) {
	s, _ := newTestState(120, 40)
	lx, ly, lw, lh := s.LayoutArea()
	for i := 0; i < 2; i++ {
		p, _ := newTestPane(0, lx, ly, lw, lh)
		s.AddTab(NewTab(DefaultTabName(i+1), NewLayout(lx, ly, lw, lh, p)))
	}
	f1 := addTestFloat(s, 'a')
	f1.ParentTab = 1
	f2 := addTestFloat(s, 'b')
	f2.ParentTab = 2

	if !s.CloseTab(1) {
		t.Fatalf("close should succeed with three tabs")
	}
	if f1.ParentTab != -1 || f1.Visible {
		t.Fatalf("float bound to the closed tab should unbind and hide")
	}
	if f2.ParentTab != 1 {
		t.Fatalf("later bindings should shift down, got %d", f2.ParentTab)
	}
	for _, f := range s.Floats {
		if f.ParentTab >= len(s.Tabs) {
			t.Fatalf("dangling parent_tab %d", f.ParentTab)
		}
	}
}

func TestAloneHidesOtherFloats(t *testing.T) {
	s, _ := newTestState(120, 40)
	f1 := addTestFloat(s, 'a')
	f2 := addTestFloat(s, 'b')
	f2.Alone = true
	s.showFloat(f2)
	if s.floatVisibleOn(f1, s.ActiveTab) {
		t.Fatalf("showing an alone float must hide the others")
	}
	if !s.floatVisibleOn(f2, s.ActiveTab) {
		t.Fatalf("the alone float itself should be visible")
	}
}

func TestFocusUniqueness(t *testing.T) {
	s, _ := newTestState(120, 40)
	f := addTestFloat(s, 'f')
	s.focusFloat(f)

	count := 0
	for _, tb := range s.Tabs {
		for _, p := range tb.Layout.Splits {
			if p.Focused {
				count++
			}
		}
	}
	for _, fl := range s.Floats {
		if fl.Focused {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("exactly one pane may be focused, got %d", count)
	}
	s.focusSplit()
	count = 0
	for _, tb := range s.Tabs {
		for _, p := range tb.Layout.Splits {
			if p.Focused {
				count++
			}
		}
	}
	for _, fl := range s.Floats {
		if fl.Focused {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("focus should return to the split, got %d focused", count)
	}
}
