package mux

import (
	"math"

	"hexe/internal/ses"
)

// Float placement and visibility. Floats are process-wide, ordered
// back-to-front, and carry percentage placement so a resize is a pure
// function of the terminal size.

// PlaceFloat computes the outer and content rectangles of a float from its
// percentages and the usable area (terminal minus status bar, minus one
// shadow row when shadows are on).
func (s *State) PlaceFloat(p *Pane) {
	usableW := s.TermW
	usableH := s.TermH - s.StatusH
	if s.Cfg.Status.Shadow {
		usableH--
	}
	if usableW < 4 {
		usableW = 4
	}
	if usableH < 4 {
		usableH = 4
	}

	outerW := int(math.Round(float64(usableW) * p.WidthPct / 100))
	outerH := int(math.Round(float64(usableH) * p.HeightPct / 100))
	if outerW < 4 {
		outerW = 4
	}
	if outerH < 3 {
		outerH = 3
	}
	outerX := int(math.Round(float64(usableW-outerW) * p.PosXPct / 100))
	outerY := int(math.Round(float64(usableH-outerH) * p.PosYPct / 100))

	p.BorderX, p.BorderY = outerX, outerY
	p.BorderW, p.BorderH = outerW, outerH

	inX := 1 + p.PadX
	inY := 1 + p.PadY
	w := outerW - 2*inX
	h := outerH - 2*inY
	p.Resize(outerX+inX, outerY+inY, w, h)
}

// VisibleFloats returns the floats shown on the given tab, in draw order.
// The active float is drawn last by the renderer, not reordered here.
func (s *State) VisibleFloats(tab int) []*Pane {
	var out []*Pane
	for _, f := range s.Floats {
		if s.floatVisibleOn(f, tab) {
			out = append(out, f)
		}
	}
	return out
}

func (s *State) floatVisibleOn(f *Pane, tab int) bool {
	if !f.Visible {
		return false
	}
	if f.Global {
		return f.VisibleOn[tab]
	}
	if f.ParentTab >= 0 {
		return f.ParentTab == tab
	}
	return true
}

// ActiveFloat returns the focused float, or nil.
func (s *State) ActiveFloat() *Pane {
	if s.ActiveFloating < 0 || s.ActiveFloating >= len(s.Floats) {
		return nil
	}
	return s.Floats[s.ActiveFloating]
}

// ToggleFloat shows or hides the float bound to key for the current tab,
// creating it on first use. Visibility semantics depend on the float's
// attribute combination (global / per-cwd / tab-bound).
func (s *State) ToggleFloat(key byte) {
	cwd := s.focusedCwd()
	f := s.findFloat(key, cwd)
	if f == nil {
		s.createFloat(key, cwd)
		return
	}
	if s.floatVisibleOn(f, s.ActiveTab) {
		s.hideFloat(f)
		return
	}
	s.showFloat(f)
}

// findFloat locates the float for a key: per-cwd floats match on
// (key, directory), others on key alone.
func (s *State) findFloat(key byte, cwd string) *Pane {
	for _, f := range s.Floats {
		if f.FloatKey != key {
			continue
		}
		if f.IsPwd && f.PwdDir != cwd {
			continue
		}
		return f
	}
	return nil
}

func (s *State) showFloat(f *Pane) {
	if f.Global {
		if f.VisibleOn == nil {
			f.VisibleOn = make(map[int]bool)
		}
		f.VisibleOn[s.ActiveTab] = true
	}
	f.Visible = true
	if f.Alone {
		for _, other := range s.Floats {
			if other != f && s.floatVisibleOn(other, s.ActiveTab) {
				s.hideFloat(other)
			}
		}
	}
	s.PlaceFloat(f)
	s.focusFloat(f)
}

func (s *State) hideFloat(f *Pane) {
	if f.Global {
		delete(f.VisibleOn, s.ActiveTab)
		visibleAnywhere := len(f.VisibleOn) > 0
		if !visibleAnywhere {
			f.Visible = false
		}
	} else {
		f.Visible = false
	}
	// destroy-on-hide is ignored for global and per-cwd floats.
	if f.Destroy && !f.Global && !f.IsPwd {
		s.removeFloat(f, true)
	}
	if s.ActiveFloat() == f {
		s.ActiveFloating = -1
		s.focusSplit()
	}
}

// createFloat spawns a new float for the key, preferring a sticky orphan
// from SES for the same (key, cwd).
func (s *State) createFloat(key byte, cwd string) {
	cfg := s.Cfg.Floats
	f := &Pane{
		UUID:      NewUUID(),
		Floating:  true,
		Visible:   true,
		ParentTab: s.ActiveTab,
		FloatKey:  key,
		PwdDir:    cwd,
		WidthPct:  float64(cfg.WidthPct),
		HeightPct: float64(cfg.HeightPct),
		PosXPct:   float64(cfg.PosXPct),
		PosYPct:   float64(cfg.PosYPct),
		PadX:      cfg.PadX,
		PadY:      cfg.PadY,
	}
	f.Vt, f.Scrollback = newPaneTerminals(80, 24)
	s.PlaceFloat(f)

	if s.Ses != nil {
		if found, err := s.Ses.FindSticky(string(key), cwd); err == nil && found.Found {
			if resp, err := s.Ses.AdoptPane(found.UUID); err == nil {
				f.Ses = s.Ses
				f.PaneID = resp.PaneID
				f.UUID = resp.UUID
				f.Sticky = true
				s.Floats = append(s.Floats, f)
				s.focusFloat(f)
				return
			}
		}
		s.PendingFloatRequests[f.UUID] = PendingFloatRequest{Key: key, Cwd: cwd}
		resp, err := s.Ses.CreatePane(ses.CreatePaneReq{
			UUID: f.UUID, Cwd: cwd, Cols: f.W, Rows: f.H,
		})
		delete(s.PendingFloatRequests, f.UUID)
		if err != nil {
			s.Pop.Notify("float spawn failed: "+err.Error(), notifyTTL)
			return
		}
		f.Ses = s.Ses
		f.PaneID = resp.PaneID
		f.UUID = resp.UUID
	} else {
		lp, err := OpenLocal(0, f.X, f.Y, f.W, f.H, "")
		if err != nil {
			s.Pop.Notify("float spawn failed: "+err.Error(), notifyTTL)
			return
		}
		f.Ptm = lp.Ptm
		f.Cmd = lp.Cmd
		f.UUID = lp.UUID
	}
	s.Floats = append(s.Floats, f)
	s.focusFloat(f)
}

// removeFloat drops a float from the list; kill controls whether its
// backend dies. Sticky floats are orphaned instead of killed.
func (s *State) removeFloat(f *Pane, kill bool) {
	for i, other := range s.Floats {
		if other != f {
			continue
		}
		s.Floats = append(s.Floats[:i], s.Floats[i+1:]...)
		if s.ActiveFloating == i {
			s.ActiveFloating = -1
		} else if s.ActiveFloating > i {
			s.ActiveFloating--
		}
		break
	}
	if f.Sticky && f.Ses != nil {
		f.Ses.SetSticky(f.UUID, true, string(f.FloatKey))
		f.Ses.OrphanPane(f.UUID)
		return
	}
	f.Close(kill)
}

// NudgeFloat moves the active float one cell, clamped to the screen, and
// recomputes its percentage coordinates so later resizes preserve the new
// position.
func (s *State) NudgeFloat(dir Direction) {
	f := s.ActiveFloat()
	if f == nil {
		return
	}
	usableW := s.TermW
	usableH := s.TermH - s.StatusH
	if s.Cfg.Status.Shadow {
		usableH--
	}
	x, y := f.BorderX, f.BorderY
	switch dir {
	case DirUp:
		y--
	case DirDown:
		y++
	case DirLeft:
		x--
	case DirRight:
		x++
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	if x+f.BorderW > usableW {
		x = usableW - f.BorderW
	}
	if y+f.BorderH > usableH {
		y = usableH - f.BorderH
	}

	denomX := usableW - f.BorderW
	denomY := usableH - f.BorderH
	if denomX > 0 {
		f.PosXPct = float64(x*100) / float64(denomX)
	}
	if denomY > 0 {
		f.PosYPct = float64(y*100) / float64(denomY)
	}
	s.PlaceFloat(f)
}
