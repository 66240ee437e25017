package mux

import (
	"bytes"
	"os"

	"hexe/internal/config"
	"hexe/internal/pop"
)

func popConfirmForTest() *pop.Popup {
	return pop.NewConfirm("test")
}

// newTestPane builds a backend-less pane whose writes land in the returned
// buffer.
func newTestPane(id, x, y, w, h int) (*Pane, *bytes.Buffer) {
	var sink bytes.Buffer
	p := &Pane{
		UUID: NewUUID(), ID: id,
		X: x, Y: y, W: w, H: h,
		ParentTab: -1, Visible: true,
		Sink: &sink,
	}
	p.Vt, p.Scrollback = newPaneTerminals(w, h)
	return p, &sink
}

// newTestState builds a one-tab state at the given terminal size with
// confirms disabled.
func newTestState(w, h int) (*State, *bytes.Buffer) {
	cfg := config.Default()
	cfg.Confirm = config.ConfirmConfig{}
	s := NewState(cfg, w, h)
	s.Name = "test"
	if f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0); err == nil {
		s.Out = f
	}
	lx, ly, lw, lh := s.LayoutArea()
	p, sink := newTestPane(0, lx, ly, lw, lh)
	s.AddTab(NewTab("1", NewLayout(lx, ly, lw, lh, p)))
	s.focusSplit()
	return s, sink
}

// addTestFloat registers a visible tab-bound float.
func addTestFloat(s *State, key byte) *Pane {
	f, _ := newTestPane(0, 0, 0, 10, 5)
	f.Floating = true
	f.FloatKey = key
	f.ParentTab = s.ActiveTab
	f.WidthPct, f.HeightPct = 60, 60
	f.PosXPct, f.PosYPct = 50, 50
	s.PlaceFloat(f)
	s.Floats = append(s.Floats, f)
	return f
}
