package mux

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/mattn/go-runewidth"
)

// maxClipboardPayload caps the OSC 52 payload before base64 encoding.
const maxClipboardPayload = 128 * 1024

// SGR mouse button bits.
const (
	mouseBtnLeft    = 0
	mouseBtnMotion  = 32
	mouseBtnWheelUp = 64
	mouseBtnWheelDn = 65
	mouseModShift   = 4
	mouseModMeta    = 8
	mouseModCtrl    = 16
)

// Selection is the mouse selection state. Anchor and cursor are buffer
// coordinates (column, absolute scrollback row) so viewport scrolling
// during a drag does not drift the selection.
type Selection struct {
	Active   bool // drag in progress
	Have     bool // a finished selection is still displayed
	PaneUUID string

	StartX, StartY int
	EndX, EndY     int
}

// HandleMouse routes one SGR mouse event.
func (s *State) HandleMouse(btn, x, y int, press bool, raw []byte) {
	// The status bar row is a tab-switch surface.
	if s.StatusH > 0 && y >= s.TermH-s.StatusH {
		if press && btn&^(mouseModShift|mouseModMeta|mouseModCtrl) == mouseBtnLeft {
			if idx := s.tabHit(x); idx >= 0 {
				s.SwitchTab(idx)
			}
		}
		return
	}

	p := s.paneAt(x, y)

	base := btn &^ (mouseModShift | mouseModMeta | mouseModCtrl)
	switch {
	case base == mouseBtnWheelUp || base == mouseBtnWheelDn:
		if p == nil {
			return
		}
		if p.AltScreen {
			s.forwardMouse(p, raw, x, y)
			return
		}
		if base == mouseBtnWheelUp {
			p.ScrollUp(3)
		} else {
			p.ScrollDown(3)
		}

	case base == mouseBtnLeft && press:
		if p == nil {
			return
		}
		s.focusPaneByClick(p)
		if p.AltScreen && !s.overrideHeld(btn) {
			s.forwardMouse(p, raw, x, y)
			return
		}
		s.Sel = Selection{
			Active:   true,
			PaneUUID: p.UUID,
			StartX:   x - p.X,
			StartY:   p.viewportTop() + (y - p.Y),
			EndX:     x - p.X,
			EndY:     p.viewportTop() + (y - p.Y),
		}

	case base&mouseBtnMotion != 0:
		if !s.Sel.Active {
			if p != nil && p.AltScreen {
				s.forwardMouse(p, raw, x, y)
			}
			return
		}
		sp := s.FindPaneByUUID(s.Sel.PaneUUID)
		if sp == nil {
			s.Sel = Selection{}
			return
		}
		s.Sel.EndX = clamp(x-sp.X, 0, sp.W-1)
		s.Sel.EndY = sp.viewportTop() + clamp(y-sp.Y, 0, sp.H-1)

	case base == mouseBtnLeft && !press:
		if !s.Sel.Active {
			if p != nil && p.AltScreen {
				s.forwardMouse(p, raw, x, y)
			}
			return
		}
		s.Sel.Active = false
		s.Sel.Have = true
		sp := s.FindPaneByUUID(s.Sel.PaneUUID)
		if sp == nil {
			s.Sel = Selection{}
			return
		}
		text := sp.TextBetween(s.Sel.StartX, s.Sel.StartY, s.Sel.EndX, s.Sel.EndY)
		if text != "" {
			s.CopyToClipboard(text)
		}
	}
}

// overrideHeld reports whether the configured selection override modifier
// is present in the SGR button bits.
func (s *State) overrideHeld(btn int) bool {
	switch s.Cfg.Selection.OverrideMods {
	case "alt":
		return btn&mouseModMeta != 0
	case "ctrl":
		return btn&mouseModCtrl != 0
	default:
		return btn&mouseModShift != 0
	}
}

// forwardMouse re-encodes the event pane-local and sends it to an
// alt-screen child.
func (s *State) forwardMouse(p *Pane, raw []byte, x, y int) {
	seq := string(raw)
	semi := strings.IndexByte(seq, ';')
	if !strings.HasPrefix(seq, "\x1b[<") || semi < 0 {
		s.writePane(p, raw)
		return
	}
	btn, final := seq[3:semi], seq[len(seq)-1]
	s.writePane(p, []byte(fmt.Sprintf("\x1b[<%s;%d;%d%c", btn, x-p.X+1, y-p.Y+1, final)))
}

// paneAt finds the topmost pane whose content rectangle contains the
// point: the active float, other visible floats front-to-back, then the
// tiled layout.
func (s *State) paneAt(x, y int) *Pane {
	if f := s.ActiveFloat(); f != nil && contains(f, x, y) {
		return f
	}
	vis := s.VisibleFloats(s.ActiveTab)
	for i := len(vis) - 1; i >= 0; i-- {
		if contains(vis[i], x, y) {
			return vis[i]
		}
	}
	if t := s.CurrentTab(); t != nil {
		for _, p := range t.Layout.Splits {
			if contains(p, x, y) {
				return p
			}
		}
	}
	return nil
}

func contains(p *Pane, x, y int) bool {
	return x >= p.X && x < p.X+p.W && y >= p.Y && y < p.Y+p.H
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// focusPaneByClick moves focus to a clicked pane.
func (s *State) focusPaneByClick(p *Pane) {
	if p.Floating {
		s.focusFloat(p)
		return
	}
	if t := s.CurrentTab(); t != nil {
		if _, ok := t.Layout.Splits[p.ID]; ok {
			s.ActiveFloating = -1
			for _, f := range s.Floats {
				f.Focused = false
			}
			t.Layout.SetFocus(p.ID)
			if s.ActiveTab < len(s.TabLastFocusKind) {
				s.TabLastFocusKind[s.ActiveTab] = FocusSplit
			}
		}
	}
}

// tabHit maps a status-bar column to a tab index using the same centered
// measurement the tabs module renders with.
func (s *State) tabHit(x int) int {
	if len(s.Tabs) == 0 {
		return -1
	}
	total := 0
	widths := make([]int, len(s.Tabs))
	for i, t := range s.Tabs {
		widths[i] = runewidth.StringWidth(" " + t.Name + " ")
		total += widths[i]
		if i > 0 {
			total++ // separator
		}
	}
	start := s.TermW/2 - total/2
	pos := start
	for i, w := range widths {
		if x >= pos && x < pos+w {
			return i
		}
		pos += w + 1
	}
	return -1
}

// CopyToClipboard fans the text out: OSC 52 always (payload capped), a
// native helper when the environment names one, and the clipboard library
// as a final fallback. Helpers never block the event loop.
func (s *State) CopyToClipboard(text string) {
	payload := text
	if len(payload) > maxClipboardPayload {
		payload = payload[:maxClipboardPayload]
	}
	osc52.New(payload).WriteTo(s.Out)

	switch {
	case os.Getenv("WAYLAND_DISPLAY") != "":
		runClipboardHelper("wl-copy", nil, text)
	case os.Getenv("DISPLAY") != "":
		if !runClipboardHelper("xclip", []string{"-selection", "clipboard"}, text) {
			runClipboardHelper("xsel", []string{"--clipboard", "--input"}, text)
		}
	default:
		go clipboard.WriteAll(text)
	}
}

// runClipboardHelper starts a helper with the text on stdin, fire and
// forget. Returns false when the helper binary is missing.
func runClipboardHelper(name string, args []string, text string) bool {
	if _, err := exec.LookPath(name); err != nil {
		return false
	}
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Start(); err != nil {
		return false
	}
	go cmd.Wait()
	return true
}
