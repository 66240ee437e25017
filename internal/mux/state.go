package mux

import (
	"net"
	"os"
	"time"

	"hexe/internal/config"
	"hexe/internal/pop"
	"hexe/internal/ses"
)

const notifyTTL = 4 * time.Second

// FocusKind remembers whether a tab last focused a split or a float.
type FocusKind int

const (
	FocusSplit FocusKind = iota
	FocusFloat
)

// Action is a pending coordinator action awaiting a popup result.
type Action int

const (
	ActionNone Action = iota
	ActionExit
	ActionDetach
	ActionDisown
	ActionClose
	ActionAdoptChoose
	ActionAdoptConfirm
	ActionExitIntent
)

// PendingFloatRequest tracks an externally-requested float spawn awaiting
// its SES response.
type PendingFloatRequest struct {
	Key byte
	Cwd string
}

// State is the aggregate root of the mux: every component takes it by
// mutable reference and no other goroutine touches it.
type State struct {
	Tabs      []*Tab
	ActiveTab int

	Floats         []*Pane
	ActiveFloating int // -1 = none

	// Per-tab focus memory; both slices always match len(Tabs).
	TabLastFloatingUUID []string
	TabLastFocusKind    []FocusKind

	UUID string // mux session id, 32 hex bytes
	Name string

	// Cached OSC 10/11 responses probed before raw mode.
	OscFg string
	OscBg string

	Ses *ses.Client

	IPCListener net.Listener
	IPCFile     *os.File

	TermW, TermH int
	StatusH      int

	// Input state.
	StdinTail []byte // <= 64 bytes of a partial escape sequence

	// OSC reply proxy state machine.
	OscReplyTarget     string
	OscReplyBuf        []byte
	OscReplyInProgress bool
	oscReplyPrevEsc    bool

	KeyTimers []*KeyTimer
	Binds     []*Bind
	Sel       Selection

	PendingAction      Action
	ExitFromShellDeath bool
	ExitIntentDeadline time.Time
	SkipDeadCheck      bool
	PendingPopScope    string // "mux", "tab", "pane"
	PendingPopConn     net.Conn

	PaneShells           map[string]ses.PaneShell
	PendingFloatRequests map[string]PendingFloatRequest

	Pop pop.Manager // mux scope

	Cfg *config.Config

	Quit   bool
	Detach bool

	// AdoptOrphans holds the picker candidates while adopt is pending.
	AdoptOrphans []ses.OrphanInfo
	adoptChoice  string

	Out *os.File // the user-owned terminal
}

// NewState builds an empty state with defaults applied.
func NewState(cfg *config.Config, termW, termH int) *State {
	s := &State{
		ActiveFloating:       -1,
		UUID:                 NewUUID(),
		TermW:                termW,
		TermH:                termH,
		StatusH:              1,
		Cfg:                  cfg,
		PaneShells:           make(map[string]ses.PaneShell),
		PendingFloatRequests: make(map[string]PendingFloatRequest),
		Out:                  os.Stdout,
	}
	if !cfg.Status.Enabled {
		s.StatusH = 0
	}
	s.Binds = ParseBinds(cfg.Keybinds)
	return s
}

// CurrentTab returns the active tab, or nil when no tabs exist.
func (s *State) CurrentTab() *Tab {
	if len(s.Tabs) == 0 {
		return nil
	}
	if s.ActiveTab >= len(s.Tabs) {
		s.ActiveTab = len(s.Tabs) - 1
	}
	return s.Tabs[s.ActiveTab]
}

// LayoutArea returns the tiled region (terminal minus status bar).
func (s *State) LayoutArea() (x, y, w, h int) {
	return 0, 0, s.TermW, s.TermH - s.StatusH
}

// FocusedPane returns the pane holding focus: the active float when set,
// else the current tab's focused split.
func (s *State) FocusedPane() *Pane {
	if f := s.ActiveFloat(); f != nil {
		return f
	}
	if t := s.CurrentTab(); t != nil {
		return t.Layout.Focused()
	}
	return nil
}

// FindPaneByUUID walks every layout and the float list.
func (s *State) FindPaneByUUID(id string) *Pane {
	for _, t := range s.Tabs {
		for _, p := range t.Layout.Splits {
			if p.UUID == id {
				return p
			}
		}
	}
	for _, f := range s.Floats {
		if f.UUID == id {
			return f
		}
	}
	return nil
}

// FindPaneByID resolves a SES VT routing id.
func (s *State) FindPaneByID(paneID uint32) *Pane {
	for _, t := range s.Tabs {
		for _, p := range t.Layout.Splits {
			if p.PaneID == paneID && p.Ses != nil {
				return p
			}
		}
	}
	for _, f := range s.Floats {
		if f.PaneID == paneID && f.Ses != nil {
			return f
		}
	}
	return nil
}

// focusFloat gives a float the single focus and records focus memory.
func (s *State) focusFloat(f *Pane) {
	for i, other := range s.Floats {
		other.Focused = other == f
		if other == f {
			s.ActiveFloating = i
		}
	}
	if t := s.CurrentTab(); t != nil {
		for _, p := range t.Layout.Splits {
			p.Focused = false
		}
	}
	if s.ActiveTab < len(s.TabLastFloatingUUID) {
		s.TabLastFloatingUUID[s.ActiveTab] = f.UUID
		s.TabLastFocusKind[s.ActiveTab] = FocusFloat
	}
}

// focusSplit returns focus to the current tab's layout.
func (s *State) focusSplit() {
	s.ActiveFloating = -1
	for _, f := range s.Floats {
		f.Focused = false
	}
	if t := s.CurrentTab(); t != nil {
		t.Layout.SetFocus(t.Layout.FocusedID)
	}
	if s.ActiveTab < len(s.TabLastFocusKind) {
		s.TabLastFocusKind[s.ActiveTab] = FocusSplit
	}
}

// focusedCwd returns the focused pane's working directory as last reported
// by the shell integration, falling back to the process cwd.
func (s *State) focusedCwd() string {
	if p := s.FocusedPane(); p != nil {
		if sh, ok := s.PaneShells[p.UUID]; ok && sh.Cwd != "" {
			return sh.Cwd
		}
	}
	cwd, _ := os.Getwd()
	return cwd
}

// AddTab appends a tab with matching focus-memory entries.
func (s *State) AddTab(t *Tab) {
	s.Tabs = append(s.Tabs, t)
	s.TabLastFloatingUUID = append(s.TabLastFloatingUUID, "")
	s.TabLastFocusKind = append(s.TabLastFocusKind, FocusSplit)
}

// SwitchTab activates the tab and restores its focus memory.
func (s *State) SwitchTab(idx int) {
	if idx < 0 || idx >= len(s.Tabs) || idx == s.ActiveTab {
		return
	}
	s.ActiveTab = idx
	s.ActiveFloating = -1
	if s.TabLastFocusKind[idx] == FocusFloat {
		if f := s.FindPaneByUUID(s.TabLastFloatingUUID[idx]); f != nil && f.Floating && s.floatVisibleOn(f, idx) {
			s.focusFloat(f)
			return
		}
	}
	s.focusSplit()
}

// NextTab cycles forward.
func (s *State) NextTab() {
	if len(s.Tabs) > 1 {
		s.SwitchTab((s.ActiveTab + 1) % len(s.Tabs))
	}
}

// PrevTab cycles backward.
func (s *State) PrevTab() {
	if len(s.Tabs) > 1 {
		s.SwitchTab((s.ActiveTab - 1 + len(s.Tabs)) % len(s.Tabs))
	}
}

// CloseTab destroys the tab's panes and fixes indices and float bindings.
// Returns false when it was the last tab (callers turn that into exit).
func (s *State) CloseTab(idx int) bool {
	if len(s.Tabs) <= 1 {
		return false
	}
	t := s.Tabs[idx]
	for _, p := range t.Layout.Splits {
		p.Close(true)
	}
	s.Tabs = append(s.Tabs[:idx], s.Tabs[idx+1:]...)
	s.TabLastFloatingUUID = append(s.TabLastFloatingUUID[:idx], s.TabLastFloatingUUID[idx+1:]...)
	s.TabLastFocusKind = append(s.TabLastFocusKind[:idx], s.TabLastFocusKind[idx+1:]...)

	// Adjust float tab bindings and visibility bitmaps.
	for _, f := range s.Floats {
		if f.ParentTab == idx {
			f.ParentTab = -1
			f.Visible = false
		} else if f.ParentTab > idx {
			f.ParentTab--
		}
		if f.VisibleOn != nil {
			fixed := make(map[int]bool, len(f.VisibleOn))
			for tab, v := range f.VisibleOn {
				switch {
				case tab == idx:
				case tab > idx:
					fixed[tab-1] = v
				default:
					fixed[tab] = v
				}
			}
			f.VisibleOn = fixed
		}
	}

	if s.ActiveTab >= len(s.Tabs) {
		s.ActiveTab = len(s.Tabs) - 1
	}
	s.focusSplit()
	return true
}

// Resize recomputes every tab layout and float placement for a new
// terminal size.
func (s *State) Resize(w, h int) {
	s.TermW, s.TermH = w, h
	x, y, lw, lh := s.LayoutArea()
	for _, t := range s.Tabs {
		t.Layout.ResizeArea(x, y, lw, lh)
	}
	for _, f := range s.Floats {
		s.PlaceFloat(f)
	}
}

// SweepDead runs the dead-pane procedure at the top of a tick: dead splits
// close (cascading to tab close), and the last pane's death raises the
// exit confirm with the shell-death flag. Respawn suppresses exactly one
// sweep via SkipDeadCheck.
func (s *State) SweepDead() {
	if s.SkipDeadCheck {
		s.SkipDeadCheck = false
		return
	}
	for _, f := range append([]*Pane(nil), s.Floats...) {
		if f.Dead {
			s.removeFloat(f, false)
		}
	}
	for ti := len(s.Tabs) - 1; ti >= 0; ti-- {
		t := s.Tabs[ti]
		var deadIDs []int
		for id, p := range t.Layout.Splits {
			if p.Dead {
				deadIDs = append(deadIDs, id)
			}
		}
		for _, id := range deadIDs {
			if t.Layout.Count() > 1 {
				if p := t.Layout.Close(id); p != nil {
					p.Close(false)
				}
				continue
			}
			// Last pane of the tab.
			if len(s.Tabs) > 1 {
				s.CloseTab(ti)
				break
			}
			// Last pane of the last tab: confirm exit.
			if s.Cfg.Confirm.Exit && !s.exitIntentActive() {
				s.ExitFromShellDeath = true
				s.OpenConfirm(ActionExit, "shell exited — quit hexe?")
			} else {
				s.Quit = true
			}
		}
	}
}

// NormalizeFocus clears a stale active float (hidden or gone from the
// current tab) before the next frame.
func (s *State) NormalizeFocus() {
	if f := s.ActiveFloat(); f != nil && !s.floatVisibleOn(f, s.ActiveTab) {
		s.focusSplit()
	}
}

func (s *State) exitIntentActive() bool {
	return !s.ExitIntentDeadline.IsZero() && time.Now().Before(s.ExitIntentDeadline)
}

// Notify posts a mux-scope notification.
func (s *State) Notify(msg string) {
	s.Pop.Notify(msg, notifyTTL)
}
