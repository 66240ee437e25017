package mux

import (
	"encoding/json"
	"fmt"
	"time"

	"hexe/internal/pop"
	"hexe/internal/ses"
)

// exitIntentWindow is how long a granted exit intent suppresses the next
// shell-death confirm.
const exitIntentWindow = 5 * time.Second

// Dispatch runs one keybind action.
func (s *State) Dispatch(action, arg string) {
	switch action {
	case "mux_quit":
		if s.Cfg.Confirm.Exit {
			s.OpenConfirm(ActionExit, "quit hexe?")
		} else {
			s.Quit = true
		}

	case "mux_detach":
		if s.Ses == nil {
			s.Notify("detach needs the session daemon")
			return
		}
		if s.Cfg.Confirm.Detach {
			s.OpenConfirm(ActionDetach, "detach session "+s.Name+"?")
		} else {
			s.doDetach()
		}

	case "pane_disown":
		s.OpenConfirm(ActionDisown, "disown this pane?")

	case "pane_adopt":
		s.openAdoptPicker()

	case "split_h":
		s.splitFocused(SplitH)

	case "split_v":
		s.splitFocused(SplitV)

	case "tab_new":
		s.newTab()

	case "tab_next":
		s.NextTab()

	case "tab_prev":
		s.PrevTab()

	case "tab_close":
		if s.Cfg.Confirm.Close {
			s.OpenConfirm(ActionClose, "close?")
		} else {
			s.doClose()
		}

	case "float_toggle":
		if len(arg) == 1 {
			s.ToggleFloat(arg[0])
		}

	case "float_nudge":
		if dir, ok := ParseDirection(arg); ok {
			s.NudgeFloat(dir)
		}

	case "focus_move":
		if dir, ok := ParseDirection(arg); ok {
			s.moveFocus(dir)
		}
	}
}

// OpenConfirm raises a MUX-level confirm popup tied to a pending action.
func (s *State) OpenConfirm(action Action, title string) {
	s.PendingAction = action
	s.Pop.Show(pop.NewConfirm(title))
}

// ResolvePopups advances the pending-action machine from finished popups
// in all three realms and routes externally-requested replies.
func (s *State) ResolvePopups() {
	if r, idx, ok := s.Pop.TakeResult(); ok {
		s.resolveMux(r, idx)
	}
	if t := s.CurrentTab(); t != nil {
		if _, _, ok := t.Pop.TakeResult(); ok {
			s.sendPopReply("tab")
		}
	}
	if p := s.FocusedPane(); p != nil {
		if _, _, ok := p.Pop.TakeResult(); ok {
			s.sendPopReply("pane")
		}
	}
}

func (s *State) resolveMux(r pop.Result, idx int) {
	action := s.PendingAction
	s.PendingAction = ActionNone

	switch action {
	case ActionExit:
		fromDeath := s.ExitFromShellDeath
		s.ExitFromShellDeath = false
		if r == pop.ResultYes {
			s.Quit = true
			return
		}
		if fromDeath {
			s.respawnFocused()
		}

	case ActionDetach:
		if r == pop.ResultYes {
			s.doDetach()
		}

	case ActionDisown:
		if r == pop.ResultYes {
			s.doDisown()
		}

	case ActionClose:
		if r == pop.ResultYes {
			s.doClose()
		}

	case ActionAdoptChoose:
		if r != pop.ResultPick || idx < 0 || idx >= len(s.AdoptOrphans) {
			s.AdoptOrphans = nil
			return
		}
		s.adoptChoice = s.AdoptOrphans[idx].UUID
		s.PendingAction = ActionAdoptConfirm
		s.Pop.Show(pop.NewConfirm("destroy current pane? (n = swap out)"))

	case ActionAdoptConfirm:
		choice := s.adoptChoice
		s.adoptChoice = ""
		s.AdoptOrphans = nil
		switch r {
		case pop.ResultYes:
			s.doAdopt(choice, true)
		case pop.ResultNo:
			s.doAdopt(choice, false)
		}

	case ActionExitIntent:
		if r == pop.ResultYes {
			s.ExitIntentDeadline = time.Now().Add(exitIntentWindow)
		}
		s.sendPopReply("mux")

	default:
		s.sendPopReply("mux")
	}
}

// sendPopReply answers an external popup requester, if one is waiting.
func (s *State) sendPopReply(scope string) {
	if s.PendingPopConn == nil || s.PendingPopScope != scope {
		return
	}
	fmt.Fprintf(s.PendingPopConn, "{\"ok\":true}\n")
	s.PendingPopConn.Close()
	s.PendingPopConn = nil
	s.PendingPopScope = ""
}

// splitFocused creates a pane beside the focused one.
func (s *State) splitFocused(dir SplitDir) {
	t := s.CurrentTab()
	if t == nil {
		return
	}
	p, err := s.spawnPane(0, 0, 0, t.Layout.W/2, t.Layout.H/2)
	if err != nil {
		s.Notify("split failed: " + err.Error())
		return
	}
	s.focusSplit()
	t.Layout.Split(dir, p)
}

// spawnPane creates a pane via SES when connected, locally otherwise.
func (s *State) spawnPane(id, x, y, w, h int) (*Pane, error) {
	if s.Ses != nil {
		resp, err := s.Ses.CreatePane(ses.CreatePaneReq{
			UUID: NewUUID(), Cwd: s.focusedCwd(), Cols: w, Rows: h,
		})
		if err != nil {
			return nil, err
		}
		return OpenPod(id, x, y, w, h, s.Ses, resp.PaneID, resp.UUID), nil
	}
	return OpenLocal(id, x, y, w, h, "")
}

// newTab appends a tab with one pane and activates it.
func (s *State) newTab() {
	x, y, w, h := s.LayoutArea()
	p, err := s.spawnPane(0, x, y, w, h)
	if err != nil {
		s.Notify("tab spawn failed: " + err.Error())
		return
	}
	t := NewTab(DefaultTabName(len(s.Tabs)), NewLayout(x, y, w, h, p))
	s.AddTab(t)
	s.SwitchTab(len(s.Tabs) - 1)
}

// doClose closes the active float, else the current tab, exiting when it
// was the last tab.
func (s *State) doClose() {
	if f := s.ActiveFloat(); f != nil {
		s.removeFloat(f, true)
		return
	}
	if !s.CloseTab(s.ActiveTab) {
		s.Quit = true
	}
}

// moveFocus moves directional focus within the layout; floats keep focus.
func (s *State) moveFocus(dir Direction) {
	if s.ActiveFloat() != nil {
		return
	}
	if t := s.CurrentTab(); t != nil {
		cur := t.Layout.Focused()
		cx, cy := -1, -1
		if cur != nil {
			cx = cur.X + cur.Vt.Cursor.X
			cy = cur.Y + cur.Vt.Cursor.Y
		}
		t.Layout.FocusDirectional(dir, cx, cy)
	}
}

// doDetach serializes everything, hands the panes to SES, and leaves.
func (s *State) doDetach() {
	state, err := s.Serialize()
	if err != nil {
		s.Notify("detach failed: " + err.Error())
		return
	}
	if err := s.Ses.Detach(json.RawMessage(state)); err != nil {
		s.Notify("detach failed: " + err.Error())
		return
	}
	s.Detach = true
	s.Quit = true
}

// doDisown orphans the focused pane's backend in SES and swaps in a fresh
// one spawned in the same directory; geometry and scrollback survive.
func (s *State) doDisown() {
	p := s.FocusedPane()
	if p == nil || s.Ses == nil || p.Ses == nil {
		s.Notify("disown needs a daemon-owned pane")
		return
	}
	cwd := s.focusedCwd()
	s.Ses.OrphanPane(p.UUID)
	resp, err := s.Ses.CreatePane(ses.CreatePaneReq{
		UUID: NewUUID(), Cwd: cwd, Cols: p.W, Rows: p.H,
	})
	if err != nil {
		s.Notify("disown respawn failed: " + err.Error())
		return
	}
	p.ReplaceWithPod(s.Ses, resp.PaneID, resp.UUID)
	s.SkipDeadCheck = true
}

// openAdoptPicker lists SES orphans in a MUX-level picker.
func (s *State) openAdoptPicker() {
	if s.Ses == nil {
		s.Notify("adopt needs the session daemon")
		return
	}
	orphans, err := s.Ses.ListOrphaned()
	if err != nil {
		s.Notify("adopt: " + err.Error())
		return
	}
	if len(orphans) == 0 {
		s.Notify("no orphaned panes")
		return
	}
	s.AdoptOrphans = orphans
	items := make([]string, len(orphans))
	for i, o := range orphans {
		label := o.UUID[:8]
		if o.Cmd != "" {
			label += "  " + o.Cmd
		}
		if o.Cwd != "" {
			label += "  (" + o.Cwd + ")"
		}
		items[i] = label
	}
	s.PendingAction = ActionAdoptChoose
	s.Pop.Show(pop.NewPicker("adopt orphan", items))
}

// doAdopt binds the chosen orphan to the focused pane. destroyCurrent
// kills the pane's current backend; otherwise it is orphaned (swap).
func (s *State) doAdopt(orphanUUID string, destroyCurrent bool) {
	p := s.FocusedPane()
	if p == nil || orphanUUID == "" {
		return
	}
	if p.Ses != nil {
		if destroyCurrent {
			s.Ses.KillPane(p.UUID)
		} else {
			s.Ses.OrphanPane(p.UUID)
		}
	}
	resp, err := s.Ses.AdoptPane(orphanUUID)
	if err != nil {
		s.Notify("adopt failed: " + err.Error())
		return
	}
	p.ReplaceWithPod(s.Ses, resp.PaneID, resp.UUID)
	s.SkipDeadCheck = true
}

// respawnFocused replaces a dead focused pane's child after a declined
// shell-death exit.
func (s *State) respawnFocused() {
	p := s.FocusedPane()
	if p == nil {
		return
	}
	if s.Ses != nil {
		resp, err := s.Ses.CreatePane(ses.CreatePaneReq{
			UUID: NewUUID(), Cwd: s.focusedCwd(), Cols: p.W, Rows: p.H,
		})
		if err != nil {
			s.Notify("respawn failed: " + err.Error())
			return
		}
		p.ReplaceWithPod(s.Ses, resp.PaneID, resp.UUID)
	} else {
		np, err := OpenLocal(p.ID, p.X, p.Y, p.W, p.H, "")
		if err != nil {
			s.Notify("respawn failed: " + err.Error())
			return
		}
		p.Ptm = np.Ptm
		p.Cmd = np.Cmd
		p.UUID = np.UUID
		p.Dead = false
		p.DidClear = true
	}
	s.SkipDeadCheck = true
}

// OpenExitIntent arms the request from an external caller: confirm grants
// a short window during which a shell death exits without asking.
func (s *State) OpenExitIntent() {
	s.PendingAction = ActionExitIntent
	s.Pop.Show(pop.NewConfirm("allow quick exit?"))
}
