package mux

import (
	"encoding/json"
	"fmt"
)

// Detach/reattach serialization. The mux never writes to disk: the JSON
// produced here is persisted by SES keyed by the mux UUID.

type stateJSON struct {
	MuxUUID        string      `json:"mux_uuid"`
	SessionName    string      `json:"session_name"`
	ActiveTab      int         `json:"active_tab"`
	ActiveFloating int         `json:"active_floating"`
	Tabs           []tabJSON   `json:"tabs"`
	Floats         []floatJSON `json:"floats"`
}

type tabJSON struct {
	UUID           string      `json:"uuid"`
	Name           string      `json:"name"`
	FocusedSplitID int         `json:"focused_split_id"`
	NextSplitID    int         `json:"next_split_id"`
	Tree           *treeJSON   `json:"tree"`
	Splits         []splitJSON `json:"splits"`
}

type splitJSON struct {
	ID   int    `json:"id"`
	UUID string `json:"uuid"`
}

type treeJSON struct {
	Type   string    `json:"type"` // "pane" or "split"
	ID     int       `json:"id,omitempty"`
	Dir    string    `json:"dir,omitempty"` // "h" or "v"
	Ratio  float64   `json:"ratio,omitempty"`
	First  *treeJSON `json:"first,omitempty"`
	Second *treeJSON `json:"second,omitempty"`
}

type floatJSON struct {
	UUID      string  `json:"uuid"`
	WidthPct  float64 `json:"float_width_pct"`
	HeightPct float64 `json:"float_height_pct"`
	PosXPct   float64 `json:"float_pos_x_pct"`
	PosYPct   float64 `json:"float_pos_y_pct"`
	PadX      int     `json:"pad_x"`
	PadY      int     `json:"pad_y"`
	Global    bool    `json:"global,omitempty"`
	IsPwd     bool    `json:"is_pwd,omitempty"`
	Sticky    bool    `json:"sticky,omitempty"`
	Alone     bool    `json:"alone,omitempty"`
	Destroy   bool    `json:"destroy,omitempty"`
	ParentTab int     `json:"parent_tab"`
	FloatKey  string  `json:"float_key,omitempty"`
	PwdDir    string  `json:"pwd_dir,omitempty"`
	Visible   bool    `json:"visible"`
	VisibleOn []int   `json:"visible_on,omitempty"`
}

func treeToJSON(n *Node) *treeJSON {
	if n == nil {
		return nil
	}
	if n.Leaf() {
		return &treeJSON{Type: "pane", ID: n.PaneID}
	}
	dir := "h"
	if n.Dir == SplitV {
		dir = "v"
	}
	return &treeJSON{
		Type:   "split",
		Dir:    dir,
		Ratio:  n.Ratio,
		First:  treeToJSON(n.First),
		Second: treeToJSON(n.Second),
	}
}

func treeFromJSON(t *treeJSON) *Node {
	if t == nil {
		return nil
	}
	if t.Type == "pane" {
		return &Node{PaneID: t.ID}
	}
	dir := SplitH
	if t.Dir == "v" {
		dir = SplitV
	}
	return &Node{
		Dir:    dir,
		Ratio:  t.Ratio,
		First:  treeFromJSON(t.First),
		Second: treeFromJSON(t.Second),
	}
}

// Serialize renders the full mux state as the detach JSON.
func (s *State) Serialize() ([]byte, error) {
	out := stateJSON{
		MuxUUID:        s.UUID,
		SessionName:    s.Name,
		ActiveTab:      s.ActiveTab,
		ActiveFloating: s.ActiveFloating,
	}
	for _, t := range s.Tabs {
		tj := tabJSON{
			UUID:           t.UUID,
			Name:           t.Name,
			FocusedSplitID: t.Layout.FocusedID,
			NextSplitID:    t.Layout.NextID,
			Tree:           treeToJSON(t.Layout.Root),
		}
		for id, p := range t.Layout.Splits {
			tj.Splits = append(tj.Splits, splitJSON{ID: id, UUID: p.UUID})
		}
		out.Tabs = append(out.Tabs, tj)
	}
	for _, f := range s.Floats {
		fj := floatJSON{
			UUID:      f.UUID,
			WidthPct:  f.WidthPct,
			HeightPct: f.HeightPct,
			PosXPct:   f.PosXPct,
			PosYPct:   f.PosYPct,
			PadX:      f.PadX,
			PadY:      f.PadY,
			Global:    f.Global,
			IsPwd:     f.IsPwd,
			Sticky:    f.Sticky,
			Alone:     f.Alone,
			Destroy:   f.Destroy,
			ParentTab: f.ParentTab,
			PwdDir:    f.PwdDir,
			Visible:   f.Visible,
		}
		if f.FloatKey != 0 {
			fj.FloatKey = string(f.FloatKey)
		}
		for tab, v := range f.VisibleOn {
			if v {
				fj.VisibleOn = append(fj.VisibleOn, tab)
			}
		}
		out.Floats = append(out.Floats, fj)
	}
	return json.Marshal(out)
}

// Restore rebuilds tabs and floats from detach JSON, mapping each
// referenced pane UUID to an already-adopted backend. Unknown UUIDs are
// skipped; an emptied tab or float is dropped.
func (s *State) Restore(data []byte, adopted map[string]*Pane) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	s.UUID = in.MuxUUID
	if in.SessionName != "" {
		s.Name = in.SessionName
	}

	x, y, w, h := s.LayoutArea()
	s.Tabs = nil
	s.TabLastFloatingUUID = nil
	s.TabLastFocusKind = nil
	s.Floats = nil
	s.ActiveFloating = -1

	for _, tj := range in.Tabs {
		l := &Layout{
			X: x, Y: y, W: w, H: h,
			Splits:    make(map[int]*Pane),
			FocusedID: tj.FocusedSplitID,
			NextID:    tj.NextSplitID,
		}
		for _, sp := range tj.Splits {
			p, ok := adopted[sp.UUID]
			if !ok {
				continue
			}
			p.ID = sp.ID
			l.Splits[sp.ID] = p
		}
		if len(l.Splits) == 0 {
			continue
		}
		l.Root = pruneTree(treeFromJSON(tj.Tree), l.Splits)
		if l.Root == nil {
			continue
		}
		if _, ok := l.Splits[l.FocusedID]; !ok {
			for id := range l.Splits {
				l.FocusedID = id
				break
			}
		}
		l.Recalculate()
		l.SetFocus(l.FocusedID)
		t := &Tab{UUID: tj.UUID, Name: tj.Name, Layout: l}
		s.AddTab(t)
	}
	if len(s.Tabs) == 0 {
		return fmt.Errorf("no adoptable panes in state")
	}
	if in.ActiveTab < len(s.Tabs) {
		s.ActiveTab = in.ActiveTab
	} else {
		s.ActiveTab = 0
	}

	for _, fj := range in.Floats {
		p, ok := adopted[fj.UUID]
		if !ok {
			continue
		}
		p.Floating = true
		p.WidthPct = fj.WidthPct
		p.HeightPct = fj.HeightPct
		p.PosXPct = fj.PosXPct
		p.PosYPct = fj.PosYPct
		p.PadX = fj.PadX
		p.PadY = fj.PadY
		p.Global = fj.Global
		p.IsPwd = fj.IsPwd
		p.Sticky = fj.Sticky
		p.Alone = fj.Alone
		p.Destroy = fj.Destroy
		p.ParentTab = fj.ParentTab
		if p.ParentTab >= len(s.Tabs) {
			p.ParentTab = -1
		}
		p.PwdDir = fj.PwdDir
		p.Visible = fj.Visible
		if fj.FloatKey != "" {
			p.FloatKey = fj.FloatKey[0]
		}
		if len(fj.VisibleOn) > 0 {
			p.VisibleOn = make(map[int]bool)
			for _, tab := range fj.VisibleOn {
				if tab < len(s.Tabs) {
					p.VisibleOn[tab] = true
				}
			}
		}
		s.PlaceFloat(p)
		s.Floats = append(s.Floats, p)
	}
	if in.ActiveFloating >= 0 && in.ActiveFloating < len(s.Floats) {
		f := s.Floats[in.ActiveFloating]
		if s.floatVisibleOn(f, s.ActiveTab) {
			s.focusFloat(f)
		}
	}
	if s.ActiveFloat() == nil {
		s.focusSplit()
	}
	return nil
}

// pruneTree drops leaves whose panes were not adopted, collapsing their
// parents, and returns the surviving tree.
func pruneTree(n *Node, splits map[int]*Pane) *Node {
	if n == nil {
		return nil
	}
	if n.Leaf() {
		if _, ok := splits[n.PaneID]; ok {
			return n
		}
		return nil
	}
	first := pruneTree(n.First, splits)
	second := pruneTree(n.Second, splits)
	switch {
	case first != nil && second != nil:
		n.First, n.Second = first, second
		return n
	case first != nil:
		return first
	case second != nil:
		return second
	}
	return nil
}

// Reattach resolves a detached session in SES, adopts its panes, and
// rebuilds the mux state for the current terminal size.
func (s *State) Reattach(prefix string) error {
	resp, err := s.Ses.Reattach(prefix)
	if err != nil {
		return err
	}
	// Re-register under the restored identity first: adoption binds panes
	// to the registered session id.
	s.UUID = resp.SessionID
	if resp.Name != "" {
		s.Name = resp.Name
	}
	if err := s.Ses.Register(s.UUID, s.Name); err != nil {
		return fmt.Errorf("re-register: %w", err)
	}
	adopted := make(map[string]*Pane)
	for _, u := range resp.PaneUUIDs {
		ar, err := s.Ses.AdoptPane(u)
		if err != nil {
			continue // dead orphans are skipped
		}
		adopted[u] = OpenPod(0, 0, 0, 80, 24, s.Ses, ar.PaneID, ar.UUID)
	}
	if err := s.Restore(resp.State, adopted); err != nil {
		return err
	}
	s.Resize(s.TermW, s.TermH)
	for _, p := range adopted {
		p.DidClear = true
	}
	return nil
}
