package mux

import (
	"encoding/json"
	"testing"
)

// buildDetachState assembles two tabs (a vertical split and a single pane)
// plus one global float, mirroring a realistic session.
func buildDetachState(t *testing.T) *State {
	t.Helper()
	s, _ := newTestState(100, 30)
	p1, _ := newTestPane(0, 0, 0, 1, 1)
	s.CurrentTab().Layout.Split(SplitV, p1)

	lx, ly, lw, lh := s.LayoutArea()
	p2, _ := newTestPane(0, lx, ly, lw, lh)
	s.AddTab(NewTab("2", NewLayout(lx, ly, lw, lh, p2)))

	f := addTestFloat(s, 'g')
	f.Global = true
	f.ParentTab = -1
	f.VisibleOn = map[int]bool{0: true}
	s.ActiveTab = 0
	return s
}

func TestSerializeShape(t *testing.T) {
	s := buildDetachState(t)
	data, err := s.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["active_tab"].(float64) != 0 {
		t.Fatalf("active_tab = %v", out["active_tab"])
	}
	tabs := out["tabs"].([]any)
	if len(tabs) != 2 {
		t.Fatalf("expected 2 tabs, got %d", len(tabs))
	}
	tree := tabs[0].(map[string]any)["tree"].(map[string]any)
	if tree["type"] != "split" || tree["dir"] != "v" {
		t.Fatalf("tab 0 tree = %v", tree)
	}
	floats := out["floats"].([]any)
	if len(floats) != 1 {
		t.Fatalf("expected 1 float, got %d", len(floats))
	}
	if _, ok := floats[0].(map[string]any)["float_width_pct"]; !ok {
		t.Fatalf("float placement fields missing")
	}
}

func TestDetachReattachRoundTrip(t *testing.T) {
	s := buildDetachState(t)
	data, err := s.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	// Collect the original shape.
	var uuids []string
	for _, tb := range s.Tabs {
		for _, p := range tb.Layout.Splits {
			uuids = append(uuids, p.UUID)
		}
	}
	floatUUID := s.Floats[0].UUID
	floatRect := [4]int{s.Floats[0].BorderX, s.Floats[0].BorderY, s.Floats[0].BorderW, s.Floats[0].BorderH}
	tab0Tree := treeToJSON(s.Tabs[0].Layout.Root)

	// Rebuild in a fresh state at the same terminal size, with every pane
	// adoptable.
	fresh, _ := newTestState(100, 30)
	adopted := make(map[string]*Pane)
	for _, u := range append(uuids, floatUUID) {
		p, _ := newTestPane(0, 0, 0, 10, 5)
		p.UUID = u
		adopted[u] = p
	}
	if err := fresh.Restore(data, adopted); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if fresh.UUID != s.UUID {
		t.Fatalf("mux uuid not restored")
	}
	if len(fresh.Tabs) != 2 || fresh.ActiveTab != 0 {
		t.Fatalf("tabs=%d active=%d", len(fresh.Tabs), fresh.ActiveTab)
	}
	gotTree := treeToJSON(fresh.Tabs[0].Layout.Root)
	a, _ := json.Marshal(tab0Tree)
	b, _ := json.Marshal(gotTree)
	if string(a) != string(b) {
		t.Fatalf("tree shape changed: %s != %s", a, b)
	}
	for i, tb := range s.Tabs {
		if fresh.Tabs[i].UUID != tb.UUID {
			t.Fatalf("tab %d uuid changed", i)
		}
		if fresh.Tabs[i].Layout.FocusedID != tb.Layout.FocusedID {
			t.Fatalf("tab %d focus changed", i)
		}
	}
	if len(fresh.Floats) != 1 || fresh.Floats[0].UUID != floatUUID {
		t.Fatalf("float not restored")
	}
	got := [4]int{fresh.Floats[0].BorderX, fresh.Floats[0].BorderY, fresh.Floats[0].BorderW, fresh.Floats[0].BorderH}
	if got != floatRect {
		t.Fatalf("float rect %v != %v", got, floatRect)
	}
	if !fresh.Floats[0].Global || !fresh.Floats[0].VisibleOn[0] {
		t.Fatalf("float attributes lost")
	}
}

func TestRestoreSkipsUnknownUUIDs(t *testing.T) {
	s := buildDetachState(t)
	data, err := s.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	fresh, _ := newTestState(100, 30)
	// Adopt only the first tab's first pane.
	var one *Pane
	for _, p := range s.Tabs[0].Layout.Splits {
		one, _ = newTestPane(0, 0, 0, 10, 5)
		one.UUID = p.UUID
		break
	}
	if err := fresh.Restore(data, map[string]*Pane{one.UUID: one}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(fresh.Tabs) != 1 {
		t.Fatalf("only the tab with an adoptable pane should survive, got %d", len(fresh.Tabs))
	}
	if !fresh.Tabs[0].Layout.Root.Leaf() {
		t.Fatalf("missing sibling should collapse the split")
	}
	if len(fresh.Floats) != 0 {
		t.Fatalf("unknown float uuid should be skipped")
	}
}
