package pop

import (
	"testing"
	"time"
)

func TestConfirmYes(t *testing.T) {
	p := NewConfirm("sure?")
	p.Feed([]byte("y"))
	if !p.Done() {
		t.Fatalf("y should finish the confirm")
	}
	if r, _ := p.Result(); r != ResultYes {
		t.Fatalf("result = %v", r)
	}
}

func TestConfirmEscapeIsNo(t *testing.T) {
	p := NewConfirm("sure?")
	p.Feed([]byte{0x1B})
	if p.Done() {
		t.Fatalf("a lone ESC must wait for a possible sequence")
	}
	p.ResolvePendingEscape()
	if r, _ := p.Result(); r != ResultNo {
		t.Fatalf("bare escape should decline, got %v", r)
	}
}

func TestPickerArrowsAndEnter(t *testing.T) {
	p := NewPicker("pick", []string{"a", "b", "c"})
	p.Feed([]byte("\x1b[B\x1b[B"))
	p.Feed([]byte("\r"))
	r, idx := p.Result()
	if r != ResultPick || idx != 2 {
		t.Fatalf("got %v/%d", r, idx)
	}
}

func TestPickerArrowSplitAcrossFeeds(t *testing.T) {
	p := NewPicker("pick", []string{"a", "b"})
	p.Feed([]byte{0x1B})
	p.Feed([]byte("[B"))
	p.Feed([]byte("\r"))
	r, idx := p.Result()
	if r != ResultPick || idx != 1 {
		t.Fatalf("split escape should still move, got %v/%d", r, idx)
	}
}

func TestPickerWraps(t *testing.T) {
	p := NewPicker("pick", []string{"a", "b"})
	p.Feed([]byte("k\r")) // up from 0 wraps to last
	r, idx := p.Result()
	if r != ResultPick || idx != 1 {
		t.Fatalf("got %v/%d", r, idx)
	}
}

func TestManagerBlockingAndResult(t *testing.T) {
	var m Manager
	if m.IsBlocked() {
		t.Fatalf("empty manager must not block")
	}
	m.Show(NewConfirm("q"))
	if !m.IsBlocked() {
		t.Fatalf("live popup should block")
	}
	m.Popup.Feed([]byte("n"))
	if m.IsBlocked() {
		t.Fatalf("finished popup must not block")
	}
	r, _, ok := m.TakeResult()
	if !ok || r != ResultNo {
		t.Fatalf("take = %v/%v", r, ok)
	}
	if m.Popup != nil {
		t.Fatalf("result should be consumed once")
	}
}

func TestNotificationExpiry(t *testing.T) {
	var m Manager
	m.Notify("hello", 50*time.Millisecond)
	if m.Note == nil {
		t.Fatalf("note missing")
	}
	if m.Tick(time.Now()) {
		t.Fatalf("note should not expire early")
	}
	if !m.Tick(time.Now().Add(time.Second)) {
		t.Fatalf("note should expire")
	}
	if m.Note != nil {
		t.Fatalf("expired note should clear")
	}
}

func TestPopupTimeoutCancels(t *testing.T) {
	var m Manager
	p := NewConfirm("slow")
	p.Deadline = time.Now().Add(10 * time.Millisecond)
	m.Show(p)
	m.Tick(time.Now().Add(time.Second))
	r, _, ok := m.TakeResult()
	if !ok || r != ResultCancel {
		t.Fatalf("timeout should cancel, got %v/%v", r, ok)
	}
}
