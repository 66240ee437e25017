package mux

import (
	"bytes"
	"strings"
	"testing"
)

func focusedSink(s *State) *bytes.Buffer {
	return s.FocusedPane().Sink.(*bytes.Buffer)
}

func TestPlainBytesForwarded(t *testing.T) {
	s, sink := newTestState(80, 24)
	s.HandleStdin([]byte("hello"))
	if sink.String() != "hello" {
		t.Fatalf("forwarded %q", sink.String())
	}
}

func TestTailStashResume(t *testing.T) {
	s, sink := newTestState(80, 24)
	s.HandleStdin([]byte("abc\x1b["))
	if sink.String() != "abc" {
		t.Fatalf("prefix should forward, got %q", sink.String())
	}
	if string(s.StdinTail) != "\x1b[" {
		t.Fatalf("tail = %q", s.StdinTail)
	}
	s.HandleStdin([]byte("A"))
	if sink.String() != "abc\x1b[A" {
		t.Fatalf("resumed sequence should forward whole, got %q", sink.String())
	}
	if len(s.StdinTail) != 0 {
		t.Fatalf("tail should be drained")
	}
}

func TestOversizedTailNotStashed(t *testing.T) {
	s, _ := newTestState(80, 24)
	chunk := append([]byte{0x1B, '['}, bytes.Repeat([]byte("1;"), 40)...)
	s.HandleStdin(chunk)
	if len(s.StdinTail) != 0 {
		t.Fatalf("oversized tail must not be stashed, got %d bytes", len(s.StdinTail))
	}
}

func TestCSIuTranslatedNeverRaw(t *testing.T) {
	s, sink := newTestState(80, 24)
	s.HandleStdin([]byte("\x1b[97;1u")) // plain 'a' press
	if sink.String() != "a" {
		t.Fatalf("expected legacy byte, got %q", sink.String())
	}
	if strings.Contains(sink.String(), "\x1b[") {
		t.Fatalf("raw CSI-u leaked to the child")
	}
}

func TestCSIuReleaseSwallowed(t *testing.T) {
	s, sink := newTestState(80, 24)
	s.HandleStdin([]byte("\x1b[97;1:3u"))
	if sink.Len() != 0 {
		t.Fatalf("release must not reach the child, got %q", sink.String())
	}
}

func TestBadCSIuSwallowed(t *testing.T) {
	s, sink := newTestState(80, 24)
	s.HandleStdin([]byte("\x1b[12;3;4u"))
	if sink.Len() != 0 {
		t.Fatalf("unrecognized u-final frame leaked: %q", sink.String())
	}
}

func TestCtrlQQuits(t *testing.T) {
	s, _ := newTestState(80, 24)
	s.HandleStdin([]byte{0x11})
	if !s.Quit {
		t.Fatalf("ctrl+q should quit immediately")
	}
}

func TestAltCharUnboundForwards(t *testing.T) {
	s, sink := newTestState(80, 24)
	s.HandleStdin([]byte{0x1B, 'x', 'z'})
	if sink.String() != "\x1bxz" {
		t.Fatalf("got %q", sink.String())
	}
}

func TestScrollKeys(t *testing.T) {
	s, _ := newTestState(80, 24)
	p := s.FocusedPane()
	for i := 0; i < 60; i++ {
		p.Feed([]byte("line\r\n"))
	}
	s.HandleStdin([]byte("\x1b[5~"))
	if p.Scroll != 5 {
		t.Fatalf("pgup should scroll 5, got %d", p.Scroll)
	}
	s.HandleStdin([]byte("\x1b[1;2A"))
	if p.Scroll != 6 {
		t.Fatalf("shift+up should scroll 1, got %d", p.Scroll)
	}
	s.HandleStdin([]byte("\x1b[H"))
	if p.Scroll != p.maxScroll() {
		t.Fatalf("home should scroll to top")
	}
	s.HandleStdin([]byte("\x1b[F"))
	if p.Scroll != 0 {
		t.Fatalf("end should scroll to bottom")
	}
}

func TestScrollKeysForwardInAltScreen(t *testing.T) {
	s, sink := newTestState(80, 24)
	s.FocusedPane().AltScreen = true
	s.HandleStdin([]byte("\x1b[5~"))
	if sink.String() != "\x1b[5~" {
		t.Fatalf("alt-screen pane should receive scroll keys, got %q", sink.String())
	}
}

func TestWriteSnapsScrolledPane(t *testing.T) {
	s, _ := newTestState(80, 24)
	p := s.FocusedPane()
	for i := 0; i < 60; i++ {
		p.Feed([]byte("line\r\n"))
	}
	p.ScrollUp(10)
	s.HandleStdin([]byte("x"))
	if p.Scroll != 0 {
		t.Fatalf("forwarded write should snap the pane to bottom")
	}
}

// OSC reply round trip: bytes before the reply go to the focused pane, the
// reply goes to the querying pane, bytes after resume normal forwarding.
func TestOSCReplyRoundTrip(t *testing.T) {
	s, sink := newTestState(80, 24)
	querier, qsink := newTestPane(7, 0, 0, 10, 5)
	querier.Floating = true
	querier.ParentTab = s.ActiveTab
	s.Floats = append(s.Floats, querier)

	querier.Feed([]byte("\x1b]10;?\x07"))
	if !querier.OscExpect {
		t.Fatalf("OSC query should arm the expect flag")
	}
	s.forwardOSCQuery(querier)
	if s.OscReplyTarget != querier.UUID {
		t.Fatalf("reply target not armed")
	}

	reply := "\x1b]10;rgb:1234/5678/9abc\x07"
	s.HandleStdin([]byte("ab" + reply + "cd"))
	if sink.String() != "abcd" {
		t.Fatalf("pass-through bytes = %q", sink.String())
	}
	if qsink.String() != reply {
		t.Fatalf("reply delivered = %q", qsink.String())
	}
	if s.OscReplyTarget != "" || s.OscReplyInProgress {
		t.Fatalf("reply state should clear after delivery")
	}
}

func TestOSCReplySplitAcrossChunks(t *testing.T) {
	s, sink := newTestState(80, 24)
	querier, qsink := newTestPane(7, 0, 0, 10, 5)
	querier.Floating = true
	querier.ParentTab = s.ActiveTab
	s.Floats = append(s.Floats, querier)
	s.ArmOSCReply(querier.UUID)

	s.HandleStdin([]byte("\x1b]10;rgb:11"))
	if !s.OscReplyInProgress {
		t.Fatalf("capture should continue across chunks")
	}
	s.HandleStdin([]byte("22/3344\x07after"))
	if qsink.String() != "\x1b]10;rgb:1122/3344\x07" {
		t.Fatalf("reply = %q", qsink.String())
	}
	if sink.String() != "after" {
		t.Fatalf("trailing bytes = %q", sink.String())
	}
}

func TestMuxPopupConsumesEverything(t *testing.T) {
	s, sink := newTestState(80, 24)
	s.OpenConfirm(ActionClose, "close?")
	s.HandleStdin([]byte("zzz"))
	if sink.Len() != 0 {
		t.Fatalf("blocked popup must consume input, child got %q", sink.String())
	}
}

func TestTabPopupAllowsTabSwitch(t *testing.T) {
	s, sink := newTestState(80, 24)
	lx, ly, lw, lh := s.LayoutArea()
	p2, _ := newTestPane(0, lx, ly, lw, lh)
	s.AddTab(NewTab("2", NewLayout(lx, ly, lw, lh, p2)))

	s.CurrentTab().Pop.Show(popConfirmForTest())
	s.HandleStdin([]byte{0x1B, 'n'}) // default alt+n = tab_next
	if s.ActiveTab != 1 {
		t.Fatalf("tab_next should pass a TAB-level popup, active=%d", s.ActiveTab)
	}
	if sink.Len() != 0 {
		t.Fatalf("nothing should reach the child")
	}
}
