package mux

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxStdinTail bounds the stash for a partial trailing escape sequence.
// Oversized tails are never stashed; the bytes are processed as-is.
const maxStdinTail = 64

type evKind int

const (
	evRaw     evKind = iota
	evKey            // CSI-u, alt+arrow, alt+char
	evBadCSIu        // unrecognized CSI ending in u: swallowed
	evMouse
	evScroll
	evQuit
)

type scrollAction int

const (
	scrollNone scrollAction = iota
	scrollUp5
	scrollDown5
	scrollUp1
	scrollDown1
	scrollTop
	scrollBottom
)

type inputEvent struct {
	kind evKind

	raw []byte // original bytes, for forwarding

	mods Mods
	key  rune
	ek   EventKind

	btn, x, y int
	press     bool

	scroll scrollAction
}

// HandleStdin interprets one stdin chunk: OSC-reply drain, popup gates,
// tail stashing, then left-to-right event parsing.
func (s *State) HandleStdin(chunk []byte) {
	data := chunk
	if len(s.StdinTail) > 0 {
		data = append(s.StdinTail, chunk...)
		s.StdinTail = nil
	}

	// A reply capture in progress consumes its bytes before anything else.
	if s.OscReplyInProgress {
		data = s.continueOSCReply(data)
	}
	if len(data) == 0 {
		return
	}

	// MUX-level popup: consume everything.
	if s.Pop.IsBlocked() {
		s.Pop.Popup.Feed(data)
		s.ResolvePopups()
		return
	}

	tab := s.CurrentTab()
	tabBlocked := tab != nil && tab.Pop.IsBlocked()

	// Stash an incomplete trailing escape sequence. An armed reply's
	// partial ESC ] head enters capture at the end of the chunk instead:
	// replies may exceed the tail budget and their bytes must never reach
	// the interpreter.
	data, tail := splitTail(data)
	var oscTail []byte
	if len(tail) > 0 {
		if s.OscReplyTarget != "" && len(tail) >= 2 && tail[1] == ']' {
			oscTail = tail
		} else {
			s.StdinTail = append(s.StdinTail[:0], tail...)
		}
	}

	var fwd []byte
	flush := func() {
		if len(fwd) == 0 {
			return
		}
		if p := s.FocusedPane(); p != nil {
			s.writePane(p, fwd)
		}
		fwd = nil
	}

	i := 0
	for i < len(data) {
		// An armed OSC reply captures from ESC ] onward.
		if s.OscReplyTarget != "" && data[i] == 0x1B && i+1 < len(data) && data[i+1] == ']' {
			flush()
			i += s.startOSCReply(data[i:])
			continue
		}

		ev, n := parseEvent(data[i:])
		i += n

		if tabBlocked {
			// Only tab-switch binds pass a TAB-level popup.
			if ev.kind == evKey && ev.ek == EventPress {
				if b := findBestBind(s.Binds, ev.mods, ev.key, WhenPress, s.focusCtx()); b != nil &&
					(b.Action == "tab_next" || b.Action == "tab_prev") {
					s.Dispatch(b.Action, b.Arg)
					continue
				}
			}
			if ev.kind != evBadCSIu {
				tab.Pop.Popup.Feed(ev.raw)
				s.ResolvePopups()
			}
			continue
		}

		switch ev.kind {
		case evQuit:
			flush()
			s.Quit = true
			return

		case evBadCSIu:
			// Swallowed: garbage never leaks into the child.

		case evKey:
			flush()
			if s.HandleKeyEvent(ev.mods, ev.key, ev.ek, legacyBytes(ev.mods, ev.key)) {
				continue
			}
			// Unclaimed: forward the legacy translation, never the frame.
			if ev.ek == EventPress || ev.ek == EventRepeat {
				if lb := legacyBytes(ev.mods, ev.key); len(lb) > 0 {
					if p := s.FocusedPane(); p != nil {
						s.writePane(p, lb)
					}
				}
			}

		case evMouse:
			flush()
			s.HandleMouse(ev.btn, ev.x, ev.y, ev.press, ev.raw)

		case evScroll:
			flush()
			s.handleScrollKey(ev)

		case evRaw:
			fwd = append(fwd, ev.raw...)
		}
	}
	flush()

	if len(oscTail) > 0 {
		switch {
		case s.OscReplyInProgress:
			s.continueOSCReply(oscTail)
		case s.OscReplyTarget != "":
			s.startOSCReply(oscTail)
		case len(oscTail) <= maxStdinTail:
			s.StdinTail = append(s.StdinTail[:0], oscTail...)
		}
	}
}

// handleScrollKey acts on the focused pane's viewport, or forwards the
// original bytes when the pane runs an alt-screen app.
func (s *State) handleScrollKey(ev inputEvent) {
	p := s.FocusedPane()
	if p == nil {
		return
	}
	if p.AltScreen {
		s.writePane(p, ev.raw)
		return
	}
	switch ev.scroll {
	case scrollUp5:
		p.ScrollUp(5)
	case scrollDown5:
		p.ScrollDown(5)
	case scrollUp1:
		p.ScrollUp(1)
	case scrollDown1:
		p.ScrollDown(1)
	case scrollTop:
		p.ScrollToTop()
	case scrollBottom:
		p.ScrollToBottom()
	}
}

// writePane forwards bytes to a pane, honoring the PANE-level popup gate
// and snapping a scrolled pane back to the bottom.
func (s *State) writePane(p *Pane, data []byte) {
	if p.Pop.IsBlocked() {
		p.Pop.Popup.Feed(data)
		s.ResolvePopups()
		return
	}
	if p.Scrolled() {
		p.ScrollToBottom()
	}
	if err := p.Write(data); err != nil {
		p.Dead = true
	}
}

// splitTail separates an incomplete trailing escape sequence (stashable,
// <= 64 bytes) from the processable prefix.
func splitTail(data []byte) (head, tail []byte) {
	last := bytes.LastIndexByte(data, 0x1B)
	if last < 0 {
		return data, nil
	}
	// The ESC of an ST terminator belongs to a complete sequence.
	if last > 0 && last+1 < len(data) && data[last+1] == '\\' {
		return data, nil
	}
	suffix := data[last:]
	if escComplete(suffix) {
		return data, nil
	}
	if len(suffix) > maxStdinTail {
		return data, nil // oversized: drop-and-forward
	}
	return data[:last], suffix
}

// escComplete reports whether seq (starting with ESC) is a full sequence.
func escComplete(seq []byte) bool {
	if len(seq) < 2 {
		return false
	}
	switch seq[1] {
	case '[':
		if len(seq) < 3 {
			return false
		}
		final := seq[len(seq)-1]
		return final >= 0x40 && final <= 0x7E
	case 'O':
		return len(seq) >= 3
	case ']':
		if bytes.IndexByte(seq, 0x07) >= 0 {
			return true
		}
		return bytes.Contains(seq, []byte{0x1B, '\\'})
	default:
		return true
	}
}

// parseEvent decodes the next event at the head of data and how many bytes
// it consumed. data is never empty.
func parseEvent(data []byte) (inputEvent, int) {
	b := data[0]
	if b == 0x11 { // Ctrl+Q
		return inputEvent{kind: evQuit, raw: data[:1]}, 1
	}
	if b != 0x1B {
		return inputEvent{kind: evRaw, raw: data[:1]}, 1
	}
	if len(data) < 2 {
		// An oversized unstashed tail: forward the bare ESC.
		return inputEvent{kind: evRaw, raw: data[:1]}, 1
	}
	switch data[1] {
	case '[':
		return parseCSI(data)
	case 'O':
		n := 3
		if len(data) < 3 {
			n = len(data)
		}
		return inputEvent{kind: evRaw, raw: data[:n]}, n
	default:
		// ESC + char: alt chord.
		r, size := utf8.DecodeRune(data[1:])
		return inputEvent{
			kind: evKey, mods: ModAlt, key: r, ek: EventPress,
			raw: data[:1+size],
		}, 1 + size
	}
}

// parseCSI decodes a CSI sequence known to be complete (tail stashing
// guarantees the final byte is present for all but oversized sequences).
func parseCSI(data []byte) (inputEvent, int) {
	i := 2
	for i < len(data) && data[i] >= 0x30 && data[i] <= 0x3F {
		i++
	}
	for i < len(data) && data[i] >= 0x20 && data[i] <= 0x2F {
		i++
	}
	if i >= len(data) {
		// Oversized unstashed fragment: forward verbatim.
		return inputEvent{kind: evRaw, raw: data}, len(data)
	}
	final := data[i]
	n := i + 1
	params := string(data[2:i])
	raw := data[:n]

	switch final {
	case 'u':
		ev, ok := parseCSIu(params)
		if !ok {
			return inputEvent{kind: evBadCSIu, raw: raw}, n
		}
		ev.raw = raw
		return ev, n

	case 'M', 'm':
		if strings.HasPrefix(params, "<") {
			parts := strings.Split(params[1:], ";")
			if len(parts) == 3 {
				btn, e1 := strconv.Atoi(parts[0])
				x, e2 := strconv.Atoi(parts[1])
				y, e3 := strconv.Atoi(parts[2])
				if e1 == nil && e2 == nil && e3 == nil {
					return inputEvent{
						kind: evMouse, btn: btn, x: x - 1, y: y - 1,
						press: final == 'M', raw: raw,
					}, n
				}
			}
		}
		return inputEvent{kind: evRaw, raw: raw}, n

	case 'A', 'B', 'C', 'D':
		if params == "1;3" {
			key := map[byte]rune{'A': KeyUp, 'B': KeyDown, 'C': KeyRight, 'D': KeyLeft}[final]
			return inputEvent{kind: evKey, mods: ModAlt, key: key, ek: EventPress, raw: raw}, n
		}
		if params == "1;2" && final == 'A' {
			return inputEvent{kind: evScroll, scroll: scrollUp1, raw: raw}, n
		}
		if params == "1;2" && final == 'B' {
			return inputEvent{kind: evScroll, scroll: scrollDown1, raw: raw}, n
		}
		return inputEvent{kind: evRaw, raw: raw}, n

	case '~':
		switch params {
		case "5":
			return inputEvent{kind: evScroll, scroll: scrollUp5, raw: raw}, n
		case "6":
			return inputEvent{kind: evScroll, scroll: scrollDown5, raw: raw}, n
		case "1":
			return inputEvent{kind: evScroll, scroll: scrollTop, raw: raw}, n
		case "4":
			return inputEvent{kind: evScroll, scroll: scrollBottom, raw: raw}, n
		}
		return inputEvent{kind: evRaw, raw: raw}, n

	case 'H':
		if params == "" {
			return inputEvent{kind: evScroll, scroll: scrollTop, raw: raw}, n
		}
		return inputEvent{kind: evRaw, raw: raw}, n

	case 'F':
		if params == "" {
			return inputEvent{kind: evScroll, scroll: scrollBottom, raw: raw}, n
		}
		return inputEvent{kind: evRaw, raw: raw}, n
	}
	return inputEvent{kind: evRaw, raw: raw}, n
}

// parseCSIu decodes a kitty key frame: code ; mods[:event] u.
func parseCSIu(params string) (inputEvent, bool) {
	if params == "" {
		return inputEvent{}, false
	}
	parts := strings.Split(params, ";")
	code, err := strconv.Atoi(parts[0])
	if err != nil || code < 0 {
		return inputEvent{}, false
	}
	modVal := 1
	event := 1
	if len(parts) >= 2 {
		modPart := parts[1]
		if idx := strings.IndexByte(modPart, ':'); idx >= 0 {
			if event, err = strconv.Atoi(modPart[idx+1:]); err != nil {
				return inputEvent{}, false
			}
			modPart = modPart[:idx]
		}
		if modPart != "" {
			if modVal, err = strconv.Atoi(modPart); err != nil {
				return inputEvent{}, false
			}
		}
	}
	if len(parts) > 2 {
		return inputEvent{}, false
	}
	var ek EventKind
	switch event {
	case 1:
		ek = EventPress
	case 2:
		ek = EventRepeat
	case 3:
		ek = EventRelease
	default:
		return inputEvent{}, false
	}
	key := csiuKey(code)
	return inputEvent{kind: evKey, mods: Mods(modVal - 1), key: key, ek: ek}, true
}

// csiuKey maps kitty functional key codes onto the named key runes.
func csiuKey(code int) rune {
	switch code {
	case 57352:
		return KeyUp
	case 57353:
		return KeyDown
	case 57350:
		return KeyLeft
	case 57351:
		return KeyRight
	}
	return rune(code)
}

// legacyBytes translates a key chord to the byte sequence a non-CSI-u
// terminal would have sent.
func legacyBytes(mods Mods, key rune) []byte {
	switch key {
	case KeyUp, KeyDown, KeyLeft, KeyRight:
		final := map[rune]byte{KeyUp: 'A', KeyDown: 'B', KeyLeft: 'D', KeyRight: 'C'}[key]
		if mods == 0 {
			return []byte{0x1B, '[', final}
		}
		return []byte{0x1B, '[', '1', ';', byte('1' + mods), final}
	}
	if key > 0x10FFFF {
		return nil
	}
	var out []byte
	if mods&ModAlt != 0 {
		out = append(out, 0x1B)
	}
	if mods&ModCtrl != 0 && key >= 'a' && key <= 'z' {
		return append(out, byte(key)&0x1F)
	}
	if mods&ModCtrl != 0 && key >= 'A' && key <= 'Z' {
		return append(out, byte(key)&0x1F)
	}
	var buf [4]byte
	n := utf8.EncodeRune(buf[:], key)
	return append(out, buf[:n]...)
}
