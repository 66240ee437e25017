package mux

import (
	"strings"
	"time"

	"hexe/internal/config"
)

// Mods is the modifier bitmask, matching the CSI-u encoding (value-1).
type Mods uint8

const (
	ModShift Mods = 1 << iota
	ModAlt
	ModCtrl
)

// Named key runes outside the Unicode range used by real input.
const (
	KeyUp rune = 0x110000 + iota
	KeyDown
	KeyLeft
	KeyRight
)

const (
	KeyEnter     rune = 13
	KeyTab       rune = 9
	KeyEscape    rune = 27
	KeyBackspace rune = 127
	KeySpace     rune = 32
)

// When selects the bind trigger.
type When int

const (
	WhenPress When = iota
	WhenRelease
	WhenRepeat
	WhenDoubleTap
	WhenHold
)

// FocusCtx limits a bind to split or float focus.
type FocusCtx int

const (
	CtxAny FocusCtx = iota
	CtxSplit
	CtxFloat
)

// EventKind is the key event type decoded from CSI-u.
type EventKind int

const (
	EventPress EventKind = iota
	EventRepeat
	EventRelease
)

// Bind is one configured key binding.
type Bind struct {
	Mods        Mods
	Key         rune
	When        When
	Ctx         FocusCtx
	Action      string
	Arg         string
	HoldMs      int
	DoubleTapMs int
}

// ParseBinds converts config entries, dropping malformed ones.
func ParseBinds(entries []config.Keybind) []*Bind {
	var binds []*Bind
	for _, e := range entries {
		b := &Bind{
			Action:      e.Action,
			Arg:         e.Arg,
			HoldMs:      e.HoldMs,
			DoubleTapMs: e.DoubleTapMs,
		}
		ok := true
		b.Mods = parseMods(e.Mods)
		b.Key, ok = parseKey(e.Key)
		if !ok || e.Action == "" {
			continue
		}
		switch e.When {
		case "", "press":
			b.When = WhenPress
		case "release":
			b.When = WhenRelease
		case "repeat":
			b.When = WhenRepeat
		case "double_tap":
			b.When = WhenDoubleTap
		case "hold":
			b.When = WhenHold
		default:
			continue
		}
		switch e.Context {
		case "", "any":
			b.Ctx = CtxAny
		case "split":
			b.Ctx = CtxSplit
		case "float":
			b.Ctx = CtxFloat
		default:
			continue
		}
		if b.When == WhenHold && b.HoldMs <= 0 {
			b.HoldMs = 300
		}
		if b.When == WhenDoubleTap && b.DoubleTapMs <= 0 {
			b.DoubleTapMs = 250
		}
		binds = append(binds, b)
	}
	return binds
}

func parseMods(s string) Mods {
	var m Mods
	for _, part := range strings.Split(s, "+") {
		switch strings.TrimSpace(part) {
		case "shift":
			m |= ModShift
		case "alt", "meta":
			m |= ModAlt
		case "ctrl", "control":
			m |= ModCtrl
		}
	}
	return m
}

func parseKey(s string) (rune, bool) {
	switch s {
	case "enter", "return":
		return KeyEnter, true
	case "tab":
		return KeyTab, true
	case "escape", "esc":
		return KeyEscape, true
	case "backspace":
		return KeyBackspace, true
	case "space":
		return KeySpace, true
	case "up":
		return KeyUp, true
	case "down":
		return KeyDown, true
	case "left":
		return KeyLeft, true
	case "right":
		return KeyRight, true
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, false
	}
	return r[0], true
}

// focusCtx returns the current focus context for bind matching.
func (s *State) focusCtx() FocusCtx {
	if s.ActiveFloat() != nil {
		return CtxFloat
	}
	return CtxSplit
}

// findBestBind picks the matching bind with the highest specificity score.
// Scoring: +1 non-any context, +1 hold window, +1 double-tap window. Equal
// scores resolve to the last-scanned bind.
func findBestBind(binds []*Bind, mods Mods, key rune, when When, ctx FocusCtx) *Bind {
	var best *Bind
	bestScore := -1
	for _, b := range binds {
		if b.Mods != mods || b.Key != key || b.When != when {
			continue
		}
		if b.Ctx != CtxAny && b.Ctx != ctx {
			continue
		}
		score := 0
		if b.Ctx != CtxAny {
			score++
		}
		if b.HoldMs > 0 {
			score++
		}
		if b.DoubleTapMs > 0 {
			score++
		}
		if score >= bestScore {
			best = b
			bestScore = score
		}
	}
	return best
}

// timerState is the per-chord timer machine state.
type timerState int

const (
	tsHold timerState = iota
	tsHoldFired
	tsRepeatWait
	tsRepeatActive
	tsDoubleTapWait
)

// KeyTimer is live timer state for one (mods, key) chord.
type KeyTimer struct {
	Mods     Mods
	Key      rune
	State    timerState
	Deadline time.Time // zero = no deadline

	HoldBind     *Bind
	DelayedPress *Bind  // pending press, fired when the double-tap window lapses
	Legacy       []byte // bytes forwarded on a short tap
}

func (s *State) findTimer(mods Mods, key rune) *KeyTimer {
	for _, t := range s.KeyTimers {
		if t.Mods == mods && t.Key == key {
			return t
		}
	}
	return nil
}

func (s *State) dropTimer(t *KeyTimer) {
	for i, other := range s.KeyTimers {
		if other == t {
			s.KeyTimers = append(s.KeyTimers[:i], s.KeyTimers[i+1:]...)
			return
		}
	}
}

// HandleKeyEvent runs the bind machine for one decoded key event. legacy
// is the byte translation forwarded to the pane when a hold resolves as a
// short tap. Returns true when the event was claimed (bound or consumed).
func (s *State) HandleKeyEvent(mods Mods, key rune, kind EventKind, legacy []byte) bool {
	ctx := s.focusCtx()
	timer := s.findTimer(mods, key)
	now := time.Now()

	switch kind {
	case EventPress:
		if timer != nil && timer.State == tsDoubleTapWait {
			s.dropTimer(timer)
			if b := findBestBind(s.Binds, mods, key, WhenDoubleTap, ctx); b != nil {
				s.Dispatch(b.Action, b.Arg)
			}
			return true
		}
		if timer != nil {
			// A fresh press supersedes any stale timer for the chord.
			s.dropTimer(timer)
		}
		hold := findBestBind(s.Binds, mods, key, WhenHold, ctx)
		press := findBestBind(s.Binds, mods, key, WhenPress, ctx)
		dt := findBestBind(s.Binds, mods, key, WhenDoubleTap, ctx)
		repeat := findBestBind(s.Binds, mods, key, WhenRepeat, ctx)
		switch {
		case hold != nil:
			s.KeyTimers = append(s.KeyTimers, &KeyTimer{
				Mods: mods, Key: key, State: tsHold,
				Deadline: now.Add(time.Duration(hold.HoldMs) * time.Millisecond),
				HoldBind: hold, Legacy: legacy,
			})
			return true
		case dt != nil:
			s.KeyTimers = append(s.KeyTimers, &KeyTimer{
				Mods: mods, Key: key, State: tsDoubleTapWait,
				Deadline:     now.Add(time.Duration(dt.DoubleTapMs) * time.Millisecond),
				DelayedPress: press,
			})
			return true
		case press != nil:
			s.Dispatch(press.Action, press.Arg)
			return true
		case repeat != nil:
			s.KeyTimers = append(s.KeyTimers, &KeyTimer{
				Mods: mods, Key: key, State: tsRepeatWait, Legacy: legacy,
			})
			return true
		}
		return false

	case EventRepeat:
		if timer != nil && (timer.State == tsRepeatWait || timer.State == tsRepeatActive) {
			timer.State = tsRepeatActive
			timer.Deadline = time.Time{} // cancels any pending hold
			if b := findBestBind(s.Binds, mods, key, WhenRepeat, ctx); b != nil {
				s.Dispatch(b.Action, b.Arg)
			}
			return true
		}
		if timer != nil {
			s.dropTimer(timer)
		}
		// Fallback: a bare repeat acts as a press.
		if b := findBestBind(s.Binds, mods, key, WhenPress, ctx); b != nil {
			s.Dispatch(b.Action, b.Arg)
			return true
		}
		return timer != nil

	case EventRelease:
		if b := findBestBind(s.Binds, mods, key, WhenRelease, ctx); b != nil {
			if timer != nil {
				s.dropTimer(timer)
			}
			s.Dispatch(b.Action, b.Arg)
			return true
		}
		if timer == nil {
			// Unbound release frames never reach the child: legacy
			// encodings have no release event.
			return true
		}
		state := timer.State
		s.dropTimer(timer)
		switch state {
		case tsHold, tsRepeatWait:
			// Short tap: the key goes to the pane after all.
			if p := s.FocusedPane(); p != nil && len(timer.Legacy) > 0 {
				s.writePane(p, timer.Legacy)
			}
		case tsHoldFired, tsRepeatActive:
			// Swallow.
		}
		return true
	}
	return false
}

// ProcessKeyTimers fires expired timers in order. Focus context is
// evaluated here, at fire time.
func (s *State) ProcessKeyTimers(now time.Time) {
	ctx := s.focusCtx()
	for _, t := range append([]*KeyTimer(nil), s.KeyTimers...) {
		if t.Deadline.IsZero() || now.Before(t.Deadline) {
			continue
		}
		switch t.State {
		case tsHold:
			t.State = tsHoldFired
			t.Deadline = time.Time{}
			if b := t.HoldBind; b != nil && (b.Ctx == CtxAny || b.Ctx == ctx) {
				s.Dispatch(b.Action, b.Arg)
			}
		case tsDoubleTapWait:
			s.dropTimer(t)
			if b := t.DelayedPress; b != nil && (b.Ctx == CtxAny || b.Ctx == ctx) {
				s.Dispatch(b.Action, b.Arg)
			}
		}
	}
}

// NextKeyTimerDeadline returns the earliest pending deadline, or zero.
func (s *State) NextKeyTimerDeadline() time.Time {
	var min time.Time
	for _, t := range s.KeyTimers {
		if t.Deadline.IsZero() {
			continue
		}
		if min.IsZero() || t.Deadline.Before(min) {
			min = t.Deadline
		}
	}
	return min
}
