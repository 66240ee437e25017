// Package pop implements the notification and popup widgets the mux core
// composes at MUX, TAB, and PANE scope. A blocking popup consumes input
// bytes until it produces a result; notifications are passive and timed.
package pop

import "time"

// Result is the outcome of a dismissed popup.
type Result int

const (
	ResultNone Result = iota
	ResultYes
	ResultNo
	ResultPick
	ResultCancel
)

// Kind selects the popup behavior.
type Kind int

const (
	KindConfirm Kind = iota
	KindPicker
)

// Popup is a blocking widget awaiting a confirm or picker result.
type Popup struct {
	Kind     Kind
	Title    string
	Items    []string  // picker entries
	Index    int       // picker selection
	Deadline time.Time // zero = no timeout

	done   bool
	result Result

	csi []byte // partial escape sequence carried across Feed calls
}

// NewConfirm returns a yes/no popup.
func NewConfirm(title string) *Popup {
	return &Popup{Kind: KindConfirm, Title: title}
}

// NewPicker returns a list-selection popup.
func NewPicker(title string, items []string) *Popup {
	return &Popup{Kind: KindPicker, Title: title, Items: items}
}

// Done reports whether the popup has produced a result.
func (p *Popup) Done() bool { return p.done }

// Result returns the outcome and, for pickers, the selected index.
func (p *Popup) Result() (Result, int) { return p.result, p.Index }

func (p *Popup) finish(r Result) {
	p.done = true
	p.result = r
}

// Feed consumes one input chunk. The popup always swallows the entire
// chunk; arrow keys arrive as CSI sequences and may split across chunks.
func (p *Popup) Feed(data []byte) {
	for _, b := range data {
		if p.done {
			return
		}
		if len(p.csi) > 0 {
			p.csi = append(p.csi, b)
			if len(p.csi) == 2 {
				if b != '[' {
					p.csi = p.csi[:0]
					p.key(0x1B)
				}
				continue
			}
			if b >= 0x40 && b <= 0x7E {
				p.arrow(b)
				p.csi = p.csi[:0]
			}
			continue
		}
		if b == 0x1B {
			p.csi = append(p.csi, b)
			continue
		}
		p.key(b)
	}
}

// ResolvePendingEscape promotes a trailing lone ESC to a bare escape key.
// Called from the tick so a split arrow sequence gets its chance to
// complete first.
func (p *Popup) ResolvePendingEscape() {
	if len(p.csi) == 1 && !p.done {
		p.csi = p.csi[:0]
		p.key(0x1B)
	}
}

func (p *Popup) key(b byte) {
	switch p.Kind {
	case KindConfirm:
		switch b {
		case 'y', 'Y', '\r', '\n':
			p.finish(ResultYes)
		case 'n', 'N', 0x1B:
			p.finish(ResultNo)
		}
	case KindPicker:
		switch b {
		case '\r', '\n':
			if len(p.Items) == 0 {
				p.finish(ResultCancel)
			} else {
				p.finish(ResultPick)
			}
		case 0x1B, 'q':
			p.finish(ResultCancel)
		case 'j':
			p.move(1)
		case 'k':
			p.move(-1)
		}
	}
}

func (p *Popup) arrow(final byte) {
	if p.Kind != KindPicker {
		return
	}
	switch final {
	case 'A':
		p.move(-1)
	case 'B':
		p.move(1)
	}
}

func (p *Popup) move(d int) {
	if len(p.Items) == 0 {
		return
	}
	p.Index += d
	if p.Index < 0 {
		p.Index = len(p.Items) - 1
	}
	if p.Index >= len(p.Items) {
		p.Index = 0
	}
}

// Notification is a passive timed message.
type Notification struct {
	Message  string
	Deadline time.Time
}

// Manager owns at most one popup and one notification for a scope.
type Manager struct {
	Popup *Popup
	Note  *Notification
}

// IsBlocked reports whether a live popup is consuming input.
func (m *Manager) IsBlocked() bool {
	return m.Popup != nil && !m.Popup.Done()
}

// Notify replaces the current notification.
func (m *Manager) Notify(msg string, ttl time.Duration) {
	m.Note = &Notification{Message: msg, Deadline: time.Now().Add(ttl)}
}

// Show installs a popup, replacing any previous one.
func (m *Manager) Show(p *Popup) {
	m.Popup = p
}

// TakeResult returns and clears a finished popup's result.
func (m *Manager) TakeResult() (Result, int, bool) {
	if m.Popup == nil || !m.Popup.Done() {
		return ResultNone, 0, false
	}
	r, idx := m.Popup.Result()
	m.Popup = nil
	return r, idx, true
}

// Tick expires timed widgets and resolves a pending bare escape. Returns
// true when the display changed.
func (m *Manager) Tick(now time.Time) bool {
	changed := false
	if m.Popup != nil && !m.Popup.Done() {
		m.Popup.ResolvePendingEscape()
		changed = changed || m.Popup.Done()
	}
	if m.Note != nil && now.After(m.Note.Deadline) {
		m.Note = nil
		changed = true
	}
	if m.Popup != nil && !m.Popup.Deadline.IsZero() && now.After(m.Popup.Deadline) && !m.Popup.Done() {
		m.Popup.finish(ResultCancel)
		changed = true
	}
	return changed
}

// NextDeadline returns the earliest pending deadline, or zero if none.
func (m *Manager) NextDeadline() time.Time {
	var t time.Time
	if m.Note != nil {
		t = m.Note.Deadline
	}
	if m.Popup != nil && !m.Popup.Deadline.IsZero() {
		if t.IsZero() || m.Popup.Deadline.Before(t) {
			t = m.Popup.Deadline
		}
	}
	return t
}
