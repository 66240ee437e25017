// Package mux implements the interactive multiplexer core: the tab, layout,
// and float data model, the input interpreter, the renderer composition, the
// SES client glue, detach/reattach serialization, and the poll event loop
// that binds them together.
package mux

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/vito/midterm"

	"hexe/internal/pop"
	"hexe/internal/ses"
)

// ErrPaneClosed reports EOF from a pane's backend.
var ErrPaneClosed = errors.New("pane closed")

// NewUUID returns a 32-byte hex identifier.
func NewUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Pane is one child terminal session: a VT engine pair (live screen plus
// append-only scrollback), a backend (local PTY or a SES pane id), geometry,
// and scroll state.
type Pane struct {
	UUID   string
	PaneID uint32 // SES VT routing id, 0 for local panes
	ID     int    // layout-local id

	// Content rectangle.
	X, Y, W, H int

	// Float outer rectangle and the percentage placement that is
	// authoritative across resizes.
	BorderX, BorderY, BorderW, BorderH int
	WidthPct, HeightPct                float64
	PosXPct, PosYPct                   float64
	PadX, PadY                         int

	Focused   bool
	Floating  bool
	Visible   bool
	VisibleOn map[int]bool // per-tab visibility for global floats
	ParentTab int          // tab binding, -1 when unbound
	Global    bool
	IsPwd     bool
	Sticky    bool
	Alone     bool
	Destroy   bool
	FloatKey  byte
	PwdDir    string
	Title     string

	// Backend: exactly one of Ptm (local) or Ses (pod) is set. Sink, when
	// set, replaces the backend writer (tests and dry runs).
	Ptm  *os.File
	Cmd  *exec.Cmd
	Ses  *ses.Client
	Sink io.Writer

	Vt         *midterm.Terminal // live screen
	Scrollback *midterm.Terminal // append-only history

	Scroll    int  // lines scrolled up from the bottom (0 = live)
	DidClear  bool // next render must be full
	OscExpect bool // an OSC query is awaiting the terminal's reply
	AltScreen bool
	Dead      bool

	oscQuery []byte // pending query bytes to forward upstream

	Pop pop.Manager
}

func newPaneTerminals(w, h int) (*midterm.Terminal, *midterm.Terminal) {
	vt := midterm.NewTerminal(h, w)
	sb := midterm.NewTerminal(h, w)
	sb.AutoResizeY = true
	sb.AppendOnly = true
	return vt, sb
}

// OpenLocal starts a child process in a locally-owned PTY. Used when the
// SES daemon is unavailable.
func OpenLocal(id int, x, y, w, h int, cmdLine string) (*Pane, error) {
	if cmdLine == "" {
		cmdLine = os.Getenv("SHELL")
		if cmdLine == "" {
			cmdLine = "/bin/sh"
		}
	}
	cmd := exec.Command(cmdLine)
	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)})
	if err != nil {
		return nil, fmt.Errorf("spawn pane: %w", err)
	}
	p := &Pane{
		UUID: NewUUID(), ID: id,
		X: x, Y: y, W: w, H: h,
		ParentTab: -1, Visible: true,
		Ptm: ptm, Cmd: cmd,
	}
	p.Vt, p.Scrollback = newPaneTerminals(w, h)
	return p, nil
}

// OpenPod constructs a pane backed by a SES-owned PTY.
func OpenPod(id int, x, y, w, h int, client *ses.Client, paneID uint32, paneUUID string) *Pane {
	p := &Pane{
		UUID: paneUUID, PaneID: paneID, ID: id,
		X: x, Y: y, W: w, H: h,
		ParentTab: -1, Visible: true,
		Ses: client,
	}
	p.Vt, p.Scrollback = newPaneTerminals(w, h)
	return p
}

// Resize updates the content rectangle and reflows the VT engine. The
// backend is informed best-effort.
func (p *Pane) Resize(x, y, w, h int) {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	p.X, p.Y, p.W, p.H = x, y, w, h
	p.Vt.Resize(h, w)
	p.Scrollback.ResizeX(w)
	if p.Ptm != nil {
		pty.Setsize(p.Ptm, &pty.Winsize{Rows: uint16(h), Cols: uint16(w)})
	} else if p.Ses != nil {
		p.Ses.UpdatePaneAux(p.UUID, w, h)
	}
}

// Write forwards child-bound bytes to the backend.
func (p *Pane) Write(data []byte) error {
	if p.Dead {
		return ErrPaneClosed
	}
	if p.Sink != nil {
		_, err := p.Sink.Write(data)
		return err
	}
	if p.Ptm != nil {
		_, err := p.Ptm.Write(data)
		return err
	}
	if p.Ses != nil {
		return p.Ses.SendVT(p.PaneID, data)
	}
	return ErrPaneClosed
}

// Feed consumes child output: both terminals advance, and the bytes are
// scanned for screen clears, alt-screen switches, and OSC queries that need
// a reply from the real terminal.
func (p *Pane) Feed(data []byte) {
	p.scanOutput(data)
	p.Vt.Write(data)
	p.Scrollback.Write(data)
}

// Poll does a non-blocking-style read of a local pane's PTY; the caller
// gates it on poll(2) readability. Returns ErrPaneClosed on EOF.
func (p *Pane) Poll(buf []byte) (bool, error) {
	if p.Ptm == nil {
		return false, nil
	}
	n, err := p.Ptm.Read(buf)
	if n > 0 {
		p.Feed(buf[:n])
	}
	if err != nil {
		p.Dead = true
		return n > 0, ErrPaneClosed
	}
	return n > 0, nil
}

var (
	oscQueryPrefixes = [][]byte{
		[]byte("\033]10;?"),
		[]byte("\033]11;?"),
		[]byte("\033]4;"),
		[]byte("\033]52;"),
	}
	altScreenOn  = [][]byte{[]byte("\033[?1049h"), []byte("\033[?1047h"), []byte("\033[?47h")}
	altScreenOff = [][]byte{[]byte("\033[?1049l"), []byte("\033[?1047l"), []byte("\033[?47l")}
)

// scanOutput updates DidClear, AltScreen, and the OSC-expect state from a
// child output chunk.
func (p *Pane) scanOutput(data []byte) {
	if bytes.Contains(data, []byte("\033[2J")) || bytes.Contains(data, []byte("\033c")) {
		p.DidClear = true
	}
	for _, seq := range altScreenOn {
		if bytes.Contains(data, seq) {
			p.AltScreen = true
			p.DidClear = true
		}
	}
	for _, seq := range altScreenOff {
		if bytes.Contains(data, seq) {
			p.AltScreen = false
			p.DidClear = true
		}
	}
	for _, prefix := range oscQueryPrefixes {
		idx := bytes.Index(data, prefix)
		if idx < 0 {
			continue
		}
		end := oscEnd(data, idx)
		if end < 0 {
			end = len(data)
		}
		p.OscExpect = true
		p.oscQuery = append(p.oscQuery, data[idx:end]...)
	}
}

// oscEnd returns the index one past the OSC terminator, or -1.
func oscEnd(data []byte, start int) int {
	for i := start; i < len(data); i++ {
		if data[i] == 0x07 {
			return i + 1
		}
		if data[i] == 0x1B && i+1 < len(data) && data[i+1] == '\\' {
			return i + 2
		}
	}
	return -1
}

// TakeOSCQuery drains the pending upstream query bytes.
func (p *Pane) TakeOSCQuery() []byte {
	q := p.oscQuery
	p.oscQuery = nil
	return q
}

// IsAlive reports backend liveness.
func (p *Pane) IsAlive() bool {
	if p.Dead {
		return false
	}
	if p.Sink != nil {
		return true
	}
	if p.Ptm != nil {
		if p.Cmd == nil || p.Cmd.Process == nil {
			return false
		}
		return p.Cmd.ProcessState == nil
	}
	return p.Ses != nil
}

// ReplaceWithPod swaps the backend for a SES pane while preserving
// geometry, the VT engine, and scrollback. Used by disown-respawn and
// adopt.
func (p *Pane) ReplaceWithPod(client *ses.Client, newPaneID uint32, paneUUID string) {
	if p.Ptm != nil {
		p.Ptm.Close()
		p.Ptm = nil
		p.Cmd = nil
	}
	p.Ses = client
	p.PaneID = newPaneID
	p.UUID = paneUUID
	p.Dead = false
	p.DidClear = true
}

// Close tears down the backend. SES-owned processes are killed by the
// daemon only when kill is set; local panes always close their PTY.
func (p *Pane) Close(kill bool) {
	p.Dead = true
	if p.Ptm != nil {
		if kill && p.Cmd != nil && p.Cmd.Process != nil {
			p.Cmd.Process.Kill()
		}
		p.Ptm.Close()
		p.Ptm = nil
		return
	}
	if p.Ses != nil && kill {
		p.Ses.KillPane(p.UUID)
	}
}

// --- Scrolling ---

// viewportTop returns the scrollback row shown at the pane's first screen
// line for the current scroll position.
func (p *Pane) viewportTop() int {
	top := p.Scrollback.Cursor.Y - p.H + 1
	if top < 0 {
		top = 0
	}
	top -= p.Scroll
	if top < 0 {
		top = 0
	}
	return top
}

// maxScroll is how far up the viewport can go.
func (p *Pane) maxScroll() int {
	m := p.Scrollback.Cursor.Y - p.H + 1
	if m < 0 {
		m = 0
	}
	return m
}

// ScrollUp moves the viewport up n lines, clamped to history.
func (p *Pane) ScrollUp(n int) {
	p.Scroll += n
	if m := p.maxScroll(); p.Scroll > m {
		p.Scroll = m
	}
}

// ScrollDown moves the viewport down n lines, clamped to the live bottom.
func (p *Pane) ScrollDown(n int) {
	p.Scroll -= n
	if p.Scroll < 0 {
		p.Scroll = 0
	}
}

// ScrollToTop jumps to the oldest history line.
func (p *Pane) ScrollToTop() {
	p.Scroll = p.maxScroll()
}

// ScrollToBottom returns to the live view.
func (p *Pane) ScrollToBottom() {
	p.Scroll = 0
}

// Scrolled reports whether the pane is away from the live bottom.
func (p *Pane) Scrolled() bool {
	return p.Scroll > 0
}

// ConfigureNotifications binds the pane-scope notification style.
func (p *Pane) ConfigureNotifications() *pop.Manager {
	return &p.Pop
}

// TextBetween extracts the text between two buffer coordinates
// (column, absolute scrollback row), inclusive. Rows that fill the full
// width are treated as soft-wrapped and joined without a newline; trailing
// spaces are trimmed per hard line.
func (p *Pane) TextBetween(x1, y1, x2, y2 int) string {
	if y2 < y1 || (y1 == y2 && x2 < x1) {
		x1, y1, x2, y2 = x2, y2, x1, y1
	}
	var b strings.Builder
	for y := y1; y <= y2; y++ {
		if y < 0 || y >= len(p.Scrollback.Content) {
			continue
		}
		line := p.Scrollback.Content[y]
		start, end := 0, len(line)
		if y == y1 {
			start = x1
		}
		if y == y2 {
			end = x2 + 1
		}
		if start > len(line) {
			start = len(line)
		}
		if end > len(line) {
			end = len(line)
		}
		if start < end {
			b.WriteString(strings.TrimRight(string(line[start:end]), " \x00"))
		}
		// A row whose last cell is occupied continues on the next row
		// without a hard break.
		softWrap := len(line) >= p.W && line[p.W-1] != ' ' && line[p.W-1] != 0
		if y < y2 && !softWrap {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
