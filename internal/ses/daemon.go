package ses

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"hexe/internal/socketdir"
)

// daemonPane is one daemon-owned child process and its PTY.
type daemonPane struct {
	UUID     string
	PaneID   uint32
	Cmd      *exec.Cmd
	Ptm      *os.File
	CmdLine  string
	Cwd      string
	Name     string
	Sticky   bool
	FloatKey string
	Owner    string // session id, empty while orphaned
	Alive    bool
}

// muxSession is one registered mux connection.
type muxSession struct {
	SessionID string
	Name      string
	vtMu      sync.Mutex
	vt        net.Conn // nil until the VT channel connects
}

// detachedSession stores a mux's serialized state between detach and
// reattach.
type detachedSession struct {
	SessionID  string
	Name       string
	State      json.RawMessage
	PaneUUIDs  []string
	DetachedAt time.Time
}

// Daemon owns pane processes and persists sticky/orphan/detached state for
// all mux sessions of one instance.
type Daemon struct {
	mu         sync.Mutex
	panes      map[string]*daemonPane // by UUID
	byID       map[uint32]*daemonPane
	sessions   map[string]*muxSession
	detached   map[string]*detachedSession
	nextPaneID uint32

	ln       net.Listener
	testOnly bool
}

// RunDaemon listens on the instance's ses socket and serves control and VT
// connections until the process is killed.
func RunDaemon(debug bool, logfile string) error {
	if logfile != "" {
		f, err := os.OpenFile(logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("open logfile: %w", err)
		}
		log.SetOutput(f)
	} else if !debug {
		log.SetOutput(io.Discard)
	}

	if err := os.MkdirAll(socketdir.Dir(), 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	sockPath := socketdir.Path(socketdir.TypeSes, socketdir.Instance())

	// Check if a daemon is already running on this socket.
	if _, err := os.Stat(sockPath); err == nil {
		conn, err := net.DialTimeout("unix", sockPath, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Errorf("ses daemon already running for instance %q", socketdir.Instance())
		}
		os.Remove(sockPath)
	}

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	defer func() {
		ln.Close()
		os.Remove(sockPath)
	}()

	d := &Daemon{
		panes:    make(map[string]*daemonPane),
		byID:     make(map[uint32]*daemonPane),
		sessions: make(map[string]*muxSession),
		detached: make(map[string]*detachedSession),
		ln:       ln,
		testOnly: os.Getenv("HEXE_TEST_ONLY") != "",
	}
	log.Printf("ses daemon listening on %s", sockPath)
	d.acceptLoop()
	return nil
}

func (d *Daemon) acceptLoop() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		go d.handleConn(conn)
	}
}

func (d *Daemon) handleConn(conn net.Conn) {
	hello := make([]byte, 1)
	if _, err := io.ReadFull(conn, hello); err != nil {
		conn.Close()
		return
	}
	switch hello[0] {
	case HandshakeControl:
		d.serveControl(conn)
	case HandshakeVT:
		id := make([]byte, SessionIDLen)
		if _, err := io.ReadFull(conn, id); err != nil {
			conn.Close()
			return
		}
		d.serveVT(conn, string(id))
	default:
		conn.Close()
	}
}

// serveControl processes control frames until the mux disconnects. A
// disconnect without a prior detach orphans non-sticky panes too, so a
// crashed mux can be recovered with reattach by UUID.
func (d *Daemon) serveControl(conn net.Conn) {
	defer conn.Close()
	var sessionID string
	for {
		msgType, payload, err := ReadMsg(conn)
		if err != nil {
			if sessionID != "" {
				d.dropSession(sessionID)
			}
			return
		}
		if sid := d.dispatch(conn, msgType, payload); sid != "" {
			sessionID = sid
		}
	}
}

// dispatch handles one control frame, returning the session id on register.
func (d *Daemon) dispatch(conn net.Conn, msgType byte, payload []byte) string {
	switch msgType {
	case MsgRegister:
		var req RegisterReq
		if err := json.Unmarshal(payload, &req); err != nil {
			d.sendErr(conn, MsgError, err)
			return ""
		}
		d.mu.Lock()
		d.sessions[req.SessionID] = &muxSession{SessionID: req.SessionID, Name: req.Name}
		// Re-registering after reattach removes the detached record.
		delete(d.detached, req.SessionID)
		d.mu.Unlock()
		WriteJSON(conn, MsgRegister, struct{}{})
		return req.SessionID

	case MsgCreatePane:
		var req CreatePaneReq
		if err := json.Unmarshal(payload, &req); err != nil {
			d.sendErr(conn, MsgError, err)
			return ""
		}
		resp, err := d.createPane(req)
		if err != nil {
			d.sendErr(conn, MsgError, err)
			return ""
		}
		WriteJSON(conn, MsgCreatePane, resp)

	case MsgFindSticky:
		var req FindStickyReq
		json.Unmarshal(payload, &req)
		d.mu.Lock()
		resp := FindStickyResp{}
		for _, p := range d.panes {
			if p.Sticky && p.Owner == "" && p.FloatKey == req.Key && (req.Cwd == "" || p.Cwd == req.Cwd) {
				resp.Found = true
				resp.UUID = p.UUID
				break
			}
		}
		d.mu.Unlock()
		WriteJSON(conn, MsgFindSticky, resp)

	case MsgAdoptPane:
		var req AdoptPaneReq
		json.Unmarshal(payload, &req)
		d.mu.Lock()
		p, ok := d.panes[req.UUID]
		if !ok || !p.Alive {
			d.mu.Unlock()
			d.sendErr(conn, MsgError, fmt.Errorf("no adoptable pane %s", req.UUID))
			return ""
		}
		p.Owner = req.SessionID
		resp := AdoptPaneResp{PaneID: p.PaneID, UUID: p.UUID, Cwd: p.Cwd}
		d.mu.Unlock()
		WriteJSON(conn, MsgAdoptPane, resp)

	case MsgListOrphaned:
		d.mu.Lock()
		var resp ListOrphanedResp
		for _, p := range d.panes {
			if p.Owner == "" && p.Alive {
				resp.Orphans = append(resp.Orphans, OrphanInfo{
					UUID: p.UUID, Cmd: p.CmdLine, Cwd: p.Cwd,
					Sticky: p.Sticky, FloatKey: p.FloatKey,
				})
			}
		}
		d.mu.Unlock()
		WriteJSON(conn, MsgListOrphaned, resp)

	case MsgListSessions:
		d.mu.Lock()
		var resp ListSessionsResp
		for _, s := range d.detached {
			resp.Sessions = append(resp.Sessions, SessionInfo{
				SessionID:  s.SessionID,
				Name:       s.Name,
				DetachedAt: s.DetachedAt.UTC().Format(time.RFC3339),
				PaneCount:  len(s.PaneUUIDs),
			})
		}
		d.mu.Unlock()
		WriteJSON(conn, MsgListSessions, resp)

	case MsgDetach:
		var req DetachReq
		json.Unmarshal(payload, &req)
		d.mu.Lock()
		var paneUUIDs []string
		for _, p := range d.panes {
			if p.Owner == req.SessionID {
				p.Owner = ""
				paneUUIDs = append(paneUUIDs, p.UUID)
			}
		}
		name := req.SessionID
		if s := d.sessions[req.SessionID]; s != nil {
			name = s.Name
		}
		d.detached[req.SessionID] = &detachedSession{
			SessionID:  req.SessionID,
			Name:       name,
			State:      req.State,
			PaneUUIDs:  paneUUIDs,
			DetachedAt: time.Now(),
		}
		delete(d.sessions, req.SessionID)
		d.mu.Unlock()
		WriteJSON(conn, MsgDetach, struct{}{})

	case MsgReattach:
		var req ReattachReq
		json.Unmarshal(payload, &req)
		d.mu.Lock()
		var match *detachedSession
		for _, s := range d.detached {
			if s.Name == req.Prefix || (len(req.Prefix) >= 3 && strings.HasPrefix(s.SessionID, req.Prefix)) {
				match = s
				break
			}
		}
		d.mu.Unlock()
		if match == nil {
			d.sendErr(conn, MsgError, fmt.Errorf("no detached session matches %q", req.Prefix))
			return ""
		}
		WriteJSON(conn, MsgReattach, ReattachResp{
			SessionID: match.SessionID,
			Name:      match.Name,
			State:     match.State,
			PaneUUIDs: match.PaneUUIDs,
		})

	case MsgPing:
		WriteJSON(conn, MsgPing, struct{}{})

	case MsgPaneInfo:
		var req PaneInfoReq
		json.Unmarshal(payload, &req)
		d.mu.Lock()
		p := d.panes[req.UUID]
		var resp PaneInfoResp
		if p != nil {
			resp = PaneInfoResp{
				UUID: p.UUID, PaneID: p.PaneID, Cmd: p.CmdLine,
				Cwd: p.Cwd, Alive: p.Alive, Sticky: p.Sticky,
			}
		} else {
			resp = PaneInfoResp{UUID: req.UUID}
		}
		d.mu.Unlock()
		WriteJSON(conn, MsgPaneInfo, resp)

	case MsgSyncState:
		var req SyncStateReq
		if json.Unmarshal(payload, &req) == nil {
			d.mu.Lock()
			if s, ok := d.detached[req.SessionID]; ok {
				s.State = req.State
			}
			d.mu.Unlock()
		}
		WriteJSON(conn, MsgOK, struct{}{})

	case MsgUpdatePaneName:
		var req UpdatePaneNameReq
		if json.Unmarshal(payload, &req) == nil {
			d.mu.Lock()
			if p := d.panes[req.UUID]; p != nil {
				p.Name = req.Name
			}
			d.mu.Unlock()
		}
		WriteJSON(conn, MsgOK, struct{}{})

	case MsgUpdatePaneShell:
		var sh PaneShell
		if json.Unmarshal(payload, &sh) == nil {
			d.mu.Lock()
			if p := d.panes[sh.UUID]; p != nil {
				if sh.Cwd != "" {
					p.Cwd = sh.Cwd
				}
				if sh.Cmd != "" {
					p.CmdLine = sh.Cmd
				}
			}
			d.mu.Unlock()
		}
		WriteJSON(conn, MsgOK, struct{}{})

	case MsgUpdatePaneAux:
		var req ResizePaneReq
		if json.Unmarshal(payload, &req) == nil {
			d.mu.Lock()
			if p := d.panes[req.UUID]; p != nil && p.Ptm != nil && req.Cols > 0 && req.Rows > 0 {
				pty.Setsize(p.Ptm, &pty.Winsize{Rows: uint16(req.Rows), Cols: uint16(req.Cols)})
			}
			d.mu.Unlock()
		}
		WriteJSON(conn, MsgOK, struct{}{})

	case MsgKillPane:
		var ref PaneRef
		if json.Unmarshal(payload, &ref) == nil {
			d.killPane(ref.UUID)
		}
		WriteJSON(conn, MsgOK, struct{}{})

	case MsgOrphanPane:
		var ref PaneRef
		if json.Unmarshal(payload, &ref) == nil {
			d.mu.Lock()
			if p := d.panes[ref.UUID]; p != nil {
				p.Owner = ""
			}
			d.mu.Unlock()
		}
		WriteJSON(conn, MsgOK, struct{}{})

	case MsgSetSticky:
		var req SetStickyReq
		if json.Unmarshal(payload, &req) == nil {
			d.mu.Lock()
			if p := d.panes[req.UUID]; p != nil {
				p.Sticky = req.Sticky
				if req.FloatKey != "" {
					p.FloatKey = req.FloatKey
				}
			}
			d.mu.Unlock()
		}
		WriteJSON(conn, MsgOK, struct{}{})

	default:
		d.sendErr(conn, MsgError, fmt.Errorf("unknown message type %d", msgType))
	}
	return ""
}

func (d *Daemon) sendErr(conn net.Conn, msgType byte, err error) {
	WriteJSON(conn, msgType, ErrorResp{Error: err.Error()})
}

// createPane spawns a child in a fresh PTY and starts its output pump.
func (d *Daemon) createPane(req CreatePaneReq) (CreatePaneResp, error) {
	cmdLine := req.Cmd
	if cmdLine == "" {
		cmdLine = os.Getenv("SHELL")
		if cmdLine == "" {
			cmdLine = "/bin/sh"
		}
	}
	if d.testOnly {
		cmdLine = "/bin/cat"
	}
	cmd := exec.Command(cmdLine)
	if req.Cwd != "" {
		cmd.Dir = req.Cwd
	}
	cols, rows := req.Cols, req.Rows
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return CreatePaneResp{}, fmt.Errorf("start pane: %w", err)
	}

	id := req.UUID
	if id == "" {
		id = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	d.mu.Lock()
	d.nextPaneID++
	p := &daemonPane{
		UUID: id, PaneID: d.nextPaneID, Cmd: cmd, Ptm: ptm,
		CmdLine: cmdLine, Cwd: req.Cwd,
		Sticky: req.Sticky, Alive: true,
	}
	d.panes[p.UUID] = p
	d.byID[p.PaneID] = p
	d.mu.Unlock()

	go d.pumpPane(p)
	go func() {
		cmd.Wait()
		d.mu.Lock()
		p.Alive = false
		owner := d.sessions[p.Owner]
		d.mu.Unlock()
		// A zero-length VT frame is the EOF marker for the mux.
		if owner != nil {
			owner.vtMu.Lock()
			if owner.vt != nil {
				WriteVTFrame(owner.vt, p.PaneID, nil)
			}
			owner.vtMu.Unlock()
		}
	}()
	return CreatePaneResp{PaneID: p.PaneID, UUID: p.UUID}, nil
}

// pumpPane forwards PTY output to the owning session's VT channel. Output
// produced while orphaned is discarded.
func (d *Daemon) pumpPane(p *daemonPane) {
	buf := make([]byte, 4096)
	for {
		n, err := p.Ptm.Read(buf)
		if n > 0 {
			d.mu.Lock()
			owner := d.sessions[p.Owner]
			d.mu.Unlock()
			if owner != nil {
				owner.vtMu.Lock()
				if owner.vt != nil {
					WriteVTFrame(owner.vt, p.PaneID, buf[:n])
				}
				owner.vtMu.Unlock()
			}
		}
		if err != nil {
			return
		}
	}
}

func (d *Daemon) killPane(uuidStr string) {
	d.mu.Lock()
	p := d.panes[uuidStr]
	if p != nil {
		delete(d.panes, p.UUID)
		delete(d.byID, p.PaneID)
	}
	d.mu.Unlock()
	if p == nil {
		return
	}
	if p.Cmd != nil && p.Cmd.Process != nil {
		p.Cmd.Process.Kill()
	}
	if p.Ptm != nil {
		p.Ptm.Close()
	}
}

// dropSession handles an unannounced mux disconnect: its panes become
// orphans so a reattach by UUID can recover them.
func (d *Daemon) dropSession(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s := d.sessions[sessionID]; s != nil {
		s.vtMu.Lock()
		if s.vt != nil {
			s.vt.Close()
			s.vt = nil
		}
		s.vtMu.Unlock()
	}
	delete(d.sessions, sessionID)
	for _, p := range d.panes {
		if p.Owner == sessionID {
			p.Owner = ""
		}
	}
}

// serveVT binds a VT connection to its registered session and pumps
// child-bound frames into pane PTYs.
func (d *Daemon) serveVT(conn net.Conn, sessionID string) {
	d.mu.Lock()
	s := d.sessions[sessionID]
	d.mu.Unlock()
	if s == nil {
		conn.Close()
		return
	}
	s.vtMu.Lock()
	if s.vt != nil {
		s.vt.Close()
	}
	s.vt = conn
	s.vtMu.Unlock()

	for {
		paneID, payload, err := ReadVTFrame(conn)
		if err != nil {
			s.vtMu.Lock()
			if s.vt == conn {
				s.vt = nil
			}
			s.vtMu.Unlock()
			conn.Close()
			return
		}
		d.mu.Lock()
		p := d.byID[paneID]
		d.mu.Unlock()
		if p != nil && p.Alive && len(payload) > 0 {
			p.Ptm.Write(payload)
		}
	}
}
