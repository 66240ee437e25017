package ses

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"hexe/internal/socketdir"
)

// ErrProtocol reports an unexpected response type or undersized payload on
// the control channel.
var ErrProtocol = errors.New("ses: protocol mismatch")

// Client is the mux side of the daemon connection: a control channel for
// requests and a VT channel multiplexing pane bytes. In production both
// channels are *os.File so their fds can join the event loop's poll set.
type Client struct {
	Ctl io.ReadWriter
	VT  io.ReadWriter

	SessionID string
}

// fdOf returns the pollable descriptor behind a channel, or -1.
func fdOf(rw io.ReadWriter) int {
	if f, ok := rw.(*os.File); ok {
		return int(f.Fd())
	}
	return -1
}

// CtlFd returns the control channel's poll descriptor, or -1.
func (c *Client) CtlFd() int { return fdOf(c.Ctl) }

// VTFd returns the VT channel's poll descriptor, or -1.
func (c *Client) VTFd() int {
	if c.VT == nil {
		return -1
	}
	return fdOf(c.VT)
}

// Connect dials the daemon's control socket, spawning the daemon if
// nothing is listening. Debug and logfile are forwarded to the spawned
// daemon's command line.
func Connect(debug bool, logfile string) (*Client, error) {
	sock := socketdir.Path(socketdir.TypeSes, socketdir.Instance())
	f, err := dialFile(sock)
	if err != nil {
		if err := spawnDaemon(debug, logfile); err != nil {
			return nil, fmt.Errorf("spawn ses daemon: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
		f, err = dialFile(sock)
		if err != nil {
			return nil, fmt.Errorf("connect ses: %w", err)
		}
	}
	if _, err := f.Write([]byte{HandshakeControl}); err != nil {
		f.Close()
		return nil, fmt.Errorf("ses handshake: %w", err)
	}
	return &Client{Ctl: f}, nil
}

// dialFile dials a Unix socket and returns its *os.File so the fd can sit
// in the event loop's poll set.
func dialFile(path string) (*os.File, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return nil, err
	}
	f, err := conn.File()
	conn.Close()
	if err != nil {
		return nil, err
	}
	return f, nil
}

// spawnDaemon re-execs this binary as `ses daemon` in the background.
func spawnDaemon(debug bool, logfile string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	args := []string{"ses", "daemon"}
	if debug {
		args = append(args, "--debug")
	}
	if logfile != "" {
		args = append(args, "--logfile", logfile)
	}
	cmd := exec.Command(exe, args...)
	cmd.Env = os.Environ() // carries HEXE_INSTANCE and HEXE_TEST_ONLY

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return fmt.Errorf("open /dev/null: %w", err)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		devNull.Close()
		return err
	}
	go func() {
		cmd.Wait()
		devNull.Close()
	}()
	return nil
}

// Register announces the mux session and must be the first request.
func (c *Client) Register(sessionID, name string) error {
	c.SessionID = sessionID
	var ok struct{}
	return c.request(MsgRegister, RegisterReq{SessionID: sessionID, Name: name}, MsgRegister, &ok)
}

// OpenVT dials the VT channel for the registered session.
func (c *Client) OpenVT() error {
	if len(c.SessionID) != SessionIDLen {
		return fmt.Errorf("ses: bad session id %q", c.SessionID)
	}
	sock := socketdir.Path(socketdir.TypeSes, socketdir.Instance())
	f, err := dialFile(sock)
	if err != nil {
		return fmt.Errorf("connect ses vt: %w", err)
	}
	hello := make([]byte, 1+SessionIDLen)
	hello[0] = HandshakeVT
	copy(hello[1:], c.SessionID)
	if _, err := f.Write(hello); err != nil {
		f.Close()
		return fmt.Errorf("ses vt handshake: %w", err)
	}
	c.VT = f
	return nil
}

// request performs a synchronous exchange. Intervening acks of earlier
// fire-and-forget traffic (ok, get_pane_cwd, undersized pane_info) are
// drained before the real response is read; sync and fire-and-forget
// traffic share the channel, so this drain is mandatory.
func (c *Client) request(msgType byte, req any, wantType byte, resp any) error {
	if err := WriteJSON(c.Ctl, msgType, req); err != nil {
		return err
	}
	for {
		gotType, payload, err := ReadMsg(c.Ctl)
		if err != nil {
			return err
		}
		switch {
		case gotType == wantType:
			if wantType == MsgPaneInfo && len(payload) < paneInfoMinSize {
				continue // stale ack, skip
			}
			if resp == nil || len(payload) == 0 {
				return nil
			}
			return json.Unmarshal(payload, resp)
		case gotType == MsgOK, gotType == MsgGetPaneCwd:
			continue // ack of earlier fire-and-forget traffic
		case gotType == MsgPaneInfo:
			continue
		case gotType == MsgError:
			var e ErrorResp
			if json.Unmarshal(payload, &e) == nil && e.Error != "" {
				return fmt.Errorf("ses: %s", e.Error)
			}
			return ErrProtocol
		default:
			return fmt.Errorf("%w: got type %d, want %d", ErrProtocol, gotType, wantType)
		}
	}
}

// fire sends a fire-and-forget message; the daemon's ack is drained by the
// next sync request.
func (c *Client) fire(msgType byte, req any) error {
	return WriteJSON(c.Ctl, msgType, req)
}

// --- Synchronous requests ---

// CreatePane spawns a child process in a daemon-owned PTY.
func (c *Client) CreatePane(req CreatePaneReq) (CreatePaneResp, error) {
	var resp CreatePaneResp
	err := c.request(MsgCreatePane, req, MsgCreatePane, &resp)
	return resp, err
}

// FindSticky looks up a sticky orphan by float key and directory.
func (c *Client) FindSticky(key, cwd string) (FindStickyResp, error) {
	var resp FindStickyResp
	err := c.request(MsgFindSticky, FindStickyReq{Key: key, Cwd: cwd}, MsgFindSticky, &resp)
	return resp, err
}

// AdoptPane binds an orphaned pane to this session.
func (c *Client) AdoptPane(uuid string) (AdoptPaneResp, error) {
	var resp AdoptPaneResp
	err := c.request(MsgAdoptPane, AdoptPaneReq{SessionID: c.SessionID, UUID: uuid}, MsgAdoptPane, &resp)
	return resp, err
}

// ListOrphaned lists panes the daemon keeps alive without a mux.
func (c *Client) ListOrphaned() ([]OrphanInfo, error) {
	var resp ListOrphanedResp
	err := c.request(MsgListOrphaned, struct{}{}, MsgListOrphaned, &resp)
	return resp.Orphans, err
}

// ListSessions lists detached mux sessions.
func (c *Client) ListSessions() ([]SessionInfo, error) {
	var resp ListSessionsResp
	err := c.request(MsgListSessions, struct{}{}, MsgListSessions, &resp)
	return resp.Sessions, err
}

// Detach stores the serialized state and orphans this session's panes.
func (c *Client) Detach(state json.RawMessage) error {
	return c.request(MsgDetach, DetachReq{SessionID: c.SessionID, State: state}, MsgDetach, nil)
}

// Reattach resolves a detached session by name or UUID prefix.
func (c *Client) Reattach(prefix string) (ReattachResp, error) {
	var resp ReattachResp
	err := c.request(MsgReattach, ReattachReq{Prefix: prefix}, MsgReattach, &resp)
	return resp, err
}

// Ping checks daemon liveness.
func (c *Client) Ping() error {
	return c.request(MsgPing, struct{}{}, MsgPing, nil)
}

// PaneInfo queries a pane by UUID.
func (c *Client) PaneInfo(uuid string) (PaneInfoResp, error) {
	var resp PaneInfoResp
	err := c.request(MsgPaneInfo, PaneInfoReq{UUID: uuid}, MsgPaneInfo, &resp)
	return resp, err
}

// --- Fire-and-forget ---

// SyncState pushes the current serialized state.
func (c *Client) SyncState(state json.RawMessage) error {
	return c.fire(MsgSyncState, SyncStateReq{SessionID: c.SessionID, State: state})
}

// UpdatePaneName renames a pane.
func (c *Client) UpdatePaneName(uuid, name string) error {
	return c.fire(MsgUpdatePaneName, UpdatePaneNameReq{UUID: uuid, Name: name})
}

// UpdatePaneShell pushes focused-pane process details.
func (c *Client) UpdatePaneShell(sh PaneShell) error {
	return c.fire(MsgUpdatePaneShell, sh)
}

// UpdatePaneAux is a best-effort hook retained from the older protocol;
// the daemon applies the size to the pane's PTY. Callers ignore the result.
func (c *Client) UpdatePaneAux(uuid string, cols, rows int) error {
	return c.fire(MsgUpdatePaneAux, ResizePaneReq{UUID: uuid, Cols: cols, Rows: rows})
}

// KillPane destroys a pane's process.
func (c *Client) KillPane(uuid string) error {
	return c.fire(MsgKillPane, PaneRef{UUID: uuid})
}

// OrphanPane detaches a pane from this session but keeps it alive.
func (c *Client) OrphanPane(uuid string) error {
	return c.fire(MsgOrphanPane, PaneRef{UUID: uuid})
}

// SetSticky toggles a pane's sticky attribute.
func (c *Client) SetSticky(uuid string, sticky bool, floatKey string) error {
	return c.fire(MsgSetSticky, SetStickyReq{UUID: uuid, Sticky: sticky, FloatKey: floatKey})
}

// --- VT channel ---

// SendVT writes child-bound bytes for a pane.
func (c *Client) SendVT(paneID uint32, data []byte) error {
	if c.VT == nil {
		return errors.New("ses: vt channel not open")
	}
	return WriteVTFrame(c.VT, paneID, data)
}

// ReadVT reads one frame of pane output. Call only when the VT fd is
// readable.
func (c *Client) ReadVT() (uint32, []byte, error) {
	if c.VT == nil {
		return 0, nil, errors.New("ses: vt channel not open")
	}
	return ReadVTFrame(c.VT)
}

// Close tears down both channels.
func (c *Client) Close() {
	if cl, ok := c.Ctl.(io.Closer); ok && cl != nil {
		cl.Close()
	}
	if cl, ok := c.VT.(io.Closer); ok && cl != nil {
		cl.Close()
	}
}
