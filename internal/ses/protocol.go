// Package ses implements the session daemon protocol: the daemon that owns
// pane processes and PTYs, and the client the mux uses to talk to it over
// two byte streams (control + VT mux).
package ses

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Channel handshake bytes, sent by the client as the first byte of a
// connection.
const (
	HandshakeControl byte = 0x01
	HandshakeVT      byte = 0x02
)

// SessionIDLen is the length of the hex session id that follows a VT
// handshake byte.
const SessionIDLen = 32

// Control message types. Responses carry the same type byte as their
// request; MsgOK acknowledges fire-and-forget messages.
const (
	MsgOK byte = iota + 1
	MsgRegister
	MsgCreatePane
	MsgFindSticky
	MsgAdoptPane
	MsgListOrphaned
	MsgListSessions
	MsgDetach
	MsgReattach
	MsgPing
	MsgPaneInfo
	MsgGetPaneCwd
	MsgSyncState
	MsgUpdatePaneName
	MsgUpdatePaneShell
	MsgUpdatePaneAux
	MsgKillPane
	MsgOrphanPane
	MsgSetSticky
	MsgError
)

// maxFrameLen is the sanity limit for a single control frame payload.
const maxFrameLen = 10 * 1024 * 1024

// paneInfoMinSize is the minimum payload size of a real pane_info response.
// Smaller pane_info frames are acks of earlier fire-and-forget traffic and
// are skipped by the sync-request drain rule.
const paneInfoMinSize = 16

// WriteMsg writes a control frame: [1 byte type][4 bytes big-endian length][payload].
func WriteMsg(w io.Writer, msgType byte, payload []byte) error {
	header := make([]byte, 5)
	header[0] = msgType
	binary.BigEndian.PutUint32(header[1:5], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadMsg reads a control frame. Returns the message type and payload.
func ReadMsg(r io.Reader) (byte, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	msgType := header[0]
	length := binary.BigEndian.Uint32(header[1:5])
	if length > maxFrameLen {
		return 0, nil, fmt.Errorf("frame too large: %d bytes", length)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return msgType, payload, nil
}

// WriteJSON marshals v and writes it as a control frame.
func WriteJSON(w io.Writer, msgType byte, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return WriteMsg(w, msgType, payload)
}

// WriteVTFrame writes a VT channel frame: [4 bytes pane id][4 bytes length][payload].
func WriteVTFrame(w io.Writer, paneID uint32, payload []byte) error {
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], paneID)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadVTFrame reads a VT channel frame.
func ReadVTFrame(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	paneID := binary.BigEndian.Uint32(header[0:4])
	length := binary.BigEndian.Uint32(header[4:8])
	if length > maxFrameLen {
		return 0, nil, fmt.Errorf("vt frame too large: %d bytes", length)
	}
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return paneID, payload, nil
}

// --- Control payloads ---

// RegisterReq announces a mux session to the daemon.
type RegisterReq struct {
	SessionID string `json:"session_id"` // 32-hex mux UUID
	Name      string `json:"name"`
}

// CreatePaneReq asks the daemon to spawn a child in a fresh PTY.
type CreatePaneReq struct {
	UUID   string `json:"uuid"`
	Cmd    string `json:"cmd,omitempty"` // empty means the user's shell
	Cwd    string `json:"cwd,omitempty"`
	Cols   int    `json:"cols"`
	Rows   int    `json:"rows"`
	Sticky bool   `json:"sticky,omitempty"`
}

// CreatePaneResp returns the routing id for the new pane.
type CreatePaneResp struct {
	PaneID uint32 `json:"pane_id"`
	UUID   string `json:"uuid"`
}

// ResizePaneReq is carried inside UpdatePaneAux for geometry changes.
type ResizePaneReq struct {
	UUID string `json:"uuid"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// FindStickyReq looks up a sticky pane by float key and directory.
type FindStickyReq struct {
	Key string `json:"key"`
	Cwd string `json:"cwd"`
}

// FindStickyResp reports whether a matching orphan exists.
type FindStickyResp struct {
	Found bool   `json:"found"`
	UUID  string `json:"uuid,omitempty"`
}

// AdoptPaneReq binds an orphaned pane to the calling mux session.
type AdoptPaneReq struct {
	SessionID string `json:"session_id"`
	UUID      string `json:"uuid"`
}

// AdoptPaneResp returns the adopted pane's routing id and directory.
type AdoptPaneResp struct {
	PaneID uint32 `json:"pane_id"`
	UUID   string `json:"uuid"`
	Cwd    string `json:"cwd,omitempty"`
}

// OrphanInfo describes one orphaned pane.
type OrphanInfo struct {
	UUID     string `json:"uuid"`
	Cmd      string `json:"cmd,omitempty"`
	Cwd      string `json:"cwd,omitempty"`
	Sticky   bool   `json:"sticky,omitempty"`
	FloatKey string `json:"float_key,omitempty"`
}

// ListOrphanedResp lists all orphaned panes.
type ListOrphanedResp struct {
	Orphans []OrphanInfo `json:"orphans"`
}

// SessionInfo describes one detached mux session.
type SessionInfo struct {
	SessionID  string `json:"session_id"`
	Name       string `json:"name"`
	DetachedAt string `json:"detached_at,omitempty"`
	PaneCount  int    `json:"pane_count"`
}

// ListSessionsResp lists detached sessions.
type ListSessionsResp struct {
	Sessions []SessionInfo `json:"sessions"`
}

// DetachReq stores the serialized mux state and orphans its panes as a
// detached session.
type DetachReq struct {
	SessionID string          `json:"session_id"`
	State     json.RawMessage `json:"state"`
}

// ReattachReq resolves a detached session by name or UUID prefix.
type ReattachReq struct {
	Prefix string `json:"prefix"`
}

// ReattachResp returns the stored state and the adoptable pane UUIDs.
type ReattachResp struct {
	SessionID string          `json:"session_id"`
	Name      string          `json:"name"`
	State     json.RawMessage `json:"state"`
	PaneUUIDs []string        `json:"pane_uuids"`
}

// PaneInfoReq queries a pane by UUID.
type PaneInfoReq struct {
	UUID string `json:"uuid"`
}

// PaneInfoResp describes a pane the daemon owns.
type PaneInfoResp struct {
	UUID   string `json:"uuid"`
	PaneID uint32 `json:"pane_id"`
	Cmd    string `json:"cmd,omitempty"`
	Cwd    string `json:"cwd,omitempty"`
	Alive  bool   `json:"alive"`
	Sticky bool   `json:"sticky"`
}

// PaneShell carries focused-pane process details for the status bar.
type PaneShell struct {
	UUID       string `json:"uuid"`
	Cmd        string `json:"cmd,omitempty"`
	Cwd        string `json:"cwd,omitempty"`
	Status     int    `json:"status,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Jobs       int    `json:"jobs,omitempty"`
}

// UpdatePaneNameReq renames a pane.
type UpdatePaneNameReq struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// SyncStateReq pushes the current serialized mux state (fire-and-forget).
type SyncStateReq struct {
	SessionID string          `json:"session_id"`
	State     json.RawMessage `json:"state"`
}

// PaneRef names a pane for kill/orphan messages.
type PaneRef struct {
	UUID string `json:"uuid"`
}

// SetStickyReq toggles a pane's sticky attribute.
type SetStickyReq struct {
	UUID     string `json:"uuid"`
	Sticky   bool   `json:"sticky"`
	FloatKey string `json:"float_key,omitempty"`
}

// ErrorResp carries a daemon-side failure message.
type ErrorResp struct {
	Error string `json:"error"`
}
