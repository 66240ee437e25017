package ses

import (
	"bytes"
	"encoding/json"
	"net"
	"testing"
)

func TestMsgRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte(`{"session_id":"abc"}`)
	if err := WriteMsg(&buf, MsgRegister, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	msgType, got, err := ReadMsg(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != MsgRegister || !bytes.Equal(got, payload) {
		t.Fatalf("got type %d payload %q", msgType, got)
	}
}

func TestMsgEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMsg(&buf, MsgPing, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	msgType, payload, err := ReadMsg(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != MsgPing || len(payload) != 0 {
		t.Fatalf("got %d/%q", msgType, payload)
	}
}

func TestMsgRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{MsgPing, 0xFF, 0xFF, 0xFF, 0xFF})
	if _, _, err := ReadMsg(&buf); err == nil {
		t.Fatalf("oversized frame must be rejected")
	}
}

func TestVTFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVTFrame(&buf, 42, []byte("pty bytes")); err != nil {
		t.Fatalf("write: %v", err)
	}
	paneID, payload, err := ReadVTFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if paneID != 42 || string(payload) != "pty bytes" {
		t.Fatalf("got %d/%q", paneID, payload)
	}
}

func TestVTFrameZeroLengthIsEOFMarker(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteVTFrame(&buf, 7, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	paneID, payload, err := ReadVTFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if paneID != 7 || len(payload) != 0 {
		t.Fatalf("got %d/%q", paneID, payload)
	}
}

// The sync request discipline must drain fire-and-forget acks that arrive
// before the real response.
func TestSyncRequestSkipsAcks(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := &Client{Ctl: client}

	done := make(chan error, 1)
	go func() {
		// Server: read the request, then send two stale acks, an
		// undersized pane_info ack, and finally the real response.
		if _, _, err := ReadMsg(server); err != nil {
			done <- err
			return
		}
		WriteJSON(server, MsgOK, struct{}{})
		WriteMsg(server, MsgGetPaneCwd, []byte(`"/tmp"`))
		WriteMsg(server, MsgPaneInfo, []byte(`{}`))
		done <- WriteJSON(server, MsgCreatePane, CreatePaneResp{PaneID: 9, UUID: "u"})
	}()

	resp, err := c.CreatePane(CreatePaneReq{Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.PaneID != 9 || resp.UUID != "u" {
		t.Fatalf("resp = %+v", resp)
	}
	if err := <-done; err != nil {
		t.Fatalf("server: %v", err)
	}
}

func TestSyncRequestErrorResponse(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := &Client{Ctl: client}

	go func() {
		ReadMsg(server)
		WriteJSON(server, MsgError, ErrorResp{Error: "no such pane"})
	}()
	if _, err := c.AdoptPane("nope"); err == nil {
		t.Fatalf("daemon error must surface")
	}
}

func TestPayloadStructsRoundTrip(t *testing.T) {
	in := DetachReq{SessionID: "s", State: json.RawMessage(`{"tabs":[]}`)}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out DetachReq
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.SessionID != "s" || string(out.State) != `{"tabs":[]}` {
		t.Fatalf("got %+v", out)
	}
}
