package mux

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"
)

// Local IPC: a Unix stream socket taking one JSON object per connection,
// newline-terminated. Children find it through HEXE_MUX_SOCKET.

// IPCMessage is the accepted request shape.
type IPCMessage struct {
	Type    string `json:"type"` // "notify", "exit_intent"
	Message string `json:"message,omitempty"`
}

// MuxSocketEnv is the environment variable naming the mux IPC socket.
const MuxSocketEnv = "HEXE_MUX_SOCKET"

// StartIPC opens the listener and exports its path to children.
func (s *State) StartIPC(path string) error {
	if _, err := os.Stat(path); err == nil {
		os.Remove(path)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("ipc listen: %w", err)
	}
	ul := ln.(*net.UnixListener)
	f, err := ul.File()
	if err != nil {
		ln.Close()
		return fmt.Errorf("ipc fd: %w", err)
	}
	s.IPCListener = ln
	s.IPCFile = f
	os.Setenv(MuxSocketEnv, path)
	return nil
}

// TryAccept handles one waiting IPC connection without blocking; the
// caller gates it on poll readability of the listener fd.
func (s *State) TryAccept() {
	ul, ok := s.IPCListener.(*net.UnixListener)
	if !ok {
		return
	}
	ul.SetDeadline(time.Now().Add(time.Millisecond))
	conn, err := ul.Accept()
	if err != nil {
		return
	}
	s.handleIPC(conn)
}

// handleIPC reads the single request and applies it. Most requests are
// answered and closed immediately; exit_intent keeps the connection open
// until its popup resolves.
func (s *State) handleIPC(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		conn.Close()
		return
	}
	var msg IPCMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		fmt.Fprintf(conn, "{\"ok\":false,\"error\":\"bad request\"}\n")
		conn.Close()
		return
	}
	switch msg.Type {
	case "notify":
		s.Notify(msg.Message)
		fmt.Fprintf(conn, "{\"ok\":true}\n")
		conn.Close()
	case "exit_intent":
		// The reply is routed by scope when the popup resolves.
		if s.PendingPopConn != nil {
			s.PendingPopConn.Close()
		}
		conn.SetReadDeadline(time.Time{})
		s.PendingPopConn = conn
		s.PendingPopScope = "mux"
		s.OpenExitIntent()
	default:
		fmt.Fprintf(conn, "{\"ok\":false,\"error\":\"unknown type\"}\n")
		conn.Close()
	}
}

// CloseIPC tears the listener down and removes the socket file.
func (s *State) CloseIPC() {
	if s.IPCFile != nil {
		s.IPCFile.Close()
	}
	if s.IPCListener != nil {
		addr := s.IPCListener.Addr().String()
		s.IPCListener.Close()
		os.Remove(addr)
	}
}

// SendNotify delivers one notify message to the mux named by
// HEXE_MUX_SOCKET. Used by `hexe --notify` from inside a pane.
func SendNotify(message string) error {
	path := os.Getenv(MuxSocketEnv)
	if path == "" {
		return fmt.Errorf("%s not set (not inside a hexe session?)", MuxSocketEnv)
	}
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return fmt.Errorf("connect mux: %w", err)
	}
	defer conn.Close()
	data, err := json.Marshal(IPCMessage{Type: "notify", Message: message})
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return err
	}
	return nil
}
