package mux

import (
	"fmt"

	"hexe/internal/pop"
)

// Tab is a named layout plus tab-scoped popups and notifications.
type Tab struct {
	UUID   string
	Name   string
	Layout *Layout
	Pop    pop.Manager
}

// NewTab wraps a layout with a fresh identity.
func NewTab(name string, l *Layout) *Tab {
	return &Tab{UUID: NewUUID(), Name: name, Layout: l}
}

// DefaultTabName numbers tabs the way the status bar shows them.
func DefaultTabName(n int) string {
	return fmt.Sprintf("%d", n+1)
}
