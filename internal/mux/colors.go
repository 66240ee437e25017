package mux

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/muesli/termenv"
)

// ProbeColors caches the real terminal's colors before raw mode so pane
// OSC 10/11 queries can be answered without a round trip to the terminal.
func (s *State) ProbeColors() {
	output := termenv.NewOutput(os.Stdout)
	if fg := output.ForegroundColor(); fg != nil {
		s.OscFg = ColorToX11(fg)
	}
	if bg := output.BackgroundColor(); bg != nil {
		s.OscBg = ColorToX11(bg)
	}
	if os.Getenv("COLORFGBG") == "" {
		colorfgbg := "0;15"
		if output.HasDarkBackground() {
			colorfgbg = "15;0"
		}
		os.Setenv("COLORFGBG", colorfgbg)
	}
}

// ColorToX11 converts a termenv.Color to X11 rgb: format.
func ColorToX11(c termenv.Color) string {
	switch v := c.(type) {
	case termenv.RGBColor:
		hex := string(v)
		if len(hex) == 7 && hex[0] == '#' {
			r, _ := strconv.ParseUint(hex[1:3], 16, 8)
			g, _ := strconv.ParseUint(hex[3:5], 16, 8)
			b, _ := strconv.ParseUint(hex[5:7], 16, 8)
			return fmt.Sprintf("rgb:%04x/%04x/%04x", r*0x101, g*0x101, b*0x101)
		}
	}
	return ""
}

// forwardOSCQuery answers a pane's OSC 10/11 color query from the cached
// probe; anything else is pushed upstream with the reply proxy armed.
func (s *State) forwardOSCQuery(p *Pane) {
	if !p.OscExpect {
		return
	}
	q := p.TakeOSCQuery()
	if len(q) == 0 {
		return
	}
	answered := false
	if s.OscFg != "" && bytes.Contains(q, []byte("\033]10;?")) {
		fmt.Fprintf(paneWriter{p}, "\033]10;%s\033\\", s.OscFg)
		answered = true
	}
	if s.OscBg != "" && bytes.Contains(q, []byte("\033]11;?")) {
		fmt.Fprintf(paneWriter{p}, "\033]11;%s\033\\", s.OscBg)
		answered = true
	}
	if answered {
		p.OscExpect = false
		return
	}
	s.Out.Write(q)
	s.ArmOSCReply(p.UUID)
}

// paneWriter adapts Pane.Write for Fprintf.
type paneWriter struct {
	p *Pane
}

func (w paneWriter) Write(data []byte) (int, error) {
	if err := w.p.Write(data); err != nil {
		return 0, err
	}
	return len(data), nil
}
