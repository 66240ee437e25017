package cellbuf

import (
	"bytes"
	"fmt"
)

// Diff emits the escape-sequence delta that transforms prev into next.
// Cells are compared rune+style; each row's changed runs are preceded by a
// single cursor move, and SGR state is re-emitted only when it changes.
// A nil prev (or a size mismatch) produces a full repaint.
func Diff(prev, next *Buffer) []byte {
	var out bytes.Buffer
	full := prev == nil || prev.W != next.W || prev.H != next.H
	if full {
		out.WriteString("\033[2J")
	}

	lastStyle := "\x00" // sentinel: force the first style emission
	for y := 0; y < next.H; y++ {
		x := 0
		for x < next.W {
			if !full && next.Cells[y][x] == prev.Cells[y][x] {
				x++
				continue
			}
			// Start of a changed run.
			fmt.Fprintf(&out, "\033[%d;%dH", y+1, x+1)
			for x < next.W && (full || next.Cells[y][x] != prev.Cells[y][x]) {
				c := next.Cells[y][x]
				if c.Style != lastStyle {
					out.WriteString("\033[0m")
					out.WriteString(c.Style)
					lastStyle = c.Style
				}
				r := c.R
				if r == 0 {
					r = ' '
				}
				out.WriteRune(r)
				x++
			}
		}
	}
	if out.Len() > 0 {
		out.WriteString("\033[0m")
	}
	return out.Bytes()
}
