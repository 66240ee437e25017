package statusbar

import (
	"strings"
	"testing"
	"unicode/utf8"

	"hexe/internal/cellbuf"
	"hexe/internal/termstyle"
)

func rowString(buf *cellbuf.Buffer, row int) string {
	var b strings.Builder
	for x := 0; x < buf.W; x++ {
		b.WriteRune(buf.Get(x, row).R)
	}
	return b.String()
}

// cellIndex returns the cell column where sub starts in a rowString row,
// or -1. Glyphs such as the tab arrows are multi-byte, so the byte offset
// from strings.Index is converted to a rune (cell) count.
func cellIndex(row, sub string) int {
	i := strings.Index(row, sub)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(row[:i])
}

func testBar(tabs ...string) *Bar {
	b := &Bar{Glyphs: termstyle.Tabs, ActiveStyle: "\033[7m", InactiveStyle: ""}
	for i, name := range tabs {
		b.Tabs = append(b.Tabs, TabInfo{Name: name, Active: i == 0})
	}
	return b
}

func TestTabsCenteredOnMidpoint(t *testing.T) {
	b := testBar("1", "2")
	buf := cellbuf.New(80, 1)
	b.Render(buf, 0, 80)
	row := rowString(buf, 0)
	idx := cellIndex(row, " 1 ")
	if idx < 0 {
		t.Fatalf("tabs module missing: %q", row)
	}
	// "❮ 1 │ 2 ❯" is 9 cells; centered start is 40 - 4 = 36, so " 1 "
	// begins at 37.
	if idx != 37 {
		t.Fatalf("tabs start at %d, want 37", idx)
	}
}

func TestLeftAndRightSections(t *testing.T) {
	b := testBar("1")
	b.Left = []Module{{Text: "LL", Priority: 5}}
	b.Right = []Module{{Text: "RR", Priority: 5}}
	buf := cellbuf.New(40, 1)
	b.Render(buf, 0, 40)
	row := rowString(buf, 0)
	if !strings.HasPrefix(row, "LL") {
		t.Fatalf("left module misplaced: %q", row)
	}
	if !strings.HasSuffix(row, "RR") {
		t.Fatalf("right module misplaced: %q", row)
	}
}

func TestLowPriorityDropsFirst(t *testing.T) {
	b := testBar("1")
	b.Left = []Module{
		{Text: "keep", Priority: 9},
		{Text: "this-one-is-very-long-and-low", Priority: 1},
	}
	buf := cellbuf.New(26, 1)
	b.Render(buf, 0, 26)
	row := rowString(buf, 0)
	if !strings.Contains(row, "keep") {
		t.Fatalf("high priority module dropped: %q", row)
	}
	if strings.Contains(row, "very-long") {
		t.Fatalf("low priority module should drop: %q", row)
	}
}

func TestActiveTabStyled(t *testing.T) {
	b := testBar("1", "2")
	buf := cellbuf.New(80, 1)
	b.Render(buf, 0, 80)
	idx := cellIndex(rowString(buf, 0), " 1 ")
	if buf.Get(idx+1, 0).Style != "\033[7m" {
		t.Fatalf("active tab should carry the active style")
	}
	idx2 := cellIndex(rowString(buf, 0), " 2 ")
	if buf.Get(idx2+1, 0).Style == "\033[7m" {
		t.Fatalf("inactive tab must not carry the active style")
	}
}
