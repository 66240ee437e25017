package socketdir

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestFormatParse(t *testing.T) {
	name := Format(TypeMux, "zubelle")
	if name != "mux.zubelle.sock" {
		t.Fatalf("format = %q", name)
	}
	entry, ok := Parse(name)
	if !ok || entry.Type != TypeMux || entry.Name != "zubelle" {
		t.Fatalf("parse = %+v/%v", entry, ok)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"nope", "mux.sock", ".sock", "mux.x.txt"} {
		if _, ok := Parse(bad); ok {
			t.Fatalf("%q should not parse", bad)
		}
	}
}

func TestParseNameWithDots(t *testing.T) {
	entry, ok := Parse("ses.a.b.sock")
	if !ok || entry.Type != "ses" || entry.Name != "a.b" {
		t.Fatalf("got %+v/%v", entry, ok)
	}
}

func TestResolveShortDirUnchanged(t *testing.T) {
	dir := "/tmp/hexe-test-sockets"
	if got := ResolveSocketDir(dir); got != dir {
		t.Fatalf("short dir should resolve to itself, got %q", got)
	}
}

func TestResolveLongDirShortens(t *testing.T) {
	long := filepath.Join(t.TempDir(), strings.Repeat("deeply-nested/", 10), "sockets")
	got := ResolveSocketDir(long)
	if len(filepath.Join(got, "mux.name.sock")) > 110 && got == long {
		t.Fatalf("long path was not shortened: %q", got)
	}
}

func TestListInMissingDir(t *testing.T) {
	entries, err := ListIn(filepath.Join(t.TempDir(), "absent"))
	if err != nil || entries != nil {
		t.Fatalf("missing dir should list empty, got %v/%v", entries, err)
	}
}
