package names

import "testing"

func TestGenerateNonEmpty(t *testing.T) {
	for i := 0; i < 100; i++ {
		name := Generate()
		if len(name) < 3 {
			t.Fatalf("name too short: %q", name)
		}
		for _, r := range name {
			if r < 'a' || r > 'z' {
				t.Fatalf("unexpected rune %q in %q", r, name)
			}
		}
	}
}

func TestGenerateVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[Generate()] = true
	}
	if len(seen) < 2 {
		t.Fatalf("generator produced a single name %v", seen)
	}
}
