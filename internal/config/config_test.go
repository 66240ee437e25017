package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if !cfg.Status.Enabled || cfg.Status.BorderStyle != "rounded" {
		t.Fatalf("defaults not applied: %+v", cfg.Status)
	}
	if len(cfg.Keybinds) == 0 {
		t.Fatalf("default keybinds missing")
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "status:\n  enabled: false\n  border_style: square\nconfirm:\n  exit: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Status.Enabled || cfg.Status.BorderStyle != "square" {
		t.Fatalf("overrides not applied: %+v", cfg.Status)
	}
	if cfg.Confirm.Exit {
		t.Fatalf("confirm override not applied")
	}
	if len(cfg.Keybinds) == 0 {
		t.Fatalf("keybinds should fall back to defaults")
	}
}

func TestLoadMalformedReturnsDefaultsAndError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("status: ["), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatalf("malformed yaml should report an error")
	}
	if cfg == nil || !cfg.Status.Enabled {
		t.Fatalf("malformed yaml should still yield defaults")
	}
}

func TestKeybindSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `keybinds:
  - mods: alt
    key: x
    when: hold
    context: float
    action: float_toggle
    arg: t
    hold_ms: 400
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Keybinds) != 1 {
		t.Fatalf("expected the file's keybinds to replace defaults, got %d", len(cfg.Keybinds))
	}
	kb := cfg.Keybinds[0]
	if kb.Mods != "alt" || kb.Key != "x" || kb.When != "hold" || kb.HoldMs != 400 || kb.Arg != "t" {
		t.Fatalf("keybind parsed wrong: %+v", kb)
	}
}
