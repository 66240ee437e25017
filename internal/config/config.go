// Package config loads the hexe config file and watches it for changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level config file schema.
type Config struct {
	Status    StatusConfig    `yaml:"status"`
	Confirm   ConfirmConfig   `yaml:"confirm"`
	Floats    FloatConfig     `yaml:"floats"`
	Selection SelectionConfig `yaml:"selection"`
	Keybinds  []Keybind       `yaml:"keybinds"`
}

// StatusConfig controls the status bar and border styling.
type StatusConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BorderStyle string `yaml:"border_style"` // "rounded" or "square"
	Shadow      bool   `yaml:"shadow"`
}

// ConfirmConfig gates destructive actions behind confirm popups.
type ConfirmConfig struct {
	Exit   bool `yaml:"exit"`
	Detach bool `yaml:"detach"`
	Close  bool `yaml:"close"`
}

// FloatConfig holds default float placement percentages.
type FloatConfig struct {
	WidthPct  int `yaml:"width_pct"`
	HeightPct int `yaml:"height_pct"`
	PosXPct   int `yaml:"pos_x_pct"`
	PosYPct   int `yaml:"pos_y_pct"`
	PadX      int `yaml:"pad_x"`
	PadY      int `yaml:"pad_y"`
}

// SelectionConfig controls mouse selection behavior.
type SelectionConfig struct {
	// OverrideMods names the modifier that forces selection even when the
	// pane is in alt-screen ("shift", "alt", "ctrl").
	OverrideMods string `yaml:"override_mods"`
}

// Keybind is one bind entry. Mods and Key are parsed by the keybind
// dispatcher; When is press|release|repeat|double_tap|hold; Context is
// split|float|any.
type Keybind struct {
	Mods        string `yaml:"mods"`
	Key         string `yaml:"key"`
	When        string `yaml:"when"`
	Context     string `yaml:"context"`
	Action      string `yaml:"action"`
	Arg         string `yaml:"arg"`
	HoldMs      int    `yaml:"hold_ms"`
	DoubleTapMs int    `yaml:"double_tap_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Status: StatusConfig{
			Enabled:     true,
			BorderStyle: "rounded",
			Shadow:      true,
		},
		Confirm: ConfirmConfig{
			Exit:  true,
			Close: true,
		},
		Floats: FloatConfig{
			WidthPct:  60,
			HeightPct: 60,
			PosXPct:   50,
			PosYPct:   50,
		},
		Selection: SelectionConfig{
			OverrideMods: "shift",
		},
		Keybinds: []Keybind{
			{Mods: "alt", Key: "enter", When: "press", Context: "any", Action: "split_h"},
			{Mods: "alt+shift", Key: "enter", When: "press", Context: "any", Action: "split_v"},
			{Mods: "alt", Key: "t", When: "press", Context: "any", Action: "tab_new"},
			{Mods: "alt", Key: "n", When: "press", Context: "any", Action: "tab_next"},
			{Mods: "alt", Key: "p", When: "press", Context: "any", Action: "tab_prev"},
			{Mods: "alt", Key: "w", When: "press", Context: "any", Action: "tab_close"},
			{Mods: "alt", Key: "d", When: "press", Context: "any", Action: "mux_detach"},
			{Mods: "alt", Key: "q", When: "press", Context: "any", Action: "mux_quit"},
			{Mods: "alt", Key: "o", When: "press", Context: "any", Action: "pane_disown"},
			{Mods: "alt", Key: "a", When: "press", Context: "any", Action: "pane_adopt"},
			{Mods: "alt", Key: "up", When: "press", Context: "any", Action: "focus_move", Arg: "up"},
			{Mods: "alt", Key: "down", When: "press", Context: "any", Action: "focus_move", Arg: "down"},
			{Mods: "alt", Key: "left", When: "press", Context: "any", Action: "focus_move", Arg: "left"},
			{Mods: "alt", Key: "right", When: "press", Context: "any", Action: "focus_move", Arg: "right"},
			{Mods: "alt", Key: "f", When: "press", Context: "any", Action: "float_toggle", Arg: "f"},
			{Mods: "alt+shift", Key: "up", When: "press", Context: "float", Action: "float_nudge", Arg: "up"},
			{Mods: "alt+shift", Key: "down", When: "press", Context: "float", Action: "float_nudge", Arg: "down"},
			{Mods: "alt+shift", Key: "left", When: "press", Context: "float", Action: "float_nudge", Arg: "left"},
			{Mods: "alt+shift", Key: "right", When: "press", Context: "float", Action: "float_nudge", Arg: "right"},
		},
	}
}

// Dir returns the hexe config directory: HEXE_DIR or ~/.hexe.
func Dir() string {
	if dir := os.Getenv("HEXE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, ".hexe")
}

// FilePath returns the config file path inside Dir.
func FilePath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads and merges the config file over defaults. A missing file
// returns defaults with a nil error; a malformed file returns defaults
// plus the parse error so the caller can surface it as a notification.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default(), fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Keybinds) == 0 {
		cfg.Keybinds = Default().Keybinds
	}
	return cfg, nil
}
