// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: Client configuration, loaded from a JSON file with flag-friendly
// defaults.

// Package config loads the client's settings. Settings live in
// xpra-client/config.json under the user config directory; missing files
// and missing keys fall back to defaults so a bare invocation works.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const configName = "config.json"

// Config is the full set of client settings.
type Config struct {
	// Address of the xpra server, host:port.
	Address string `json:"address"`

	// Compression asks the server for "lz4", "zlib", or "none".
	Compression string `json:"compression"`

	// MaxPayload caps a single packet's payload in bytes. Zero keeps
	// the built-in limit.
	MaxPayload int `json:"max_payload,omitempty"`

	// PingInterval is how often the client expects server pings before
	// it considers the connection dead. Zero disables the watchdog.
	PingInterval Duration `json:"ping_interval,omitempty"`

	// StatePath is the geometry database. Empty places it next to the
	// config file.
	StatePath string `json:"state_path,omitempty"`
}

// Duration marshals as a string like "30s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %v", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the settings used when no config file exists.
func Default() Config {
	return Config{
		Address:      "127.0.0.1:10000",
		Compression:  "lz4",
		PingInterval: Duration(60 * time.Second),
	}
}

func configRoot() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "xpra-client"), nil
}

// Path returns the location of the config file.
func Path() (string, error) {
	root, err := configRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, configName), nil
}

// Load reads the config file at path, or the default location when path
// is empty. A missing file yields Default() without error.
func Load(path string) (Config, error) {
	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			return Default(), err
		}
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("config: %s: %v", path, err)
	}
	return cfg, cfg.validate()
}

// Save writes the config file, creating the directory as needed.
func (c Config) Save(path string) error {
	if err := c.validate(); err != nil {
		return err
	}
	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (c Config) validate() error {
	switch c.Compression {
	case "lz4", "zlib", "none":
	default:
		return fmt.Errorf("config: unknown compression %q", c.Compression)
	}
	if c.MaxPayload < 0 {
		return fmt.Errorf("config: negative max_payload %d", c.MaxPayload)
	}
	return nil
}

// DatabasePath resolves StatePath, defaulting to geometry.db beside the
// config file.
func (c Config) DatabasePath() (string, error) {
	if c.StatePath != "" {
		return c.StatePath, nil
	}
	root, err := configRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "geometry.db"), nil
}
