package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// fileConfig mirrors the keys accepted in a runshell TOML file:
//
//	application  = "%ComSpec%"
//	command_line = "/c dir"
//	encoding     = "windows-1252"
//	chunk_size   = 503
//	read_timeout = "5s"
//	env          = ["LANG=C"]
type fileConfig struct {
	Application  string   `toml:"application"`
	CommandLine  string   `toml:"command_line"`
	Dir          string   `toml:"dir"`
	Env          []string `toml:"env"`
	Input        string   `toml:"input"`
	Encoding     string   `toml:"encoding"`
	ChunkSize    int      `toml:"chunk_size"`
	ReadTimeout  string   `toml:"read_timeout"`
	WriteTimeout string   `toml:"write_timeout"`
	CloseTimeout string   `toml:"close_timeout"`
	Stderr       bool     `toml:"stderr"`
	Verbose      int      `toml:"verbose"`
	Stats        bool     `toml:"stats"`
}

// LoadFile overlays the TOML file at path onto cfg.  Only keys present
// in the file are applied, so defaults survive for everything else.
// Unknown keys are rejected.
func LoadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("application") {
		cfg.Application = strings.TrimSpace(raw.Application)
	}
	if meta.IsDefined("command_line") {
		cfg.CommandLine = raw.CommandLine
	}
	if meta.IsDefined("dir") {
		cfg.Dir = strings.TrimSpace(raw.Dir)
	}
	if meta.IsDefined("env") {
		cfg.Env = append(cfg.Env, raw.Env...)
	}
	if meta.IsDefined("input") {
		cfg.Input = raw.Input
	}
	if meta.IsDefined("encoding") {
		cfg.Encoding = strings.TrimSpace(raw.Encoding)
	}
	if meta.IsDefined("chunk_size") {
		cfg.ChunkSize = raw.ChunkSize
	}

	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
		{"close_timeout", raw.CloseTimeout, &cfg.CloseTimeout},
	} {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("stderr") {
		cfg.Stderr = raw.Stderr
	}
	if meta.IsDefined("verbose") {
		cfg.Verbose = raw.Verbose
	}
	if meta.IsDefined("stats") {
		cfg.Stats = raw.Stats
	}
	return nil
}
