package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the RUNSHELL_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).  Durations accept Go
// syntax ("500ms", "2s") or a bare number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "APPLICATION"); v != "" {
		cfg.Application = v
	}
	if v := os.Getenv(EnvPrefix + "DIR"); v != "" {
		cfg.Dir = v
	}
	if v := os.Getenv(EnvPrefix + "ENV"); v != "" {
		cfg.Env = append(cfg.Env, splitList(v)...)
	}

	// I/O
	if v := os.Getenv(EnvPrefix + "ENCODING"); v != "" {
		cfg.Encoding = v
	}
	if v := envInt(EnvPrefix + "CHUNK_SIZE"); v > 0 {
		cfg.ChunkSize = v
	}
	if v, ok := envDuration(EnvPrefix + "READ_TIMEOUT"); ok {
		cfg.ReadTimeout = v
	}
	if v, ok := envDuration(EnvPrefix + "WRITE_TIMEOUT"); ok {
		cfg.WriteTimeout = v
	}
	if v, ok := envDuration(EnvPrefix + "CLOSE_TIMEOUT"); ok {
		cfg.CloseTimeout = v
	}
	if envBool(EnvPrefix + "STDERR") {
		cfg.Stderr = true
	}

	// Output
	if v := envInt(EnvPrefix + "VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool(EnvPrefix + "STATS") {
		cfg.Stats = true
	}
	if v := os.Getenv(EnvPrefix + "CONFIG"); v != "" {
		cfg.ConfigFile = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func envDuration(key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second, true
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

// splitList splits a comma or newline separated KEY=VALUE list.
func splitList(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
