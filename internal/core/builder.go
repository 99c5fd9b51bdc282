package core

import (
	"io"
	"strings"

	"runshell/config"
	"runshell/internal/host"
	"runshell/internal/metrics"
	"runshell/util"
)

// Build constructs the appropriate Mode from the given configuration.
// Both modes share one Host, reporting into m (which may be nil).
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	opts := cfg.HostOptions(logger)
	opts.Metrics = m
	h := host.New(opts)

	if cfg.Interactive {
		return buildInteractive(cfg, h, logger), nil
	}
	return buildRun(cfg, h, logger), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildRun(cfg *config.Config, h *host.Host, logger *util.Logger) *RunMode {
	m := &RunMode{
		Host:        h,
		Application: cfg.Application,
		CommandLine: cfg.CommandLine,
		Stderr:      cfg.Stderr,
		Logger:      logger,
	}
	if cfg.Input != "" {
		m.Input = strings.NewReader(cfg.Input)
	}
	return m
}

func buildInteractive(cfg *config.Config, h *host.Host, logger *util.Logger) *InteractiveMode {
	return &InteractiveMode{
		Host:         h,
		CloseTimeout: cfg.CloseTimeout,
		Logger:       logger,
	}
}

// WithInput sets the reader a RunMode feeds to the child.  Other modes
// are returned unchanged.
func WithInput(m Mode, r io.Reader) Mode {
	if rm, ok := m.(*RunMode); ok && rm.Input == nil {
		rm.Input = r
	}
	return m
}
