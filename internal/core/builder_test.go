package core

import (
	"io"
	"strings"
	"testing"
	"time"

	"runshell/config"
	"runshell/internal/metrics"
	"runshell/util"
)

// TestBuild_Run verifies that Build produces a RunMode for a plain
// program configuration.
func TestBuild_Run(t *testing.T) {
	cfg := config.Default()
	cfg.Application = "/bin/ls"
	cfg.CommandLine = "-la"
	cfg.Stderr = true
	logger := util.NewLogger(0)

	mode, err := Build(cfg, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	rm, ok := mode.(*RunMode)
	if !ok {
		t.Fatalf("expected *RunMode, got %T", mode)
	}
	if rm.Application != "/bin/ls" || rm.CommandLine != "-la" || !rm.Stderr {
		t.Errorf("RunMode = %+v", rm)
	}
	if rm.Input != nil {
		t.Error("Input should be nil without --input")
	}
}

// TestBuild_RunInput verifies --input becomes the RunMode's reader.
func TestBuild_RunInput(t *testing.T) {
	cfg := config.Default()
	cfg.CommandLine = "cat"
	cfg.Input = "hello"

	mode, err := Build(cfg, util.NewLogger(0), nil)
	if err != nil {
		t.Fatal(err)
	}
	if mode.(*RunMode).Input == nil {
		t.Fatal("Input not set")
	}

	// WithInput never replaces an explicit input.
	WithInput(mode, strings.NewReader("other"))
	got, err := io.ReadAll(mode.(*RunMode).Input)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("input = %q, want %q", got, "hello")
	}
}

// TestBuild_Interactive verifies Build produces an InteractiveMode.
func TestBuild_Interactive(t *testing.T) {
	cfg := config.Default()
	cfg.Interactive = true
	cfg.CloseTimeout = 3 * time.Second
	col := metrics.New()

	mode, err := Build(cfg, util.NewLogger(0), col)
	if err != nil {
		t.Fatal(err)
	}
	im, ok := mode.(*InteractiveMode)
	if !ok {
		t.Fatalf("expected *InteractiveMode, got %T", mode)
	}
	if im.CloseTimeout != 3*time.Second {
		t.Errorf("CloseTimeout = %v", im.CloseTimeout)
	}
	if im.Host.Metrics() != col {
		t.Error("host should report into the given collector")
	}

	// WithInput leaves non-run modes alone.
	if WithInput(mode, strings.NewReader("x")) != mode {
		t.Error("WithInput changed an interactive mode")
	}
}
