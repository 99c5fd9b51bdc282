// Package metrics provides lightweight, lock-free counters and gauges
// for tracking the shell sessions a runshell process has run.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics across every session of a registry.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	sessionsActive atomic.Int64
	sessionsTotal  atomic.Int64
	spawnFailures  atomic.Int64
	bytesWritten   atomic.Int64
	bytesRead      atomic.Int64
	chunksRead     atomic.Int64
	errorsTotal    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened increments both the active and total counters.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionClosed decrements the active session counter.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
}

// SpawnFailed records a session whose child never started.
func (c *Collector) SpawnFailed() {
	if c == nil {
		return
	}
	c.spawnFailures.Add(1)
}

// ActiveSessions returns the current number of open sessions.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// SpawnFailures returns how many opens failed before a child started.
func (c *Collector) SpawnFailures() int64 {
	if c == nil {
		return 0
	}
	return c.spawnFailures.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesWrittenToChild records n encoded bytes sent to a child's stdin.
func (c *Collector) BytesWrittenToChild(n int64) {
	if c == nil {
		return
	}
	c.bytesWritten.Add(n)
}

// ChunkRead records one successful read of n raw bytes.
func (c *Collector) ChunkRead(n int64) {
	if c == nil {
		return
	}
	c.chunksRead.Add(1)
	c.bytesRead.Add(n)
}

// TotalBytesWritten returns total bytes written to children.
func (c *Collector) TotalBytesWritten() int64 {
	if c == nil {
		return 0
	}
	return c.bytesWritten.Load()
}

// TotalBytesRead returns total bytes read from children.
func (c *Collector) TotalBytesRead() int64 {
	if c == nil {
		return 0
	}
	return c.bytesRead.Load()
}

// TotalChunksRead returns the number of successful reads.
func (c *Collector) TotalChunksRead() int64 {
	if c == nil {
		return 0
	}
	return c.chunksRead.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	SessionsActive   int64  `json:"sessions_active"`
	SessionsTotal    int64  `json:"sessions_total"`
	SpawnFailures    int64  `json:"spawn_failures"`
	BytesWritten     int64  `json:"bytes_written"`
	BytesRead        int64  `json:"bytes_read"`
	ChunksRead       int64  `json:"chunks_read"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:         time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive: c.sessionsActive.Load(),
		SessionsTotal:  c.sessionsTotal.Load(),
		SpawnFailures:  c.spawnFailures.Load(),
		BytesWritten:   c.bytesWritten.Load(),
		BytesRead:      c.bytesRead.Load(),
		ChunksRead:     c.chunksRead.Load(),
		ErrorsTotal:    c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
