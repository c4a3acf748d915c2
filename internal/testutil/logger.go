// Package testutil provides shared helpers for package tests.
package testutil

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// LogBuffer collects text log lines so tests can assert on what was logged.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewRecordingLogger returns a debug-level text logger writing to a LogBuffer
// and to t.Log().
func NewRecordingLogger(t testing.TB) (*slog.Logger, *LogBuffer) {
	t.Helper()
	lb := &LogBuffer{}
	h := slog.NewTextHandler(recordingWriter{lb: lb, t: t}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h), lb
}

type recordingWriter struct {
	lb *LogBuffer
	t  testing.TB
}

func (w recordingWriter) Write(p []byte) (int, error) {
	w.lb.mu.Lock()
	defer w.lb.mu.Unlock()
	w.t.Log(string(p))
	return w.lb.buf.Write(p)
}

// Lines returns the logged lines that contain every one of substrs.
func (b *LogBuffer) Lines(substrs ...string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []string
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		match := true
		for _, s := range substrs {
			if !strings.Contains(line, s) {
				match = false
				break
			}
		}
		if match {
			out = append(out, line)
		}
	}
	return out
}
