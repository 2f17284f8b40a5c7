package core

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"commercepay/internal/config"
)

func newTestServer(t *testing.T) (*Server, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := &config.Config{Environment: "local", Build: config.BuildInfo{Version: "1.2.3", Commit: "abc123"}}

	srv, err := NewServer(cfg, logger)
	if err != nil {
		t.Fatalf("NewServer returned unexpected error: %v", err)
	}
	return srv, &buf
}

type metricsCall struct {
	method, route string
	status        int
	duration      time.Duration
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (m *recordingMetrics) RecordRequest(_ context.Context, method, route string, status int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, metricsCall{method, route, status, duration})
}

type stubProbe struct {
	name  string
	err   error
	delay time.Duration
	panic bool
}

func (p stubProbe) Name() string { return p.name }

func (p stubProbe) Check(ctx context.Context) error {
	if p.panic {
		panic("probe exploded")
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}
