package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

type fakeRunner struct {
	processed int
	err       error
	gotLimit  int
	gotNow    time.Time
}

func (f *fakeRunner) RunDue(_ context.Context, now time.Time, limit int) (int, error) {
	f.gotNow, f.gotLimit = now, limit
	return f.processed, f.err
}

func TestRunLogsProcessedCount(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter("info", &buf)
	now := time.Date(2025, 3, 12, 7, 0, 0, 0, time.UTC)
	runner := &fakeRunner{processed: 4}

	if err := run(context.Background(), runner, now, 500, logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !runner.gotNow.Equal(now) || runner.gotLimit != 500 {
		t.Fatalf("runner called with %s/%d", runner.gotNow, runner.gotLimit)
	}
	if !strings.Contains(buf.String(), `"processed":4`) || !strings.Contains(buf.String(), `"limit":50`) {
		t.Fatalf("unexpected log output %s", buf.String())
	}
}

func TestRunReturnsRunnerError(t *testing.T) {
	logger := logging.NewWithWriter("error", &bytes.Buffer{})
	boom := errors.New("list due: connection reset")

	if err := run(context.Background(), &fakeRunner{err: boom}, time.Now(), 10, logger); !errors.Is(err, boom) {
		t.Fatalf("expected runner error, got %v", err)
	}
}
