package otp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type countingCleaner struct {
	calls chan struct{}
	err   error
}

func (c *countingCleaner) CleanupExpired(context.Context) (int, error) {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return 3, c.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeper_RunsImmediatelyAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := &countingCleaner{calls: make(chan struct{}, 1)}
	s := NewSweeper(c, quietLogger(), time.Hour)
	s.Start()

	select {
	case <-c.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not run on start")
	}
	s.Stop()
}

func TestSweeper_KeepsRunningAfterFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := &countingCleaner{calls: make(chan struct{}, 1), err: errors.New("scan failed")}
	s := NewSweeper(c, quietLogger(), 10*time.Millisecond)
	s.Start()

	for i := 0; i < 3; i++ {
		select {
		case <-c.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("sweep %d did not happen", i)
		}
	}
	s.Stop()
}

func TestNewSweeper_DefaultInterval(t *testing.T) {
	s := NewSweeper(&countingCleaner{}, nil, 0)
	assert.Equal(t, SweepInterval, s.interval)
}

func TestSweeper_StopTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSweeper(&countingCleaner{calls: make(chan struct{}, 1)}, quietLogger(), time.Hour)
	s.Start()
	s.Stop()
	assert.NotPanics(t, s.Stop)
}

func TestSweeper_StopWithoutStart(t *testing.T) {
	s := NewSweeper(&countingCleaner{}, quietLogger(), time.Hour)
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked without Start")
	}
}
