package otp

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// Sweeper periodically deletes expired one-time codes.
type Sweeper struct {
	engine   cleaner
	logger   *slog.Logger
	interval time.Duration

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSweeper creates a sweeper. If interval is 0 or negative, SweepInterval is used.
func NewSweeper(engine cleaner, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = SweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		engine:   engine,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background loop. It sweeps once immediately.
func (s *Sweeper) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run()
	s.logger.Info("otp sweeper started", "interval", s.interval)
}

// Stop ends the loop and waits for an in-progress sweep to finish.
// Safe to call more than once, or without Start.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.started.Load() {
			<-s.doneCh
		}
		s.logger.Info("otp sweeper stopped")
	})
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	n, err := s.engine.CleanupExpired(ctx)
	if err != nil {
		s.logger.Error("otp sweep failed", "deleted", n, "err", err)
		return
	}
	s.logger.Debug("otp sweep completed", "deleted", n)
}
