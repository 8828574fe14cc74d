package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Retention bounds how long and how many analysis results are kept.
type Retention struct {
	MaxAge       time.Duration // results older than this are removed
	KeepPerGraph int           // newest N kept per graph, 0 disables the cap
}

// Sweeper periodically prunes stored analysis results so the result store
// cannot grow without bound.
type Sweeper struct {
	store     Store
	retention Retention
	interval  time.Duration
	logger    *slog.Logger
	stop      chan struct{}
	running   atomic.Bool
}

// NewSweeper creates a result retention sweeper.
func NewSweeper(store Store, retention Retention, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  time.Hour,
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// Running reports whether the sweep loop is actively running.
func (s *Sweeper) Running() bool {
	return s.running.Load()
}

// Start begins the sweep loop. Call in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	s.running.Store(true)
	defer s.running.Store(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.safeSweep(ctx)
		}
	}
}

// Stop signals the sweeper to stop.
func (s *Sweeper) Stop() {
	select {
	case s.stop <- struct{}{}:
	default:
	}
}

func (s *Sweeper) safeSweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in analysis sweeper", "panic", fmt.Sprint(r))
		}
	}()
	s.Sweep(ctx)
}

// Sweep runs one retention pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retention.MaxAge)
	removed, err := s.store.Prune(ctx, cutoff, s.retention.KeepPerGraph)
	if err != nil {
		s.logger.Warn("failed to prune analysis results", "error", err)
		return
	}
	if removed > 0 {
		ResultsPrunedTotal.Add(float64(removed))
		s.logger.Info("pruned analysis results", "removed", removed)
	}
}
