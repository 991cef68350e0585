// Package scheduler builds epoch snapshots on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"rewards-backend/core/rewards"
	auth "rewards-backend/storage/auth"
)

// Builder is the subset of the reward engine the scheduler drives.
type Builder interface {
	LatestEpoch(ctx context.Context) (rewards.EpochSnapshot, error)
	BuildSnapshot(ctx context.Context, epoch uint64) (rewards.EpochSnapshot, error)
}

// Config holds the dependencies for the epoch scheduler.
type Config struct {
	Builder  Builder
	Schedule cronlib.Schedule
	Logger   *slog.Logger
	Now      func() time.Time
}

// Scheduler fires BuildNext each time the schedule comes due.
type Scheduler struct {
	builder  Builder
	schedule cronlib.Schedule
	logger   *slog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		builder:  cfg.Builder,
		schedule: cfg.Schedule,
		logger:   logger,
		now:      now,
	}
}

// Start runs the loop in a background goroutine until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("epoch scheduler started", "next_run", s.schedule.Next(s.now()))
}

// Stop cancels the loop and waits for an in-flight build to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("epoch scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		wait := s.schedule.Next(s.now()).Sub(s.now())
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, _, err := s.BuildNext(ctx); err != nil {
				s.logger.Error("scheduled epoch build failed", "error", err)
			}
		}
	}
}

// BuildNext builds the epoch after the latest one (epoch 1 when none exist).
// built is false when no wallet had completed rewards.
func (s *Scheduler) BuildNext(ctx context.Context) (snap rewards.EpochSnapshot, built bool, err error) {
	ctx = auth.System(ctx, "scheduler")
	next := uint64(1)
	latest, err := s.builder.LatestEpoch(ctx)
	switch {
	case err == nil:
		next = latest.Epoch + 1
	case errors.Is(err, rewards.ErrNotFound):
	default:
		return rewards.EpochSnapshot{}, false, fmt.Errorf("latest epoch: %w", err)
	}

	snap, err = s.builder.BuildSnapshot(ctx, next)
	if errors.Is(err, rewards.ErrEmpty) {
		s.logger.Debug("scheduled epoch skipped, nothing to distribute", "epoch", next)
		return rewards.EpochSnapshot{}, false, nil
	}
	if err != nil {
		return rewards.EpochSnapshot{}, false, fmt.Errorf("build epoch %d: %w", next, err)
	}
	s.logger.Info("scheduled epoch built", "epoch", snap.Epoch, "leaves", snap.LeafCount, "root", snap.Root.String())
	return snap, true, nil
}
