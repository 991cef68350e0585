package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	cronlib "github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"rewards-backend/core/rewards"
	"rewards-backend/scheduler"
	auth "rewards-backend/storage/auth"
	store "rewards-backend/storage/rewards"
)

func wallet(seed byte) string {
	key := make([]byte, rewards.WalletKeySize)
	for i := range key {
		key[i] = seed + byte(i)
	}
	return base58.Encode(key)
}

func newEngine(t *testing.T) *rewards.Engine {
	t.Helper()
	return rewards.NewEngine(store.NewMemoryStore(),
		rewards.WithAuthorizer(rewards.AuthorizerFunc(auth.IsAdmin)),
		rewards.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestBuildNextNumbersEpochsAndSkipsEmpty(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)
	admin := auth.System(ctx, "test")
	require.NoError(t, engine.DefineTasks(admin, []rewards.TaskDefinition{{TaskID: "T1", Reward: 100}, {TaskID: "T2", Reward: 5}}))

	s := scheduler.New(scheduler.Config{Builder: engine, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	_, built, err := s.BuildNext(ctx)
	require.NoError(t, err)
	require.False(t, built)

	_, err = engine.CompleteTask(ctx, wallet(1), "T1", "", 10)
	require.NoError(t, err)
	snap, built, err := s.BuildNext(ctx)
	require.NoError(t, err)
	require.True(t, built)
	require.Equal(t, uint64(1), snap.Epoch)

	_, err = engine.CompleteTask(ctx, wallet(1), "T2", "", 11)
	require.NoError(t, err)
	snap, built, err = s.BuildNext(ctx)
	require.NoError(t, err)
	require.True(t, built)
	require.Equal(t, uint64(2), snap.Epoch)
	require.Equal(t, uint64(1), snap.LeafCount)
}

type countingBuilder struct {
	calls chan uint64
}

func (b *countingBuilder) LatestEpoch(context.Context) (rewards.EpochSnapshot, error) {
	return rewards.EpochSnapshot{}, rewards.ErrNotFound
}

func (b *countingBuilder) BuildSnapshot(ctx context.Context, epoch uint64) (rewards.EpochSnapshot, error) {
	if !auth.IsAdmin(ctx) {
		return rewards.EpochSnapshot{}, rewards.ErrPermissionDenied
	}
	b.calls <- epoch
	return rewards.EpochSnapshot{}, rewards.ErrEmpty
}

func TestSchedulerFiresOnSchedule(t *testing.T) {
	b := &countingBuilder{calls: make(chan uint64, 4)}
	s := scheduler.New(scheduler.Config{
		Builder:  b,
		Schedule: cronlib.ConstantDelaySchedule{Delay: time.Second},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	s.Start(context.Background())
	defer s.Stop()

	select {
	case epoch := <-b.calls:
		require.Equal(t, uint64(1), epoch)
	case <-time.After(3 * time.Second):
		t.Fatalf("scheduler did not fire")
	}
}
