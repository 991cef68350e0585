package rewards_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"rewards-backend/core/rewards"
	store "rewards-backend/storage/rewards"
)

var testNow = time.Unix(1_700_000_000, 0)

func newTestEngine(t *testing.T, opts ...rewards.Option) (*rewards.Engine, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	base := []rewards.Option{
		rewards.WithAuthorizer(rewards.AuthorizerFunc(func(context.Context) bool { return true })),
		rewards.WithClock(func() time.Time { return testNow }),
		rewards.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return rewards.NewEngine(s, append(base, opts...)...), s
}

func defineTasks(t *testing.T, e *rewards.Engine, defs ...rewards.TaskDefinition) {
	t.Helper()
	require.NoError(t, e.DefineTasks(context.Background(), defs))
}

func requireTotalInvariant(t *testing.T, st rewards.UserTaskState) {
	t.Helper()
	var want uint64
	for _, task := range st.Tasks {
		if task.Status == rewards.StatusRewardPrepared || task.Status == rewards.StatusTicketIssued {
			want += task.RewardAmount
		}
	}
	require.Equal(t, want, st.TotalUnclaimed)
}

func taskStatus(t *testing.T, st rewards.UserTaskState, taskID string) rewards.TaskDetail {
	t.Helper()
	for _, task := range st.Tasks {
		if task.TaskID == taskID {
			return task
		}
	}
	t.Fatalf("task %s not in state", taskID)
	return rewards.TaskDetail{}
}

func TestSingleWalletLifecycle(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	w1 := testWallet(1)
	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T1", Reward: 100})

	st, err := e.CompleteTask(ctx, w1, "T1", "proof-url", 42)
	require.NoError(t, err)
	task := taskStatus(t, st, "T1")
	require.Equal(t, rewards.StatusCompleted, task.Status)
	require.Equal(t, uint64(100), task.RewardAmount)
	require.Equal(t, uint64(42), task.CompletedAt)
	require.Equal(t, "proof-url", task.Evidence)
	require.Zero(t, st.TotalUnclaimed)

	snap, err := e.BuildSnapshot(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.LeafCount)
	require.Equal(t, uint64(testNow.UnixNano()), snap.CreatedAt)
	key, err := rewards.DecodeWallet(w1)
	require.NoError(t, err)
	require.Equal(t, rewards.LeafHash(1, 0, key, 100), snap.Root)

	entry, err := e.LeafFor(ctx, 1, w1)
	require.NoError(t, err)
	require.Equal(t, rewards.ClaimEntry{Epoch: 1, Index: 0, Wallet: w1, Amount: 100}, entry)

	st, err = e.GetOrInitTasks(ctx, w1)
	require.NoError(t, err)
	require.Equal(t, rewards.StatusRewardPrepared, taskStatus(t, st, "T1").Status)
	require.Equal(t, uint64(1), taskStatus(t, st, "T1").PreparedEpoch)
	require.Equal(t, uint64(100), st.TotalUnclaimed)

	ticket, err := e.IssueTicket(ctx, w1)
	require.NoError(t, err)
	require.Empty(t, ticket.Proof)
	require.Equal(t, uint64(100), ticket.Amount)
	require.Equal(t, uint64(1), ticket.Epoch)
	require.Equal(t, snap.Root, ticket.Root)
	require.True(t, ticket.Verify())

	st, err = e.ReportClaimResult(ctx, w1, 1, rewards.ClaimSuccess, "sig-1")
	require.NoError(t, err)
	require.Equal(t, rewards.StatusClaimed, taskStatus(t, st, "T1").Status)
	require.Zero(t, st.TotalUnclaimed)
}

func TestBuildSnapshotTwiceFails(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T1", Reward: 100})
	_, err := e.CompleteTask(ctx, testWallet(1), "T1", "", 1)
	require.NoError(t, err)

	_, err = e.BuildSnapshot(ctx, 1)
	require.NoError(t, err)
	_, err = e.BuildSnapshot(ctx, 1)
	require.ErrorIs(t, err, rewards.ErrAlreadyExists)
}

func TestBuildSnapshotWithoutRewardsIsEmpty(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)
	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T1", Reward: 0})
	_, err := e.CompleteTask(ctx, testWallet(1), "T1", "", 1)
	require.NoError(t, err)

	_, err = e.BuildSnapshot(ctx, 1)
	require.ErrorIs(t, err, rewards.ErrEmpty)

	_, ok, err := s.GetEpoch(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAdminOperationsRequireAuthorization(t *testing.T) {
	ctx := context.Background()
	e := rewards.NewEngine(store.NewMemoryStore(), rewards.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err := e.DefineTasks(ctx, []rewards.TaskDefinition{{TaskID: "T1", Reward: 1}})
	require.ErrorIs(t, err, rewards.ErrPermissionDenied)
	_, err = e.BuildSnapshot(ctx, 1)
	require.ErrorIs(t, err, rewards.ErrPermissionDenied)

	tasks, err := e.ListTasks(ctx)
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestDefineTasksRejectsEmptyID(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.DefineTasks(context.Background(), []rewards.TaskDefinition{{TaskID: "ok"}, {TaskID: "  "}})
	require.ErrorIs(t, err, rewards.ErrInvalidInput)

	tasks, err := e.ListTasks(context.Background())
	require.NoError(t, err)
	require.Empty(t, tasks)
}

func TestIssueTicketWithoutLeafIsNotFound(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T1", Reward: 100})
	_, err := e.GetOrInitTasks(ctx, testWallet(2))
	require.NoError(t, err)

	_, err = e.IssueTicket(ctx, testWallet(2))
	require.ErrorIs(t, err, rewards.ErrNotFound)
}

func TestIssueTicketTwiceIsInvalidState(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	w1 := testWallet(1)
	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T1", Reward: 100})
	_, err := e.CompleteTask(ctx, w1, "T1", "", 1)
	require.NoError(t, err)
	_, err = e.BuildSnapshot(ctx, 1)
	require.NoError(t, err)

	_, err = e.IssueTicket(ctx, w1)
	require.NoError(t, err)
	_, err = e.IssueTicket(ctx, w1)
	require.ErrorIs(t, err, rewards.ErrInvalidState)
}

func TestFailedClaimAllowsReissue(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	w1 := testWallet(1)
	defineTasks(t, e,
		rewards.TaskDefinition{TaskID: "T1", Reward: 100},
		rewards.TaskDefinition{TaskID: "T2", Reward: 50},
	)
	_, err := e.CompleteTask(ctx, w1, "T1", "", 1)
	require.NoError(t, err)
	_, err = e.CompleteTask(ctx, w1, "T2", "", 2)
	require.NoError(t, err)
	_, err = e.BuildSnapshot(ctx, 1)
	require.NoError(t, err)

	first, err := e.IssueTicket(ctx, w1)
	require.NoError(t, err)
	require.Equal(t, uint64(150), first.Amount)

	st, err := e.ReportClaimResult(ctx, w1, 1, rewards.ClaimFailed, "sig-x")
	require.NoError(t, err)
	require.Equal(t, rewards.StatusRewardPrepared, taskStatus(t, st, "T1").Status)
	require.Equal(t, uint64(150), st.TotalUnclaimed)

	// Nothing is outstanding any more.
	_, err = e.ReportClaimResult(ctx, w1, 1, rewards.ClaimFailed, "sig-x")
	require.ErrorIs(t, err, rewards.ErrInvalidState)

	second, err := e.IssueTicket(ctx, w1)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestRepeatedClaimSuccessIsInvalidState(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	w1 := testWallet(1)
	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T1", Reward: 100})
	_, err := e.CompleteTask(ctx, w1, "T1", "", 1)
	require.NoError(t, err)
	_, err = e.BuildSnapshot(ctx, 1)
	require.NoError(t, err)
	_, err = e.IssueTicket(ctx, w1)
	require.NoError(t, err)

	st, err := e.ReportClaimResult(ctx, w1, 1, rewards.ClaimSuccess, "sig-1")
	require.NoError(t, err)
	require.Equal(t, rewards.StatusClaimed, taskStatus(t, st, "T1").Status)

	_, err = e.ReportClaimResult(ctx, w1, 1, rewards.ClaimSuccess, "sig-1")
	require.ErrorIs(t, err, rewards.ErrInvalidState)
	_, err = e.ReportClaimResult(ctx, w1, 1, rewards.ClaimFailed, "sig-1")
	require.ErrorIs(t, err, rewards.ErrInvalidState)

	st, err = e.GetOrInitTasks(ctx, w1)
	require.NoError(t, err)
	require.Equal(t, rewards.StatusClaimed, taskStatus(t, st, "T1").Status)
	require.Zero(t, st.TotalUnclaimed)
}

func TestReportClaimResultErrors(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.ReportClaimResult(ctx, testWallet(9), 1, rewards.ClaimSuccess, "")
	require.ErrorIs(t, err, rewards.ErrNotFound)

	_, err = e.ReportClaimResult(ctx, "nope", 1, rewards.ClaimSuccess, "")
	require.ErrorIs(t, err, rewards.ErrInvalidAddress)

	_, err = e.ReportClaimResult(ctx, testWallet(9), 1, rewards.ClaimOutcome("maybe"), "")
	require.ErrorIs(t, err, rewards.ErrInvalidInput)
}

func TestCompleteTaskErrors(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	w1 := testWallet(1)
	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T1", Reward: 100})

	_, err := e.CompleteTask(ctx, w1, "missing", "", 1)
	require.ErrorIs(t, err, rewards.ErrNotFound)

	_, err = e.CompleteTask(ctx, "not-a-wallet", "T1", "", 1)
	require.ErrorIs(t, err, rewards.ErrInvalidAddress)

	_, err = e.CompleteTask(ctx, w1, "T1", "", 1)
	require.NoError(t, err)
	_, err = e.CompleteTask(ctx, w1, "T1", "", 2)
	require.ErrorIs(t, err, rewards.ErrInvalidState)

	_, err = e.StartTask(ctx, w1, "T1")
	require.ErrorIs(t, err, rewards.ErrInvalidState)
}

func TestStartThenCompleteTask(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	w1 := testWallet(1)
	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T1", Reward: 7})

	st, err := e.StartTask(ctx, w1, "T1")
	require.NoError(t, err)
	require.Equal(t, rewards.StatusInProgress, taskStatus(t, st, "T1").Status)
	require.Zero(t, taskStatus(t, st, "T1").RewardAmount)

	st, err = e.CompleteTask(ctx, w1, "T1", "", 3)
	require.NoError(t, err)
	require.Equal(t, rewards.StatusCompleted, taskStatus(t, st, "T1").Status)
	require.Equal(t, uint64(7), taskStatus(t, st, "T1").RewardAmount)
}

func TestRewardIsPinnedAtCompletion(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	w1 := testWallet(1)
	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T1", Reward: 100})
	_, err := e.CompleteTask(ctx, w1, "T1", "", 1)
	require.NoError(t, err)

	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T1", Reward: 999})
	st, err := e.GetOrInitTasks(ctx, w1)
	require.NoError(t, err)
	require.Equal(t, uint64(100), taskStatus(t, st, "T1").RewardAmount)
}

func TestGetOrInitTasksAppendsNewRegistryTasks(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	w1 := testWallet(1)
	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T1", Reward: 1})

	st, err := e.GetOrInitTasks(ctx, w1)
	require.NoError(t, err)
	require.Len(t, st.Tasks, 1)
	require.Equal(t, rewards.StatusNotStarted, st.Tasks[0].Status)
	require.Zero(t, st.Tasks[0].RewardAmount)

	defineTasks(t, e, rewards.TaskDefinition{TaskID: "T2", Reward: 2})
	st, err = e.GetOrInitTasks(ctx, w1)
	require.NoError(t, err)
	require.Len(t, st.Tasks, 2)
	require.Equal(t, "T2", st.Tasks[1].TaskID)

	_, err = e.GetOrInitTasks(ctx, "bad")
	require.ErrorIs(t, err, rewards.ErrInvalidAddress)
}

func TestRecordPaymentCompletesMatchingTask(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	w1 := testWallet(1)
	defineTasks(t, e,
		rewards.TaskDefinition{TaskID: "subscribe", Reward: 30, PayFor: "ai_subscription"},
		rewards.TaskDefinition{TaskID: "other", Reward: 5},
	)

	rec, err := e.RecordPayment(ctx, w1, 1000, "tx-1", 77, "ai_subscription")
	require.NoError(t, err)
	require.Equal(t, uint64(0), rec.Seq)

	st, err := e.GetOrInitTasks(ctx, w1)
	require.NoError(t, err)
	task := taskStatus(t, st, "subscribe")
	require.Equal(t, rewards.StatusCompleted, task.Status)
	require.Equal(t, uint64(77), task.CompletedAt)
	require.Equal(t, uint64(30), task.RewardAmount)
	require.Equal(t, rewards.StatusNotStarted, taskStatus(t, st, "other").Status)

	// Already past NotStarted/InProgress: the ledger grows, the task does not move.
	rec, err = e.RecordPayment(ctx, w1, 1000, "tx-2", 88, "ai_subscription")
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.Seq)
	st, err = e.GetOrInitTasks(ctx, w1)
	require.NoError(t, err)
	require.Equal(t, uint64(77), taskStatus(t, st, "subscribe").CompletedAt)

	// Unknown tag is recorded without touching tasks.
	_, err = e.RecordPayment(ctx, testWallet(2), 5, "tx-3", 90, "unknown")
	require.NoError(t, err)

	payments, err := e.ListPayments(ctx, w1)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	all, err := e.ListPayments(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	got, err := e.GetPayment(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "tx-3", got.TxRef)
	_, err = e.GetPayment(ctx, 3)
	require.ErrorIs(t, err, rewards.ErrNotFound)
}

func TestRecordPaymentRejectsBadAddressWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	_, err := e.RecordPayment(ctx, "xyz", 1, "tx", 1, "")
	require.ErrorIs(t, err, rewards.ErrInvalidAddress)

	all, err := e.ListPayments(ctx, "")
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestMultiWalletEpochProofs(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	defineTasks(t, e,
		rewards.TaskDefinition{TaskID: "A", Reward: 10},
		rewards.TaskDefinition{TaskID: "B", Reward: 5},
	)

	wallets := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		w := testWallet(byte(10 + i*13))
		wallets = append(wallets, w)
		_, err := e.CompleteTask(ctx, w, "A", "", 1)
		require.NoError(t, err)
		if i%2 == 0 {
			_, err = e.CompleteTask(ctx, w, "B", "", 1)
			require.NoError(t, err)
		}
	}
	// A wallet with nothing completed is left out.
	_, err := e.GetOrInitTasks(ctx, testWallet(200))
	require.NoError(t, err)

	snap, err := e.BuildSnapshot(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(7), snap.LeafCount)

	sorted := append([]string(nil), wallets...)
	sort.Strings(sorted)
	for i, w := range sorted {
		entry, err := e.LeafFor(ctx, 3, w)
		require.NoError(t, err)
		require.Equal(t, uint64(i), entry.Index)

		key, err := rewards.DecodeWallet(w)
		require.NoError(t, err)
		proof, err := e.ProveLeaf(ctx, 3, entry.Index)
		require.NoError(t, err)
		require.Len(t, proof, 3)
		require.True(t, rewards.VerifyProof(rewards.LeafHash(3, entry.Index, key, entry.Amount), proof, snap.Root))
	}

	_, err = e.LeafFor(ctx, 3, testWallet(200))
	require.ErrorIs(t, err, rewards.ErrNotFound)
	_, err = e.ProveLeaf(ctx, 3, 7)
	require.ErrorIs(t, err, rewards.ErrNotFound)
	_, err = e.ProveLeaf(ctx, 4, 0)
	require.ErrorIs(t, err, rewards.ErrNotFound)
}

func TestProofsSurviveLaterEpochs(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, rewards.WithTicketGate(rewards.TicketGateEpoch))
	defineTasks(t, e,
		rewards.TaskDefinition{TaskID: "A", Reward: 10},
		rewards.TaskDefinition{TaskID: "B", Reward: 20},
	)
	for i := 0; i < 3; i++ {
		_, err := e.CompleteTask(ctx, testWallet(byte(i+1)), "A", "", 1)
		require.NoError(t, err)
	}
	first, err := e.BuildSnapshot(ctx, 1)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := e.CompleteTask(ctx, testWallet(byte(i+1)), "B", "", 2)
		require.NoError(t, err)
	}
	_, err = e.BuildSnapshot(ctx, 2)
	require.NoError(t, err)

	entry, err := e.LeafFor(ctx, 1, testWallet(3))
	require.NoError(t, err)
	proof, err := e.ProveLeaf(ctx, 1, entry.Index)
	require.NoError(t, err)
	key, err := rewards.DecodeWallet(testWallet(3))
	require.NoError(t, err)
	require.True(t, rewards.VerifyProof(rewards.LeafHash(1, entry.Index, key, 10), proof, first.Root))

	epochs, err := e.ListEpochs(ctx)
	require.NoError(t, err)
	require.Len(t, epochs, 2)
	latest, err := e.LatestEpoch(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), latest.Epoch)
}

func TestGlobalGateBlocksLaterEpochs(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	w1 := testWallet(1)
	defineTasks(t, e,
		rewards.TaskDefinition{TaskID: "A", Reward: 10},
		rewards.TaskDefinition{TaskID: "B", Reward: 20},
	)
	_, err := e.CompleteTask(ctx, w1, "A", "", 1)
	require.NoError(t, err)
	_, err = e.BuildSnapshot(ctx, 1)
	require.NoError(t, err)
	_, err = e.IssueTicket(ctx, w1)
	require.NoError(t, err)
	_, err = e.ReportClaimResult(ctx, w1, 1, rewards.ClaimSuccess, "")
	require.NoError(t, err)

	_, err = e.CompleteTask(ctx, w1, "B", "", 2)
	require.NoError(t, err)
	_, err = e.BuildSnapshot(ctx, 2)
	require.NoError(t, err)

	_, err = e.IssueTicket(ctx, w1)
	require.ErrorIs(t, err, rewards.ErrInvalidState)
}

func TestEpochGateScopesTickets(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, rewards.WithTicketGate(rewards.TicketGateEpoch))
	require.Equal(t, rewards.TicketGateEpoch, e.TicketGate())
	w1 := testWallet(1)
	defineTasks(t, e,
		rewards.TaskDefinition{TaskID: "A", Reward: 10},
		rewards.TaskDefinition{TaskID: "B", Reward: 20},
	)
	_, err := e.CompleteTask(ctx, w1, "A", "", 1)
	require.NoError(t, err)
	_, err = e.BuildSnapshot(ctx, 1)
	require.NoError(t, err)
	_, err = e.IssueTicket(ctx, w1)
	require.NoError(t, err)
	_, err = e.ReportClaimResult(ctx, w1, 1, rewards.ClaimSuccess, "")
	require.NoError(t, err)

	_, err = e.CompleteTask(ctx, w1, "B", "", 2)
	require.NoError(t, err)
	_, err = e.BuildSnapshot(ctx, 2)
	require.NoError(t, err)

	ticket, err := e.IssueTicket(ctx, w1)
	require.NoError(t, err)
	require.Equal(t, uint64(2), ticket.Epoch)
	require.Equal(t, uint64(20), ticket.Amount)

	st, err := e.GetOrInitTasks(ctx, w1)
	require.NoError(t, err)
	require.Equal(t, rewards.StatusClaimed, taskStatus(t, st, "A").Status)
	require.Equal(t, rewards.StatusTicketIssued, taskStatus(t, st, "B").Status)
	require.Equal(t, uint64(20), st.TotalUnclaimed)

	_, err = e.IssueTicket(ctx, w1)
	require.ErrorIs(t, err, rewards.ErrInvalidState)
}

func TestTotalUnclaimedInvariantAcrossOperations(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	w1, w2 := testWallet(1), testWallet(2)
	defineTasks(t, e,
		rewards.TaskDefinition{TaskID: "A", Reward: 10},
		rewards.TaskDefinition{TaskID: "B", Reward: 20, PayFor: "plan"},
		rewards.TaskDefinition{TaskID: "C", Reward: 40},
	)

	steps := []func() (rewards.UserTaskState, error){
		func() (rewards.UserTaskState, error) { return e.GetOrInitTasks(ctx, w1) },
		func() (rewards.UserTaskState, error) { return e.StartTask(ctx, w1, "C") },
		func() (rewards.UserTaskState, error) { return e.CompleteTask(ctx, w1, "A", "", 1) },
		func() (rewards.UserTaskState, error) {
			if _, err := e.RecordPayment(ctx, w1, 9, "tx", 2, "plan"); err != nil {
				return rewards.UserTaskState{}, err
			}
			return e.GetOrInitTasks(ctx, w1)
		},
		func() (rewards.UserTaskState, error) { return e.CompleteTask(ctx, w2, "C", "", 3) },
		func() (rewards.UserTaskState, error) {
			if _, err := e.BuildSnapshot(ctx, 1); err != nil {
				return rewards.UserTaskState{}, err
			}
			return e.GetOrInitTasks(ctx, w1)
		},
		func() (rewards.UserTaskState, error) { return e.CompleteTask(ctx, w1, "C", "", 4) },
		func() (rewards.UserTaskState, error) {
			if _, err := e.IssueTicket(ctx, w1); err != nil {
				return rewards.UserTaskState{}, err
			}
			return e.GetOrInitTasks(ctx, w1)
		},
		func() (rewards.UserTaskState, error) { return e.ReportClaimResult(ctx, w1, 1, rewards.ClaimFailed, "") },
		func() (rewards.UserTaskState, error) {
			if _, err := e.IssueTicket(ctx, w1); err != nil {
				return rewards.UserTaskState{}, err
			}
			return e.GetOrInitTasks(ctx, w1)
		},
		func() (rewards.UserTaskState, error) { return e.ReportClaimResult(ctx, w1, 1, rewards.ClaimSuccess, "") },
	}
	for i, step := range steps {
		st, err := step()
		require.NoError(t, err, "step %d", i)
		requireTotalInvariant(t, st)
	}

	st, err := e.GetOrInitTasks(ctx, w1)
	require.NoError(t, err)
	require.Equal(t, rewards.StatusClaimed, taskStatus(t, st, "A").Status)
	require.Equal(t, rewards.StatusClaimed, taskStatus(t, st, "B").Status)
	require.Equal(t, rewards.StatusCompleted, taskStatus(t, st, "C").Status)

	other, err := e.GetOrInitTasks(ctx, w2)
	require.NoError(t, err)
	require.Equal(t, uint64(40), other.TotalUnclaimed)
	requireTotalInvariant(t, other)
}

func TestLatestEpochBeforeFirstBuild(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.LatestEpoch(context.Background())
	require.ErrorIs(t, err, rewards.ErrNotFound)
	_, err = e.GetEpoch(context.Background(), 1)
	require.ErrorIs(t, err, rewards.ErrNotFound)
}
