package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Authorizer answers whether the caller carried by ctx is a privileged administrator.
type Authorizer interface {
	IsAdmin(ctx context.Context) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context) bool

func (f AuthorizerFunc) IsAdmin(ctx context.Context) bool { return f(ctx) }

var denyAll = AuthorizerFunc(func(context.Context) bool { return false })

// Recorder receives operation outcomes, typically to export metrics.
type Recorder interface {
	TasksDefined(n int)
	PaymentRecorded(autoCompleted bool)
	TaskCompleted(via string)
	SnapshotBuilt(snap EpochSnapshot, total uint64, elapsed time.Duration)
	TicketIssued(amount uint64)
	ClaimReported(outcome ClaimOutcome)
	Rejected(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) TasksDefined(int) {}
func (nopRecorder) PaymentRecorded(bool) {}
func (nopRecorder) TaskCompleted(string) {}
func (nopRecorder) SnapshotBuilt(EpochSnapshot, uint64, time.Duration) {}
func (nopRecorder) TicketIssued(uint64) {}
func (nopRecorder) ClaimReported(ClaimOutcome) {}
func (nopRecorder) Rejected(string, error) {}

// Engine implements the reward distribution operations on top of a Store.
// Calls are serialized: each one observes and commits state as if it ran alone.
type Engine struct {
	mu       sync.Mutex
	store    Store
	auth     Authorizer
	now      func() time.Time
	logger   *slog.Logger
	recorder Recorder
	gate     TicketGate
}

// Option configures an Engine.
type Option func(*Engine)

func WithAuthorizer(a Authorizer) Option { return func(e *Engine) { e.auth = a } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithRecorder(r Recorder) Option { return func(e *Engine) { e.recorder = r } }

func WithTicketGate(g TicketGate) Option { return func(e *Engine) { e.gate = g } }

// NewEngine builds an Engine. Without WithAuthorizer every admin operation is denied.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		auth:     denyAll,
		now:      time.Now,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		gate:     TicketGateGlobal,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TicketGate reports the configured gate scope.
func (e *Engine) TicketGate() TicketGate { return e.gate }

func (e *Engine) requireAdmin(ctx context.Context, op string) error {
	if e.auth.IsAdmin(ctx) {
		return nil
	}
	return e.reject(op, fmt.Errorf("%w: %s requires an administrator", ErrPermissionDenied, op))
}

func (e *Engine) reject(op string, err error) error {
	e.recorder.Rejected(op, err)
	e.logger.Warn("operation rejected", "op", op, "kind", Kind(err), "error", err)
	return err
}

// loadUser returns the wallet's aggregate, materializing it from the registry
// when absent and appending registry tasks it has not seen yet. dirty reports
// whether the returned state differs from what is stored.
func (e *Engine) loadUser(ctx context.Context, wallet string) (state UserTaskState, dirty bool, err error) {
	defs, err := e.store.ListTaskDefinitions(ctx)
	if err != nil {
		return UserTaskState{}, false, fmt.Errorf("list task definitions: %w", err)
	}
	stored, ok, err := e.store.GetUserTasks(ctx, wallet)
	if err != nil {
		return UserTaskState{}, false, fmt.Errorf("get user tasks %s: %w", wallet, err)
	}
	if ok {
		state = stored.Clone()
	} else {
		state = UserTaskState{Wallet: wallet, Tasks: make([]TaskDetail, 0, len(defs))}
		dirty = true
	}
	for _, def := range defs {
		if state.find(def.TaskID) != nil {
			continue
		}
		state.Tasks = append(state.Tasks, TaskDetail{TaskID: def.TaskID, Status: StatusNotStarted})
		dirty = true
	}
	state.recompute()
	if ok && state.TotalUnclaimed != stored.TotalUnclaimed {
		dirty = true
	}
	return state, dirty, nil
}

func (e *Engine) saveUser(ctx context.Context, state *UserTaskState) error {
	state.recompute()
	if err := e.store.PutUserTasks(ctx, *state); err != nil {
		return fmt.Errorf("put user tasks %s: %w", state.Wallet, err)
	}
	return nil
}
