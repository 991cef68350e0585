package rewards

import (
	"context"
	"fmt"
)

// ReportClaimResult applies the settlement verdict for a ticket of epoch.
// Success makes the wallet's TicketIssued tasks Claimed; failure returns them
// to RewardPrepared so a new ticket can be issued. A report with no
// TicketIssued task to act on is rejected as InvalidState.
func (e *Engine) ReportClaimResult(ctx context.Context, wallet string, epoch uint64, outcome ClaimOutcome, externalRef string) (UserTaskState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := DecodeWallet(wallet); err != nil {
		return UserTaskState{}, e.reject("report_claim_result", err)
	}
	var target TaskStatus
	switch outcome {
	case ClaimSuccess:
		target = StatusClaimed
	case ClaimFailed:
		target = StatusRewardPrepared
	default:
		return UserTaskState{}, e.reject("report_claim_result", fmt.Errorf("%w: unknown claim outcome %q", ErrInvalidInput, outcome))
	}

	stored, ok, err := e.store.GetUserTasks(ctx, wallet)
	if err != nil {
		return UserTaskState{}, fmt.Errorf("get user tasks %s: %w", wallet, err)
	}
	if !ok {
		return UserTaskState{}, e.reject("report_claim_result", fmt.Errorf("%w: wallet %s has no tasks", ErrNotFound, wallet))
	}
	state := stored.Clone()

	moved := 0
	for i := range state.Tasks {
		t := &state.Tasks[i]
		if t.Status != StatusTicketIssued || !e.inScope(*t, epoch) {
			continue
		}
		if err := t.transition(target); err != nil {
			return UserTaskState{}, err
		}
		moved++
	}
	if moved == 0 {
		return UserTaskState{}, e.reject("report_claim_result", fmt.Errorf("%w: wallet %s has no outstanding ticket for epoch %d", ErrInvalidState, wallet, epoch))
	}
	if err := e.saveUser(ctx, &state); err != nil {
		return UserTaskState{}, err
	}
	e.recorder.ClaimReported(outcome)
	e.logger.Info("claim result reported",
		"wallet", wallet,
		"epoch", epoch,
		"outcome", string(outcome),
		"external_ref", externalRef,
		"tasks", moved,
		"total_unclaimed", state.TotalUnclaimed,
	)
	return state, nil
}
