package rewards

import (
	"context"
	"fmt"
	"strings"
)

// DefineTasks upserts registry entries by task id. Admin only.
// Rewards already pinned on user tasks are not touched.
func (e *Engine) DefineTasks(ctx context.Context, defs []TaskDefinition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireAdmin(ctx, "define_tasks"); err != nil {
		return err
	}
	cleaned := make([]TaskDefinition, len(defs))
	for i, def := range defs {
		def.TaskID = strings.TrimSpace(def.TaskID)
		def.PayFor = strings.TrimSpace(def.PayFor)
		if def.TaskID == "" {
			return e.reject("define_tasks", fmt.Errorf("%w: task %d has an empty taskid", ErrInvalidInput, i))
		}
		cleaned[i] = def
	}
	for _, def := range cleaned {
		if err := e.store.PutTaskDefinition(ctx, def); err != nil {
			return fmt.Errorf("put task definition %s: %w", def.TaskID, err)
		}
		e.logger.Info("task defined", "taskid", def.TaskID, "reward", def.Reward, "payfor", def.PayFor)
	}
	e.recorder.TasksDefined(len(cleaned))
	return nil
}

// ListTasks returns the registry ordered by task id.
func (e *Engine) ListTasks(ctx context.Context) ([]TaskDefinition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ListTaskDefinitions(ctx)
}

// RecordPayment appends a ledger entry. When payFor matches a registry task,
// the wallet's task moves to Completed with its reward pinned; a task that is
// already past Completed, or an unmatched tag, is left alone.
func (e *Engine) RecordPayment(ctx context.Context, wallet string, amount uint64, txRef string, ts uint64, payFor string) (PaymentRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := DecodeWallet(wallet); err != nil {
		return PaymentRecord{}, e.reject("record_payment", err)
	}
	payFor = strings.TrimSpace(payFor)

	var (
		match   TaskDefinition
		matched bool
	)
	if payFor != "" {
		defs, err := e.store.ListTaskDefinitions(ctx)
		if err != nil {
			return PaymentRecord{}, fmt.Errorf("list task definitions: %w", err)
		}
		for _, def := range defs {
			if def.PayFor == payFor {
				match, matched = def, true
				break
			}
		}
	}
	// Task state is saved before the ledger append; a failed save leaves the
	// ledger untouched.
	autoCompleted := false
	if matched {
		state, _, err := e.loadUser(ctx, wallet)
		if err != nil {
			return PaymentRecord{}, err
		}
		if task := state.find(match.TaskID); task != nil && (task.Status == StatusNotStarted || task.Status == StatusInProgress) {
			task.Status = StatusCompleted
			task.CompletedAt = ts
			task.RewardAmount = match.Reward
			autoCompleted = true
		}
		if err := e.saveUser(ctx, &state); err != nil {
			return PaymentRecord{}, err
		}
	}

	rec := PaymentRecord{
		Wallet:     wallet,
		AmountPaid: amount,
		TxRef:      txRef,
		Timestamp:  ts,
		PayFor:     payFor,
	}
	seq, err := e.store.AppendPayment(ctx, rec)
	if err != nil {
		return PaymentRecord{}, fmt.Errorf("append payment: %w", err)
	}
	rec.Seq = seq
	e.logger.Info("payment recorded", "seq", seq, "wallet", wallet, "amount", amount, "payfor", payFor)
	switch {
	case autoCompleted:
		e.logger.Info("task completed by payment", "wallet", wallet, "taskid", match.TaskID, "reward", match.Reward)
	case matched:
		e.logger.Debug("payment matched a task that is not completable", "wallet", wallet, "taskid", match.TaskID)
	}
	e.recorder.PaymentRecorded(autoCompleted)
	if autoCompleted {
		e.recorder.TaskCompleted("payment")
	}
	return rec, nil
}

// GetPayment returns the ledger entry with the given sequence number.
func (e *Engine) GetPayment(ctx context.Context, seq uint64) (PaymentRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok, err := e.store.GetPayment(ctx, seq)
	if err != nil {
		return PaymentRecord{}, err
	}
	if !ok {
		return PaymentRecord{}, fmt.Errorf("%w: payment %d", ErrNotFound, seq)
	}
	return rec, nil
}

// ListPayments returns ledger entries in insertion order, optionally for one wallet.
func (e *Engine) ListPayments(ctx context.Context, wallet string) ([]PaymentRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ListPayments(ctx, wallet)
}
