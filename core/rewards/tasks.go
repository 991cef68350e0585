package rewards

import (
	"context"
	"fmt"
)

// GetOrInitTasks returns the wallet's aggregate, creating it from the current
// registry (all NotStarted, no reward) on first access.
func (e *Engine) GetOrInitTasks(ctx context.Context, wallet string) (UserTaskState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := DecodeWallet(wallet); err != nil {
		return UserTaskState{}, e.reject("get_or_init_tasks", err)
	}
	state, dirty, err := e.loadUser(ctx, wallet)
	if err != nil {
		return UserTaskState{}, err
	}
	if dirty {
		if err := e.saveUser(ctx, &state); err != nil {
			return UserTaskState{}, err
		}
		e.logger.Debug("user tasks materialized", "wallet", wallet, "tasks", len(state.Tasks))
	}
	return state, nil
}

// StartTask moves a NotStarted task to InProgress.
func (e *Engine) StartTask(ctx context.Context, wallet, taskID string) (UserTaskState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, task, _, err := e.userTask(ctx, "start_task", wallet, taskID)
	if err != nil {
		return UserTaskState{}, err
	}
	if err := task.transition(StatusInProgress); err != nil {
		return UserTaskState{}, e.reject("start_task", err)
	}
	if err := e.saveUser(ctx, &state); err != nil {
		return UserTaskState{}, err
	}
	e.logger.Info("task started", "wallet", wallet, "taskid", taskID)
	return state, nil
}

// CompleteTask moves a NotStarted or InProgress task to Completed, pinning
// the registry reward as of now.
func (e *Engine) CompleteTask(ctx context.Context, wallet, taskID, evidence string, ts uint64) (UserTaskState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, task, def, err := e.userTask(ctx, "complete_task", wallet, taskID)
	if err != nil {
		return UserTaskState{}, err
	}
	if err := task.transition(StatusCompleted); err != nil {
		return UserTaskState{}, e.reject("complete_task", err)
	}
	task.RewardAmount = def.Reward
	task.Evidence = evidence
	task.CompletedAt = ts
	if err := e.saveUser(ctx, &state); err != nil {
		return UserTaskState{}, err
	}
	e.recorder.TaskCompleted("manual")
	e.logger.Info("task completed", "wallet", wallet, "taskid", taskID, "reward", def.Reward)
	return state, nil
}

// userTask validates the wallet, loads its aggregate and locates taskID.
// The returned task points into the returned state.
func (e *Engine) userTask(ctx context.Context, op, wallet, taskID string) (UserTaskState, *TaskDetail, TaskDefinition, error) {
	if _, err := DecodeWallet(wallet); err != nil {
		return UserTaskState{}, nil, TaskDefinition{}, e.reject(op, err)
	}
	def, ok, err := e.store.GetTaskDefinition(ctx, taskID)
	if err != nil {
		return UserTaskState{}, nil, TaskDefinition{}, fmt.Errorf("get task definition %s: %w", taskID, err)
	}
	if !ok {
		return UserTaskState{}, nil, TaskDefinition{}, e.reject(op, fmt.Errorf("%w: task %s", ErrNotFound, taskID))
	}
	state, _, err := e.loadUser(ctx, wallet)
	if err != nil {
		return UserTaskState{}, nil, TaskDefinition{}, err
	}
	task := state.find(taskID)
	if task == nil {
		return UserTaskState{}, nil, TaskDefinition{}, fmt.Errorf("%w: registry task %s missing from wallet %s", ErrCorrupt, taskID, wallet)
	}
	return state, task, def, nil
}
