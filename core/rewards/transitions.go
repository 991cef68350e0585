package rewards

import "fmt"

var allowedTransitions = map[TaskStatus]map[TaskStatus]struct{}{
	StatusNotStarted: {
		StatusInProgress: {},
		StatusCompleted:  {},
	},
	StatusInProgress: {
		StatusCompleted: {},
	},
	StatusCompleted: {
		StatusRewardPrepared: {},
	},
	StatusRewardPrepared: {
		StatusTicketIssued: {},
	},
	StatusTicketIssued: {
		StatusClaimed:        {},
		StatusRewardPrepared: {}, // Settlement failure, retry.
	},
}

func canTransition(from, to TaskStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// transition moves a task to the target status or reports InvalidState.
func (d *TaskDetail) transition(to TaskStatus) error {
	if !canTransition(d.Status, to) {
		return fmt.Errorf("%w: task %s cannot move from %s to %s", ErrInvalidState, d.TaskID, d.Status, to)
	}
	d.Status = to
	return nil
}

func computeTotalUnclaimed(tasks []TaskDetail) uint64 {
	var total uint64
	for _, t := range tasks {
		if t.Status == StatusRewardPrepared || t.Status == StatusTicketIssued {
			total += t.RewardAmount
		}
	}
	return total
}

func (s *UserTaskState) recompute() {
	s.TotalUnclaimed = computeTotalUnclaimed(s.Tasks)
}

func (s *UserTaskState) find(taskID string) *TaskDetail {
	for i := range s.Tasks {
		if s.Tasks[i].TaskID == taskID {
			return &s.Tasks[i]
		}
	}
	return nil
}

// snapshotSum adds up the rewards an epoch build freezes: tasks still
// Completed plus tasks already moved to RewardPrepared for this same epoch by
// an earlier attempt that never published its metadata.
func (s *UserTaskState) snapshotSum(epoch uint64) (uint64, error) {
	var sum uint64
	for _, t := range s.Tasks {
		if !t.buildsInto(epoch) {
			continue
		}
		if sum+t.RewardAmount < sum {
			return 0, fmt.Errorf("%w: reward sum overflows for wallet %s", ErrCorrupt, s.Wallet)
		}
		sum += t.RewardAmount
	}
	return sum, nil
}

func (t TaskDetail) buildsInto(epoch uint64) bool {
	switch t.Status {
	case StatusCompleted:
		return true
	case StatusRewardPrepared:
		return t.PreparedEpoch == epoch
	}
	return false
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (s UserTaskState) Clone() UserTaskState {
	s.Tasks = append([]TaskDetail(nil), s.Tasks...)
	return s
}
