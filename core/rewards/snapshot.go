package rewards

import (
	"context"
	"fmt"
	"sort"
)

type qualifying struct {
	state UserTaskState
	key   [WalletKeySize]byte
	sum   uint64
}

// BuildSnapshot freezes every Completed reward into a new epoch tree. Admin only.
//
// Tree bytes, offsets, wallet leaves and task states are written before the
// epoch metadata. An interrupted build leaves no metadata behind, so the epoch
// counts as never built: its leaves stay invisible to IssueTicket and a retry
// picks up the tasks the failed attempt already marked RewardPrepared for it.
// Orphaned arena bytes stay.
func (e *Engine) BuildSnapshot(ctx context.Context, epoch uint64) (EpochSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	if err := e.requireAdmin(ctx, "build_snapshot"); err != nil {
		return EpochSnapshot{}, err
	}
	if _, ok, err := e.store.GetEpoch(ctx, epoch); err != nil {
		return EpochSnapshot{}, fmt.Errorf("get epoch %d: %w", epoch, err)
	} else if ok {
		return EpochSnapshot{}, e.reject("build_snapshot", fmt.Errorf("%w: epoch %d", ErrAlreadyExists, epoch))
	}

	states, err := e.store.ListUserTasks(ctx)
	if err != nil {
		return EpochSnapshot{}, fmt.Errorf("list user tasks: %w", err)
	}
	var picked []qualifying
	for _, st := range states {
		sum, err := st.snapshotSum(epoch)
		if err != nil {
			return EpochSnapshot{}, err
		}
		if sum == 0 {
			continue
		}
		key, err := DecodeWallet(st.Wallet)
		if err != nil {
			return EpochSnapshot{}, fmt.Errorf("%w: stored wallet %q: %v", ErrCorrupt, st.Wallet, err)
		}
		picked = append(picked, qualifying{state: st.Clone(), key: key, sum: sum})
	}
	if len(picked) == 0 {
		return EpochSnapshot{}, e.reject("build_snapshot", fmt.Errorf("%w: epoch %d has no completed rewards", ErrEmpty, epoch))
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].state.Wallet < picked[j].state.Wallet })

	leaves := make([]Hash, len(picked))
	var total uint64
	for i, q := range picked {
		leaves[i] = LeafHash(epoch, uint64(i), q.key, q.sum)
		total += q.sum
	}
	layers := BuildLayers(leaves)

	flat := make([]Hash, 0, 2*len(leaves))
	for _, layer := range layers {
		flat = append(flat, layer...)
	}
	base, err := e.store.AppendHashes(ctx, flat)
	if err != nil {
		return EpochSnapshot{}, fmt.Errorf("append epoch %d hashes: %w", epoch, err)
	}
	pos := base
	for i, layer := range layers {
		off := LayerOffset{Start: pos, Len: uint32(len(layer))}
		if err := e.store.PutLayerOffset(ctx, epoch, uint32(i), off); err != nil {
			return EpochSnapshot{}, fmt.Errorf("put epoch %d layer %d offset: %w", epoch, i, err)
		}
		pos += uint64(len(layer))
	}

	for i, q := range picked {
		leaf := WalletLeaf{Index: uint64(i), Amount: q.sum}
		if err := e.store.PutWalletLeaf(ctx, epoch, q.state.Wallet, leaf); err != nil {
			return EpochSnapshot{}, fmt.Errorf("put epoch %d wallet leaf %s: %w", epoch, q.state.Wallet, err)
		}
	}

	for i := range picked {
		st := &picked[i].state
		for j := range st.Tasks {
			t := &st.Tasks[j]
			if t.Status != StatusCompleted {
				continue
			}
			if err := t.transition(StatusRewardPrepared); err != nil {
				return EpochSnapshot{}, err
			}
			t.PreparedEpoch = epoch
		}
		if err := e.saveUser(ctx, st); err != nil {
			return EpochSnapshot{}, err
		}
	}

	snap := EpochSnapshot{
		Epoch:     epoch,
		Root:      layers[len(layers)-1][0],
		LeafCount: uint64(len(leaves)),
		CreatedAt: uint64(e.now().UnixNano()),
	}
	if err := e.store.PutEpoch(ctx, snap); err != nil {
		return EpochSnapshot{}, fmt.Errorf("put epoch %d: %w", epoch, err)
	}
	elapsed := e.now().Sub(start)
	e.recorder.SnapshotBuilt(snap, total, elapsed)
	e.logger.Info("epoch snapshot built",
		"epoch", epoch,
		"root", snap.Root.String(),
		"leaves", snap.LeafCount,
		"layers", len(layers),
		"total", total,
		"elapsed", elapsed,
	)
	return snap, nil
}

// GetEpoch returns published epoch metadata.
func (e *Engine) GetEpoch(ctx context.Context, epoch uint64) (EpochSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch(ctx, epoch)
}

func (e *Engine) epoch(ctx context.Context, epoch uint64) (EpochSnapshot, error) {
	snap, ok, err := e.store.GetEpoch(ctx, epoch)
	if err != nil {
		return EpochSnapshot{}, fmt.Errorf("get epoch %d: %w", epoch, err)
	}
	if !ok {
		return EpochSnapshot{}, fmt.Errorf("%w: epoch %d", ErrNotFound, epoch)
	}
	return snap, nil
}

// ListEpochs returns every published epoch in ascending order.
func (e *Engine) ListEpochs(ctx context.Context) ([]EpochSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ListEpochs(ctx)
}

// LatestEpoch returns the highest published epoch, or NotFound before the first build.
func (e *Engine) LatestEpoch(ctx context.Context) (EpochSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	snaps, err := e.store.ListEpochs(ctx)
	if err != nil {
		return EpochSnapshot{}, err
	}
	if len(snaps) == 0 {
		return EpochSnapshot{}, fmt.Errorf("%w: no epoch has been built", ErrNotFound)
	}
	return snaps[len(snaps)-1], nil
}
