package rewards

import (
	"context"
	"fmt"
)

// LeafFor returns the claim entry of wallet in epoch.
func (e *Engine) LeafFor(ctx context.Context, epoch uint64, wallet string) (ClaimEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := DecodeWallet(wallet); err != nil {
		return ClaimEntry{}, e.reject("leaf_for", err)
	}
	if _, err := e.epoch(ctx, epoch); err != nil {
		return ClaimEntry{}, err
	}
	leaf, ok, err := e.store.GetWalletLeaf(ctx, epoch, wallet)
	if err != nil {
		return ClaimEntry{}, fmt.Errorf("get epoch %d wallet leaf %s: %w", epoch, wallet, err)
	}
	if !ok {
		return ClaimEntry{}, fmt.Errorf("%w: wallet %s has no leaf in epoch %d", ErrNotFound, wallet, epoch)
	}
	return ClaimEntry{Epoch: epoch, Index: leaf.Index, Wallet: wallet, Amount: leaf.Amount}, nil
}

// ProveLeaf reads the sibling path of a leaf from the hash arena.
func (e *Engine) ProveLeaf(ctx context.Context, epoch, index uint64) ([]Hash, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.epoch(ctx, epoch)
	if err != nil {
		return nil, err
	}
	return e.prove(ctx, snap, index)
}

// layerCount is the number of layers of a tree with n leaves, root included.
func layerCount(n uint64) uint32 {
	if n == 0 {
		return 0
	}
	layers := uint32(1)
	for n > 1 {
		n = (n + 1) / 2
		layers++
	}
	return layers
}

func (e *Engine) prove(ctx context.Context, snap EpochSnapshot, index uint64) ([]Hash, error) {
	if index >= snap.LeafCount {
		return nil, fmt.Errorf("%w: epoch %d has no leaf %d", ErrNotFound, snap.Epoch, index)
	}
	layers := layerCount(snap.LeafCount)
	proof := make([]Hash, 0, layers-1)
	cur := index
	want := snap.LeafCount
	for layer := uint32(0); layer+1 < layers; layer++ {
		off, ok, err := e.store.GetLayerOffset(ctx, snap.Epoch, layer)
		if err != nil {
			return nil, fmt.Errorf("get epoch %d layer %d offset: %w", snap.Epoch, layer, err)
		}
		if !ok || uint64(off.Len) != want {
			return nil, fmt.Errorf("%w: epoch %d layer %d offset missing or sized wrong", ErrCorrupt, snap.Epoch, layer)
		}
		sib := cur ^ 1
		if sib >= uint64(off.Len) {
			sib = cur
		}
		h, ok, err := e.store.GetHash(ctx, off.Start+sib)
		if err != nil {
			return nil, fmt.Errorf("get hash %d: %w", off.Start+sib, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: epoch %d layer %d hash %d missing", ErrCorrupt, snap.Epoch, layer, sib)
		}
		proof = append(proof, h)
		cur /= 2
		want = (want + 1) / 2
	}
	return proof, nil
}

// gateBlocked reports whether a task keeps the wallet from receiving another
// ticket for epoch under the engine's gate scope.
func (e *Engine) gateBlocked(t TaskDetail, epoch uint64) bool {
	if t.Status != StatusTicketIssued && t.Status != StatusClaimed {
		return false
	}
	return e.inScope(t, epoch)
}

// inScope reports whether a task belongs to the ticket of epoch.
func (e *Engine) inScope(t TaskDetail, epoch uint64) bool {
	return e.gate != TicketGateEpoch || t.PreparedEpoch == epoch
}

// isPublished reports whether epoch has metadata, memoizing lookups in seen.
func (e *Engine) isPublished(ctx context.Context, epoch uint64, seen map[uint64]bool) (bool, error) {
	if ok, cached := seen[epoch]; cached {
		return ok, nil
	}
	_, ok, err := e.store.GetEpoch(ctx, epoch)
	if err != nil {
		return false, fmt.Errorf("get epoch %d: %w", epoch, err)
	}
	seen[epoch] = ok
	return ok, nil
}

// IssueTicket hands out the claim ticket of the wallet's most recent
// published epoch and marks its prepared rewards as TicketIssued.
func (e *Engine) IssueTicket(ctx context.Context, wallet string) (ClaimTicket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := DecodeWallet(wallet); err != nil {
		return ClaimTicket{}, e.reject("issue_ticket", err)
	}
	epoch, leaf, ok, err := e.store.LatestWalletLeaf(ctx, wallet)
	if err != nil {
		return ClaimTicket{}, fmt.Errorf("latest wallet leaf %s: %w", wallet, err)
	}
	if !ok {
		return ClaimTicket{}, e.reject("issue_ticket", fmt.Errorf("%w: wallet %s is in no published epoch", ErrNotFound, wallet))
	}
	state, _, err := e.loadUser(ctx, wallet)
	if err != nil {
		return ClaimTicket{}, err
	}
	for _, t := range state.Tasks {
		if e.gateBlocked(t, epoch) {
			return ClaimTicket{}, e.reject("issue_ticket", fmt.Errorf("%w: wallet %s already holds task %s in %s", ErrInvalidState, wallet, t.TaskID, t.Status))
		}
	}

	snap, err := e.epoch(ctx, epoch)
	if err != nil {
		return ClaimTicket{}, fmt.Errorf("%w: wallet %s leaf in epoch %d: %v", ErrCorrupt, wallet, epoch, err)
	}
	proof, err := e.prove(ctx, snap, leaf.Index)
	if err != nil {
		return ClaimTicket{}, err
	}
	ticket := ClaimTicket{
		Epoch:  epoch,
		Index:  leaf.Index,
		Wallet: wallet,
		Amount: leaf.Amount,
		Proof:  proof,
		Root:   snap.Root,
	}
	if !ticket.Verify() {
		return ClaimTicket{}, fmt.Errorf("%w: epoch %d proof for %s does not reach the root", ErrCorrupt, epoch, wallet)
	}

	published := map[uint64]bool{epoch: true}
	for i := range state.Tasks {
		t := &state.Tasks[i]
		if t.Status != StatusRewardPrepared || !e.inScope(*t, epoch) {
			continue
		}
		// Tasks prepared by an interrupted build wait for its retry.
		ok, err := e.isPublished(ctx, t.PreparedEpoch, published)
		if err != nil {
			return ClaimTicket{}, err
		}
		if !ok {
			continue
		}
		if err := t.transition(StatusTicketIssued); err != nil {
			return ClaimTicket{}, err
		}
	}
	if err := e.saveUser(ctx, &state); err != nil {
		return ClaimTicket{}, err
	}
	e.recorder.TicketIssued(ticket.Amount)
	e.logger.Info("claim ticket issued",
		"wallet", wallet,
		"epoch", epoch,
		"index", ticket.Index,
		"amount", ticket.Amount,
		"proof_len", len(ticket.Proof),
	)
	return ticket, nil
}
