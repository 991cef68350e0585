package rewards

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rewards-backend/core/rewards"
)

type epochLayer struct {
	epoch uint64
	layer uint32
}

type epochWallet struct {
	epoch  uint64
	wallet string
}

// MemoryStore keeps reward state in process maps.
// The single RWMutex covers every map so related reads stay consistent.
type MemoryStore struct {
	mu       sync.RWMutex
	defs     map[string]rewards.TaskDefinition
	users    map[string]rewards.UserTaskState
	payments []rewards.PaymentRecord
	arena    []rewards.Hash
	offsets  map[epochLayer]rewards.LayerOffset
	leaves   map[epochWallet]rewards.WalletLeaf
	epochs   map[uint64]rewards.EpochSnapshot
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		defs:    make(map[string]rewards.TaskDefinition),
		users:   make(map[string]rewards.UserTaskState),
		offsets: make(map[epochLayer]rewards.LayerOffset),
		leaves:  make(map[epochWallet]rewards.WalletLeaf),
		epochs:  make(map[uint64]rewards.EpochSnapshot),
	}
}

func (s *MemoryStore) GetTaskDefinition(_ context.Context, taskID string) (rewards.TaskDefinition, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[taskID]
	return def, ok, nil
}

func (s *MemoryStore) PutTaskDefinition(_ context.Context, def rewards.TaskDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.TaskID] = def
	return nil
}

// ListTaskDefinitions returns definitions ordered by task id.
func (s *MemoryStore) ListTaskDefinitions(_ context.Context) ([]rewards.TaskDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rewards.TaskDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out, nil
}

func (s *MemoryStore) GetUserTasks(_ context.Context, wallet string) (rewards.UserTaskState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.users[wallet]
	if !ok {
		return rewards.UserTaskState{}, false, nil
	}
	return st.Clone(), true, nil
}

func (s *MemoryStore) PutUserTasks(_ context.Context, state rewards.UserTaskState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[state.Wallet] = state.Clone()
	return nil
}

// ListUserTasks returns every aggregate ordered by wallet.
func (s *MemoryStore) ListUserTasks(_ context.Context) ([]rewards.UserTaskState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rewards.UserTaskState, 0, len(s.users))
	for _, st := range s.users {
		out = append(out, st.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Wallet < out[j].Wallet })
	return out, nil
}

func (s *MemoryStore) AppendPayment(_ context.Context, p rewards.PaymentRecord) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Seq = uint64(len(s.payments))
	s.payments = append(s.payments, p)
	return p.Seq, nil
}

func (s *MemoryStore) GetPayment(_ context.Context, seq uint64) (rewards.PaymentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if seq >= uint64(len(s.payments)) {
		return rewards.PaymentRecord{}, false, nil
	}
	return s.payments[seq], true, nil
}

func (s *MemoryStore) ListPayments(_ context.Context, wallet string) ([]rewards.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rewards.PaymentRecord, 0, len(s.payments))
	for _, p := range s.payments {
		if wallet == "" || p.Wallet == wallet {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) AppendHashes(_ context.Context, hashes []rewards.Hash) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := uint64(len(s.arena))
	s.arena = append(s.arena, hashes...)
	return start, nil
}

func (s *MemoryStore) GetHash(_ context.Context, pos uint64) (rewards.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pos >= uint64(len(s.arena)) {
		return rewards.Hash{}, false, nil
	}
	return s.arena[pos], true, nil
}

func (s *MemoryStore) PutLayerOffset(_ context.Context, epoch uint64, layer uint32, off rewards.LayerOffset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[epochLayer{epoch, layer}] = off
	return nil
}

func (s *MemoryStore) GetLayerOffset(_ context.Context, epoch uint64, layer uint32) (rewards.LayerOffset, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	off, ok := s.offsets[epochLayer{epoch, layer}]
	return off, ok, nil
}

func (s *MemoryStore) PutWalletLeaf(_ context.Context, epoch uint64, wallet string, leaf rewards.WalletLeaf) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves[epochWallet{epoch, wallet}] = leaf
	return nil
}

func (s *MemoryStore) GetWalletLeaf(_ context.Context, epoch uint64, wallet string) (rewards.WalletLeaf, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	leaf, ok := s.leaves[epochWallet{epoch, wallet}]
	return leaf, ok, nil
}

func (s *MemoryStore) LatestWalletLeaf(_ context.Context, wallet string) (uint64, rewards.WalletLeaf, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  uint64
		leaf  rewards.WalletLeaf
		found bool
	)
	for k, v := range s.leaves {
		if k.wallet != wallet {
			continue
		}
		if _, ok := s.epochs[k.epoch]; !ok {
			continue
		}
		if !found || k.epoch > best {
			best, leaf, found = k.epoch, v, true
		}
	}
	return best, leaf, found, nil
}

func (s *MemoryStore) GetEpoch(_ context.Context, epoch uint64) (rewards.EpochSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.epochs[epoch]
	return snap, ok, nil
}

// PutEpoch stores metadata once; a second write for the same epoch fails.
func (s *MemoryStore) PutEpoch(_ context.Context, snap rewards.EpochSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.epochs[snap.Epoch]; ok {
		return fmt.Errorf("%w: epoch %d", rewards.ErrAlreadyExists, snap.Epoch)
	}
	s.epochs[snap.Epoch] = snap
	return nil
}

// ListEpochs returns metadata in ascending epoch order.
func (s *MemoryStore) ListEpochs(_ context.Context) ([]rewards.EpochSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]rewards.EpochSnapshot, 0, len(s.epochs))
	for _, snap := range s.epochs {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ rewards.Store = (*MemoryStore)(nil)
