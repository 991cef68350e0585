package rewards

import "context"

// Store abstracts reward persistence. Lookups report absence with a false
// bool rather than an error; errors are reserved for I/O and decode failures.
type Store interface {
	// Registry, keyed and ordered by task id.
	GetTaskDefinition(ctx context.Context, taskID string) (TaskDefinition, bool, error)
	PutTaskDefinition(ctx context.Context, def TaskDefinition) error
	ListTaskDefinitions(ctx context.Context) ([]TaskDefinition, error)

	// Per-wallet aggregates, keyed and ordered by wallet.
	GetUserTasks(ctx context.Context, wallet string) (UserTaskState, bool, error)
	PutUserTasks(ctx context.Context, state UserTaskState) error
	ListUserTasks(ctx context.Context) ([]UserTaskState, error)

	// Payment ledger. AppendPayment assigns the sequence number.
	AppendPayment(ctx context.Context, p PaymentRecord) (uint64, error)
	GetPayment(ctx context.Context, seq uint64) (PaymentRecord, bool, error)
	ListPayments(ctx context.Context, wallet string) ([]PaymentRecord, error)

	// Flat hash arena shared by every epoch. AppendHashes returns the
	// position of the first appended hash.
	AppendHashes(ctx context.Context, hashes []Hash) (uint64, error)
	GetHash(ctx context.Context, pos uint64) (Hash, bool, error)

	// Per-(epoch, layer) offsets into the arena.
	PutLayerOffset(ctx context.Context, epoch uint64, layer uint32, off LayerOffset) error
	GetLayerOffset(ctx context.Context, epoch uint64, layer uint32) (LayerOffset, bool, error)

	// Per-(epoch, wallet) leaf lookup.
	PutWalletLeaf(ctx context.Context, epoch uint64, wallet string, leaf WalletLeaf) error
	GetWalletLeaf(ctx context.Context, epoch uint64, wallet string) (WalletLeaf, bool, error)
	// LatestWalletLeaf returns the leaf of the highest published epoch that
	// contains wallet. Leaves of epochs without metadata are skipped.
	LatestWalletLeaf(ctx context.Context, wallet string) (uint64, WalletLeaf, bool, error)

	// Epoch metadata, write-once.
	GetEpoch(ctx context.Context, epoch uint64) (EpochSnapshot, bool, error)
	PutEpoch(ctx context.Context, snap EpochSnapshot) error
	ListEpochs(ctx context.Context) ([]EpochSnapshot, error)

	Close() error
}
