package rewards

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"rewards-backend/core/rewards"
)

// Key layout. Integers are big-endian so byte order matches numeric order.
const (
	prefixTask      = "task:"  // task id
	prefixUser      = "user:"  // wallet
	prefixPayment   = "pay:"   // seq u64
	prefixHash      = "hash:"  // pos u64
	prefixLayer     = "layer:" // epoch u64 | layer u32
	prefixLeaf      = "leaf:"  // epoch u64 | wallet
	prefixLatest    = "wleaf:" // wallet | 0x00 | epoch u64
	prefixEpoch     = "epoch:" // epoch u64
	keyPaymentCount = "meta:payments"
	keyHashCount    = "meta:hashes"
)

// PebbleOptions configures a PebbleStore.
type PebbleOptions struct {
	// InMemory keeps the database on an in-memory filesystem.
	InMemory bool
	// Compress stores user task aggregates zstd-compressed.
	Compress bool
}

// PebbleStore persists reward state in an embedded Pebble database with
// msgpack-encoded values.
type PebbleStore struct {
	db *pebble.DB

	mu       sync.Mutex // guards the counters and the zstd coder pair
	payments uint64
	hashes   uint64
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

// NewPebbleStore opens or creates the database at path.
func NewPebbleStore(path string, opts PebbleOptions) (*PebbleStore, error) {
	popts := &pebble.Options{}
	if opts.InMemory {
		popts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(path, popts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}
	s := &PebbleStore{db: db}
	if opts.Compress {
		if s.encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
			db.Close()
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
	}
	// Aggregates written with compression stay readable after it is switched off.
	if s.decoder, err = zstd.NewReader(nil); err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if s.payments, err = s.loadCounter(keyPaymentCount); err != nil {
		s.Close()
		return nil, err
	}
	if s.hashes, err = s.loadCounter(keyHashCount); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close flushes and closes the database.
func (s *PebbleStore) Close() error {
	if s.encoder != nil {
		s.encoder.Close()
	}
	if s.decoder != nil {
		s.decoder.Close()
	}
	return s.db.Close()
}

func u64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func key(prefix string, parts ...[]byte) []byte {
	k := []byte(prefix)
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}

// prefixEnd returns the smallest key greater than every key with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func (s *PebbleStore) loadCounter(k string) (uint64, error) {
	val, closer, err := s.db.Get([]byte(k))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("%w: counter %s", rewards.ErrCorrupt, k)
	}
	return binary.BigEndian.Uint64(val), nil
}

// getValue decodes the msgpack value at k into out.
func (s *PebbleStore) getValue(k []byte, out any) (bool, error) {
	val, closer, err := s.db.Get(k)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := msgpack.Unmarshal(val, out); err != nil {
		return false, fmt.Errorf("%w: decode %q: %v", rewards.ErrCorrupt, k, err)
	}
	return true, nil
}

func (s *PebbleStore) setValue(k []byte, v any) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Set(k, data, pebble.Sync)
}

// scan decodes every value under prefix, in key order.
func scan[T any](s *PebbleStore, prefix []byte, decode func([]byte) (T, error)) ([]T, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []T
	for iter.First(); iter.Valid(); iter.Next() {
		v, err := decode(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, iter.Error()
}

func decodeMsgpack[T any](raw []byte) (T, error) {
	var v T
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %v", rewards.ErrCorrupt, err)
	}
	return v, nil
}

func (s *PebbleStore) GetTaskDefinition(_ context.Context, taskID string) (rewards.TaskDefinition, bool, error) {
	var def rewards.TaskDefinition
	ok, err := s.getValue(key(prefixTask, []byte(taskID)), &def)
	return def, ok, err
}

func (s *PebbleStore) PutTaskDefinition(_ context.Context, def rewards.TaskDefinition) error {
	return s.setValue(key(prefixTask, []byte(def.TaskID)), def)
}

func (s *PebbleStore) ListTaskDefinitions(_ context.Context) ([]rewards.TaskDefinition, error) {
	return scan(s, []byte(prefixTask), decodeMsgpack[rewards.TaskDefinition])
}

// User aggregates carry a one-byte codec marker.
const (
	codecPlain byte = 0
	codecZstd  byte = 1
)

func (s *PebbleStore) encodeUser(state rewards.UserTaskState) ([]byte, error) {
	data, err := msgpack.Marshal(state)
	if err != nil {
		return nil, err
	}
	if s.encoder == nil {
		return append([]byte{codecPlain}, data...), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encoder.EncodeAll(data, []byte{codecZstd}), nil
}

func (s *PebbleStore) decodeUser(raw []byte) (rewards.UserTaskState, error) {
	if len(raw) == 0 {
		return rewards.UserTaskState{}, fmt.Errorf("%w: empty user record", rewards.ErrCorrupt)
	}
	data := raw[1:]
	switch raw[0] {
	case codecPlain:
	case codecZstd:
		s.mu.Lock()
		out, err := s.decoder.DecodeAll(data, nil)
		s.mu.Unlock()
		if err != nil {
			return rewards.UserTaskState{}, fmt.Errorf("%w: decompress user record: %v", rewards.ErrCorrupt, err)
		}
		data = out
	default:
		return rewards.UserTaskState{}, fmt.Errorf("%w: user record codec %d", rewards.ErrCorrupt, raw[0])
	}
	return decodeMsgpack[rewards.UserTaskState](data)
}

func (s *PebbleStore) GetUserTasks(_ context.Context, wallet string) (rewards.UserTaskState, bool, error) {
	val, closer, err := s.db.Get(key(prefixUser, []byte(wallet)))
	if errors.Is(err, pebble.ErrNotFound) {
		return rewards.UserTaskState{}, false, nil
	}
	if err != nil {
		return rewards.UserTaskState{}, false, err
	}
	defer closer.Close()
	st, err := s.decodeUser(val)
	if err != nil {
		return rewards.UserTaskState{}, false, err
	}
	return st, true, nil
}

func (s *PebbleStore) PutUserTasks(_ context.Context, state rewards.UserTaskState) error {
	data, err := s.encodeUser(state)
	if err != nil {
		return err
	}
	return s.db.Set(key(prefixUser, []byte(state.Wallet)), data, pebble.Sync)
}

func (s *PebbleStore) ListUserTasks(_ context.Context) ([]rewards.UserTaskState, error) {
	return scan(s, []byte(prefixUser), s.decodeUser)
}

func (s *PebbleStore) AppendPayment(_ context.Context, p rewards.PaymentRecord) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Seq = s.payments
	data, err := msgpack.Marshal(p)
	if err != nil {
		return 0, err
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(key(prefixPayment, u64(p.Seq)), data, nil); err != nil {
		return 0, err
	}
	if err := b.Set([]byte(keyPaymentCount), u64(p.Seq+1), nil); err != nil {
		return 0, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	s.payments++
	return p.Seq, nil
}

func (s *PebbleStore) GetPayment(_ context.Context, seq uint64) (rewards.PaymentRecord, bool, error) {
	var p rewards.PaymentRecord
	ok, err := s.getValue(key(prefixPayment, u64(seq)), &p)
	return p, ok, err
}

func (s *PebbleStore) ListPayments(_ context.Context, wallet string) ([]rewards.PaymentRecord, error) {
	all, err := scan(s, []byte(prefixPayment), decodeMsgpack[rewards.PaymentRecord])
	if err != nil || wallet == "" {
		return all, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Wallet == wallet {
			out = append(out, p)
		}
	}
	return out, nil
}

// AppendHashes writes hashes and the new arena length in one batch.
func (s *PebbleStore) AppendHashes(_ context.Context, hashes []rewards.Hash) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.hashes
	b := s.db.NewBatch()
	defer b.Close()
	for i, h := range hashes {
		if err := b.Set(key(prefixHash, u64(start+uint64(i))), h[:], nil); err != nil {
			return 0, err
		}
	}
	end := start + uint64(len(hashes))
	if err := b.Set([]byte(keyHashCount), u64(end), nil); err != nil {
		return 0, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("commit hashes: %w", err)
	}
	s.hashes = end
	return start, nil
}

func (s *PebbleStore) GetHash(_ context.Context, pos uint64) (rewards.Hash, bool, error) {
	val, closer, err := s.db.Get(key(prefixHash, u64(pos)))
	if errors.Is(err, pebble.ErrNotFound) {
		return rewards.Hash{}, false, nil
	}
	if err != nil {
		return rewards.Hash{}, false, err
	}
	defer closer.Close()
	var h rewards.Hash
	if len(val) != rewards.HashSize {
		return h, false, fmt.Errorf("%w: hash %d has %d bytes", rewards.ErrCorrupt, pos, len(val))
	}
	copy(h[:], val)
	return h, true, nil
}

func layerKey(epoch uint64, layer uint32) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], layer)
	return key(prefixLayer, u64(epoch), l[:])
}

func (s *PebbleStore) PutLayerOffset(_ context.Context, epoch uint64, layer uint32, off rewards.LayerOffset) error {
	return s.setValue(layerKey(epoch, layer), off)
}

func (s *PebbleStore) GetLayerOffset(_ context.Context, epoch uint64, layer uint32) (rewards.LayerOffset, bool, error) {
	var off rewards.LayerOffset
	ok, err := s.getValue(layerKey(epoch, layer), &off)
	return off, ok, err
}

func latestPrefix(wallet string) []byte {
	return append(key(prefixLatest, []byte(wallet)), 0)
}

// PutWalletLeaf writes the leaf and its per-wallet index entry together.
func (s *PebbleStore) PutWalletLeaf(_ context.Context, epoch uint64, wallet string, leaf rewards.WalletLeaf) error {
	data, err := msgpack.Marshal(leaf)
	if err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(key(prefixLeaf, u64(epoch), []byte(wallet)), data, nil); err != nil {
		return err
	}
	if err := b.Set(append(latestPrefix(wallet), u64(epoch)...), nil, nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (s *PebbleStore) GetWalletLeaf(_ context.Context, epoch uint64, wallet string) (rewards.WalletLeaf, bool, error) {
	var leaf rewards.WalletLeaf
	ok, err := s.getValue(key(prefixLeaf, u64(epoch), []byte(wallet)), &leaf)
	return leaf, ok, err
}

// LatestWalletLeaf walks the wallet index from the highest epoch down and
// returns the first leaf whose epoch metadata exists.
func (s *PebbleStore) LatestWalletLeaf(ctx context.Context, wallet string) (uint64, rewards.WalletLeaf, bool, error) {
	prefix := latestPrefix(wallet)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return 0, rewards.WalletLeaf{}, false, err
	}
	defer iter.Close()

	for valid := iter.Last(); valid; valid = iter.Prev() {
		k := iter.Key()
		if len(k) != len(prefix)+8 {
			return 0, rewards.WalletLeaf{}, false, fmt.Errorf("%w: wallet index key %q", rewards.ErrCorrupt, k)
		}
		epoch := binary.BigEndian.Uint64(k[len(prefix):])
		if _, ok, err := s.GetEpoch(ctx, epoch); err != nil {
			return 0, rewards.WalletLeaf{}, false, err
		} else if !ok {
			continue
		}
		leaf, ok, err := s.GetWalletLeaf(ctx, epoch, wallet)
		if err != nil {
			return 0, rewards.WalletLeaf{}, false, err
		}
		if !ok {
			return 0, rewards.WalletLeaf{}, false, fmt.Errorf("%w: wallet index points at missing leaf %d/%s", rewards.ErrCorrupt, epoch, wallet)
		}
		return epoch, leaf, true, nil
	}
	return 0, rewards.WalletLeaf{}, false, iter.Error()
}

func (s *PebbleStore) GetEpoch(_ context.Context, epoch uint64) (rewards.EpochSnapshot, bool, error) {
	var snap rewards.EpochSnapshot
	ok, err := s.getValue(key(prefixEpoch, u64(epoch)), &snap)
	return snap, ok, err
}

func (s *PebbleStore) PutEpoch(_ context.Context, snap rewards.EpochSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(prefixEpoch, u64(snap.Epoch))
	_, closer, err := s.db.Get(k)
	if err == nil {
		closer.Close()
		return fmt.Errorf("%w: epoch %d", rewards.ErrAlreadyExists, snap.Epoch)
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}
	return s.setValue(k, snap)
}

func (s *PebbleStore) ListEpochs(_ context.Context) ([]rewards.EpochSnapshot, error) {
	return scan(s, []byte(prefixEpoch), decodeMsgpack[rewards.EpochSnapshot])
}

var _ rewards.Store = (*PebbleStore)(nil)
