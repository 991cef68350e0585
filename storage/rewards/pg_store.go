package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"rewards-backend/core/rewards"
)

// PGStore persists reward state in Postgres. Amounts and epochs are stored
// as BIGINT, so values above math.MaxInt64 are rejected by the driver.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects and initializes the schema.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PGStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS reward_tasks (
  task_id TEXT PRIMARY KEY,
  reward BIGINT NOT NULL,
  payfor TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS reward_user_tasks (
  wallet TEXT PRIMARY KEY,
  tasks JSONB NOT NULL,
  total_unclaimed BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS reward_payments (
  seq BIGINT GENERATED ALWAYS AS IDENTITY (START WITH 0 MINVALUE 0) PRIMARY KEY,
  wallet TEXT NOT NULL,
  amount_paid BIGINT NOT NULL,
  tx_ref TEXT NOT NULL,
  ts BIGINT NOT NULL,
  payfor TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS reward_hashes (
  pos BIGINT PRIMARY KEY,
  hash BYTEA NOT NULL
);
CREATE TABLE IF NOT EXISTS reward_layer_offsets (
  epoch BIGINT NOT NULL,
  layer INT NOT NULL,
  start_pos BIGINT NOT NULL,
  len INT NOT NULL,
  PRIMARY KEY (epoch, layer)
);
CREATE TABLE IF NOT EXISTS reward_wallet_leaves (
  epoch BIGINT NOT NULL,
  wallet TEXT NOT NULL,
  idx BIGINT NOT NULL,
  amount BIGINT NOT NULL,
  PRIMARY KEY (epoch, wallet)
);
CREATE TABLE IF NOT EXISTS reward_epochs (
  epoch BIGINT PRIMARY KEY,
  root BYTEA NOT NULL,
  leaf_count BIGINT NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reward_payments_wallet ON reward_payments(wallet, seq);
CREATE INDEX IF NOT EXISTS idx_reward_wallet_leaves_wallet ON reward_wallet_leaves(wallet, epoch DESC);
`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close shuts down the pool.
func (s *PGStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PGStore) GetTaskDefinition(ctx context.Context, taskID string) (rewards.TaskDefinition, bool, error) {
	var def rewards.TaskDefinition
	err := s.pool.QueryRow(ctx, `SELECT task_id, reward, payfor FROM reward_tasks WHERE task_id = $1`, taskID).
		Scan(&def.TaskID, &def.Reward, &def.PayFor)
	if errors.Is(err, pgx.ErrNoRows) {
		return rewards.TaskDefinition{}, false, nil
	}
	if err != nil {
		return rewards.TaskDefinition{}, false, err
	}
	return def, true, nil
}

func (s *PGStore) PutTaskDefinition(ctx context.Context, def rewards.TaskDefinition) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO reward_tasks (task_id, reward, payfor) VALUES ($1,$2,$3)
ON CONFLICT (task_id) DO UPDATE SET reward = EXCLUDED.reward, payfor = EXCLUDED.payfor
`, def.TaskID, def.Reward, def.PayFor)
	return err
}

func (s *PGStore) ListTaskDefinitions(ctx context.Context) ([]rewards.TaskDefinition, error) {
	rows, err := s.pool.Query(ctx, `SELECT task_id, reward, payfor FROM reward_tasks ORDER BY task_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rewards.TaskDefinition
	for rows.Next() {
		var def rewards.TaskDefinition
		if err := rows.Scan(&def.TaskID, &def.Reward, &def.PayFor); err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

func scanUserTasks(row pgx.Row) (rewards.UserTaskState, error) {
	var (
		st  rewards.UserTaskState
		raw []byte
	)
	if err := row.Scan(&st.Wallet, &raw, &st.TotalUnclaimed); err != nil {
		return rewards.UserTaskState{}, err
	}
	if err := json.Unmarshal(raw, &st.Tasks); err != nil {
		return rewards.UserTaskState{}, fmt.Errorf("%w: tasks of %s: %v", rewards.ErrCorrupt, st.Wallet, err)
	}
	return st, nil
}

func (s *PGStore) GetUserTasks(ctx context.Context, wallet string) (rewards.UserTaskState, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT wallet, tasks, total_unclaimed FROM reward_user_tasks WHERE wallet = $1`, wallet)
	st, err := scanUserTasks(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return rewards.UserTaskState{}, false, nil
	}
	if err != nil {
		return rewards.UserTaskState{}, false, err
	}
	return st, true, nil
}

func (s *PGStore) PutUserTasks(ctx context.Context, state rewards.UserTaskState) error {
	tasksJSON, err := json.Marshal(state.Tasks)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO reward_user_tasks (wallet, tasks, total_unclaimed) VALUES ($1,$2,$3)
ON CONFLICT (wallet) DO UPDATE SET tasks = EXCLUDED.tasks, total_unclaimed = EXCLUDED.total_unclaimed
`, state.Wallet, string(tasksJSON), state.TotalUnclaimed)
	return err
}

func (s *PGStore) ListUserTasks(ctx context.Context) ([]rewards.UserTaskState, error) {
	rows, err := s.pool.Query(ctx, `SELECT wallet, tasks, total_unclaimed FROM reward_user_tasks ORDER BY wallet COLLATE "C"`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rewards.UserTaskState
	for rows.Next() {
		st, err := scanUserTasks(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PGStore) AppendPayment(ctx context.Context, p rewards.PaymentRecord) (uint64, error) {
	var seq uint64
	err := s.pool.QueryRow(ctx, `
INSERT INTO reward_payments (wallet, amount_paid, tx_ref, ts, payfor) VALUES ($1,$2,$3,$4,$5)
RETURNING seq
`, p.Wallet, p.AmountPaid, p.TxRef, p.Timestamp, p.PayFor).Scan(&seq)
	return seq, err
}

const paymentColumns = `seq, wallet, amount_paid, tx_ref, ts, payfor`

func scanPayment(row pgx.Row) (rewards.PaymentRecord, error) {
	var p rewards.PaymentRecord
	err := row.Scan(&p.Seq, &p.Wallet, &p.AmountPaid, &p.TxRef, &p.Timestamp, &p.PayFor)
	return p, err
}

func (s *PGStore) GetPayment(ctx context.Context, seq uint64) (rewards.PaymentRecord, bool, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM reward_payments WHERE seq = $1`, seq))
	if errors.Is(err, pgx.ErrNoRows) {
		return rewards.PaymentRecord{}, false, nil
	}
	if err != nil {
		return rewards.PaymentRecord{}, false, err
	}
	return p, true, nil
}

func (s *PGStore) ListPayments(ctx context.Context, wallet string) ([]rewards.PaymentRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+paymentColumns+` FROM reward_payments
WHERE ($1 = '' OR wallet = $1)
ORDER BY seq
`, wallet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rewards.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AppendHashes copies hashes to the end of the arena under a table lock so
// positions stay contiguous.
func (s *PGStore) AppendHashes(ctx context.Context, hashes []rewards.Hash) (uint64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE reward_hashes IN EXCLUSIVE MODE`); err != nil {
		return 0, err
	}
	var start uint64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(pos) + 1, 0) FROM reward_hashes`).Scan(&start); err != nil {
		return 0, err
	}
	rows := make([][]any, len(hashes))
	for i, h := range hashes {
		rows[i] = []any{int64(start) + int64(i), h[:]}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"reward_hashes"}, []string{"pos", "hash"}, pgx.CopyFromRows(rows)); err != nil {
		return 0, fmt.Errorf("copy hashes: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return start, nil
}

func (s *PGStore) GetHash(ctx context.Context, pos uint64) (rewards.Hash, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT hash FROM reward_hashes WHERE pos = $1`, pos).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return rewards.Hash{}, false, nil
	}
	if err != nil {
		return rewards.Hash{}, false, err
	}
	return toHash(raw)
}

func toHash(raw []byte) (rewards.Hash, bool, error) {
	var h rewards.Hash
	if len(raw) != rewards.HashSize {
		return h, false, fmt.Errorf("%w: hash of %d bytes", rewards.ErrCorrupt, len(raw))
	}
	copy(h[:], raw)
	return h, true, nil
}

// PutLayerOffset overwrites offsets left by an interrupted build of the same epoch.
func (s *PGStore) PutLayerOffset(ctx context.Context, epoch uint64, layer uint32, off rewards.LayerOffset) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO reward_layer_offsets (epoch, layer, start_pos, len) VALUES ($1,$2,$3,$4)
ON CONFLICT (epoch, layer) DO UPDATE SET start_pos = EXCLUDED.start_pos, len = EXCLUDED.len
`, epoch, int32(layer), off.Start, int32(off.Len))
	return err
}

func (s *PGStore) GetLayerOffset(ctx context.Context, epoch uint64, layer uint32) (rewards.LayerOffset, bool, error) {
	var (
		off rewards.LayerOffset
		n   int32
	)
	err := s.pool.QueryRow(ctx, `SELECT start_pos, len FROM reward_layer_offsets WHERE epoch = $1 AND layer = $2`, epoch, int32(layer)).
		Scan(&off.Start, &n)
	if errors.Is(err, pgx.ErrNoRows) {
		return rewards.LayerOffset{}, false, nil
	}
	if err != nil {
		return rewards.LayerOffset{}, false, err
	}
	off.Len = uint32(n)
	return off, true, nil
}

func (s *PGStore) PutWalletLeaf(ctx context.Context, epoch uint64, wallet string, leaf rewards.WalletLeaf) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO reward_wallet_leaves (epoch, wallet, idx, amount) VALUES ($1,$2,$3,$4)
ON CONFLICT (epoch, wallet) DO UPDATE SET idx = EXCLUDED.idx, amount = EXCLUDED.amount
`, epoch, wallet, leaf.Index, leaf.Amount)
	return err
}

func (s *PGStore) GetWalletLeaf(ctx context.Context, epoch uint64, wallet string) (rewards.WalletLeaf, bool, error) {
	var leaf rewards.WalletLeaf
	err := s.pool.QueryRow(ctx, `SELECT idx, amount FROM reward_wallet_leaves WHERE epoch = $1 AND wallet = $2`, epoch, wallet).
		Scan(&leaf.Index, &leaf.Amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return rewards.WalletLeaf{}, false, nil
	}
	if err != nil {
		return rewards.WalletLeaf{}, false, err
	}
	return leaf, true, nil
}

func (s *PGStore) LatestWalletLeaf(ctx context.Context, wallet string) (uint64, rewards.WalletLeaf, bool, error) {
	var (
		epoch uint64
		leaf  rewards.WalletLeaf
	)
	err := s.pool.QueryRow(ctx, `
SELECT l.epoch, l.idx, l.amount FROM reward_wallet_leaves l
JOIN reward_epochs e ON e.epoch = l.epoch
WHERE l.wallet = $1 ORDER BY l.epoch DESC LIMIT 1
`, wallet).Scan(&epoch, &leaf.Index, &leaf.Amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, rewards.WalletLeaf{}, false, nil
	}
	if err != nil {
		return 0, rewards.WalletLeaf{}, false, err
	}
	return epoch, leaf, true, nil
}

const epochColumns = `epoch, root, leaf_count, created_at`

func scanEpoch(row pgx.Row) (rewards.EpochSnapshot, error) {
	var (
		snap rewards.EpochSnapshot
		root []byte
	)
	if err := row.Scan(&snap.Epoch, &root, &snap.LeafCount, &snap.CreatedAt); err != nil {
		return rewards.EpochSnapshot{}, err
	}
	h, _, err := toHash(root)
	if err != nil {
		return rewards.EpochSnapshot{}, err
	}
	snap.Root = h
	return snap, nil
}

func (s *PGStore) GetEpoch(ctx context.Context, epoch uint64) (rewards.EpochSnapshot, bool, error) {
	snap, err := scanEpoch(s.pool.QueryRow(ctx, `SELECT `+epochColumns+` FROM reward_epochs WHERE epoch = $1`, epoch))
	if errors.Is(err, pgx.ErrNoRows) {
		return rewards.EpochSnapshot{}, false, nil
	}
	if err != nil {
		return rewards.EpochSnapshot{}, false, err
	}
	return snap, true, nil
}

func (s *PGStore) PutEpoch(ctx context.Context, snap rewards.EpochSnapshot) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO reward_epochs (epoch, root, leaf_count, created_at) VALUES ($1,$2,$3,$4)
`, snap.Epoch, snap.Root[:], snap.LeafCount, snap.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: epoch %d", rewards.ErrAlreadyExists, snap.Epoch)
	}
	return err
}

func (s *PGStore) ListEpochs(ctx context.Context) ([]rewards.EpochSnapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+epochColumns+` FROM reward_epochs ORDER BY epoch`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rewards.EpochSnapshot
	for rows.Next() {
		snap, err := scanEpoch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

var _ rewards.Store = (*PGStore)(nil)
