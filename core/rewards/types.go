package rewards

// TaskStatus is the lifecycle position of one task for one wallet.
type TaskStatus string

const (
	StatusNotStarted     TaskStatus = "not_started"
	StatusInProgress     TaskStatus = "in_progress"
	StatusCompleted      TaskStatus = "completed"
	StatusRewardPrepared TaskStatus = "reward_prepared" // included in an epoch snapshot
	StatusTicketIssued   TaskStatus = "ticket_issued"   // proof handed out, waiting for settlement
	StatusClaimed        TaskStatus = "claimed"
)

// TaskDefinition is one registry entry.
type TaskDefinition struct {
	TaskID string `json:"taskid" yaml:"taskid" msgpack:"taskid"`
	Reward uint64 `json:"reward" yaml:"reward" msgpack:"reward"`
	// PayFor links the task to a payment event, e.g. "ai_subscription".
	PayFor string `json:"payfor,omitempty" yaml:"payfor" msgpack:"payfor"`
}

// TaskDetail tracks one task for one wallet.
type TaskDetail struct {
	TaskID        string     `json:"taskid" msgpack:"taskid"`
	Status        TaskStatus `json:"status" msgpack:"status"`
	CompletedAt   uint64     `json:"completed_at" msgpack:"completed_at"` // 0 when not completed
	RewardAmount  uint64     `json:"reward_amount" msgpack:"reward_amount"`
	Evidence      string     `json:"evidence,omitempty" msgpack:"evidence"`
	PreparedEpoch uint64     `json:"prepared_epoch,omitempty" msgpack:"prepared_epoch"`
}

// UserTaskState aggregates every task of a wallet.
type UserTaskState struct {
	Wallet         string       `json:"wallet" msgpack:"wallet"`
	Tasks          []TaskDetail `json:"tasks" msgpack:"tasks"`
	TotalUnclaimed uint64       `json:"total_unclaimed" msgpack:"total_unclaimed"`
}

// PaymentRecord is an immutable ledger entry.
type PaymentRecord struct {
	Seq        uint64 `json:"seq" msgpack:"seq"`
	Wallet     string `json:"wallet" msgpack:"wallet"`
	AmountPaid uint64 `json:"amount_paid" msgpack:"amount_paid"`
	TxRef      string `json:"tx_ref" msgpack:"tx_ref"`
	Timestamp  uint64 `json:"ts" msgpack:"ts"`
	PayFor     string `json:"payfor,omitempty" msgpack:"payfor"`
}

// ClaimEntry is one leaf of an epoch distribution.
type ClaimEntry struct {
	Epoch  uint64 `json:"epoch"`
	Index  uint64 `json:"index"`
	Wallet string `json:"wallet"`
	Amount uint64 `json:"amount"`
}

// EpochSnapshot is the published metadata of a built epoch. CreatedAt is unix nanoseconds.
type EpochSnapshot struct {
	Epoch     uint64 `json:"epoch" msgpack:"epoch"`
	Root      Hash   `json:"root" msgpack:"root"`
	LeafCount uint64 `json:"leaf_count" msgpack:"leaf_count"`
	CreatedAt uint64 `json:"created_at" msgpack:"created_at"`
}

// LayerOffset addresses one tree layer inside the flat hash arena.
type LayerOffset struct {
	Start uint64 `json:"start" msgpack:"start"`
	Len   uint32 `json:"len" msgpack:"len"`
}

// WalletLeaf is the per-(epoch, wallet) lookup record.
type WalletLeaf struct {
	Index  uint64 `json:"index" msgpack:"index"`
	Amount uint64 `json:"amount" msgpack:"amount"`
}

// ClaimOutcome is the settlement layer's verdict on a submitted ticket.
type ClaimOutcome string

const (
	ClaimSuccess ClaimOutcome = "success"
	ClaimFailed  ClaimOutcome = "failed"
)

// TicketGate selects which tasks the single-outstanding-ticket rule looks at.
type TicketGate string

const (
	// TicketGateGlobal blocks issuance while any task of the wallet is
	// TicketIssued or Claimed, regardless of epoch.
	TicketGateGlobal TicketGate = "global"
	// TicketGateEpoch only considers tasks prepared in the ticket's epoch.
	TicketGateEpoch TicketGate = "epoch"
)

// ParseTicketGate maps a config string to a TicketGate.
func ParseTicketGate(s string) (TicketGate, bool) {
	switch TicketGate(s) {
	case "", TicketGateGlobal:
		return TicketGateGlobal, true
	case TicketGateEpoch:
		return TicketGateEpoch, true
	}
	return "", false
}
