package rewards

import (
	"encoding/binary"
	"fmt"
)

// ClaimTicket is handed to a wallet for submission to the settlement layer.
// It is never persisted.
type ClaimTicket struct {
	Epoch  uint64 `json:"epoch"`
	Index  uint64 `json:"index"`
	Wallet string `json:"wallet"`
	Amount uint64 `json:"amount"`
	Proof  []Hash `json:"proof"`
	Root   Hash   `json:"root"`
}

// Leaf recomputes the ticket's leaf hash.
func (t ClaimTicket) Leaf() (Hash, error) {
	key, err := DecodeWallet(t.Wallet)
	if err != nil {
		return Hash{}, err
	}
	return LeafHash(t.Epoch, t.Index, key, t.Amount), nil
}

// Verify checks the proof against the ticket's root the way the on-chain
// verifier does.
func (t ClaimTicket) Verify() bool {
	leaf, err := t.Leaf()
	if err != nil {
		return false
	}
	return VerifyProof(leaf, t.Proof, t.Root)
}

const ticketHeaderSize = 8 + 8 + WalletKeySize + 8 + HashSize + 4

// MarshalBinary encodes the ticket as
// epoch u64 | index u64 | wallet [32] | amount u64 | root [32] | n u32 | proof [n][32],
// integers little-endian.
func (t ClaimTicket) MarshalBinary() ([]byte, error) {
	key, err := DecodeWallet(t.Wallet)
	if err != nil {
		return nil, err
	}
	out := make([]byte, ticketHeaderSize+len(t.Proof)*HashSize)
	binary.LittleEndian.PutUint64(out[0:], t.Epoch)
	binary.LittleEndian.PutUint64(out[8:], t.Index)
	copy(out[16:], key[:])
	off := 16 + WalletKeySize
	binary.LittleEndian.PutUint64(out[off:], t.Amount)
	off += 8
	copy(out[off:], t.Root[:])
	off += HashSize
	binary.LittleEndian.PutUint32(out[off:], uint32(len(t.Proof)))
	off += 4
	for _, h := range t.Proof {
		copy(out[off:], h[:])
		off += HashSize
	}
	return out, nil
}

// UnmarshalBinary decodes the MarshalBinary layout.
func (t *ClaimTicket) UnmarshalBinary(data []byte) error {
	if len(data) < ticketHeaderSize {
		return fmt.Errorf("ticket: %d bytes is shorter than header", len(data))
	}
	var key [WalletKeySize]byte
	t.Epoch = binary.LittleEndian.Uint64(data[0:])
	t.Index = binary.LittleEndian.Uint64(data[8:])
	copy(key[:], data[16:16+WalletKeySize])
	off := 16 + WalletKeySize
	t.Amount = binary.LittleEndian.Uint64(data[off:])
	off += 8
	copy(t.Root[:], data[off:off+HashSize])
	off += HashSize
	n := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if uint64(len(data)-off) != uint64(n)*HashSize {
		return fmt.Errorf("ticket: proof length %d does not match %d trailing bytes", n, len(data)-off)
	}
	t.Proof = make([]Hash, n)
	for i := range t.Proof {
		copy(t.Proof[i][:], data[off:off+HashSize])
		off += HashSize
	}
	t.Wallet = EncodeWallet(key)
	return nil
}
