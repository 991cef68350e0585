package rewards

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// HashSize is the byte length of every tree node.
const HashSize = sha256.Size

// Hash is a 32-byte tree node. It renders as lowercase hex in JSON.
type Hash [HashSize]byte

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(HashSize))
	hex.Encode(out, h[:])
	return out, nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != HashSize {
		return fmt.Errorf("hash: want %d hex chars, got %d", 2*HashSize, len(text))
	}
	_, err := hex.Decode(h[:], text)
	return err
}

// ParseHash decodes a hex string into a Hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	err := h.UnmarshalText([]byte(s))
	return h, err
}

// LeafHash computes SHA256(epoch u64 LE || index u32 LE || wallet || amount u64 LE).
// The index is truncated to 32 bits to match the on-chain verifier.
func LeafHash(epoch, index uint64, wallet [WalletKeySize]byte, amount uint64) Hash {
	var buf [8 + 4 + WalletKeySize + 8]byte
	binary.LittleEndian.PutUint64(buf[0:8], epoch)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(index))
	copy(buf[12:12+WalletKeySize], wallet[:])
	binary.LittleEndian.PutUint64(buf[12+WalletKeySize:], amount)
	return sha256.Sum256(buf[:])
}

// ParentHash hashes two children in byte-wise sorted order, so proofs carry
// no left/right direction.
func ParentHash(a, b Hash) Hash {
	var buf [2 * HashSize]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(buf[:HashSize], a[:])
		copy(buf[HashSize:], b[:])
	} else {
		copy(buf[:HashSize], b[:])
		copy(buf[HashSize:], a[:])
	}
	return sha256.Sum256(buf[:])
}

// BuildLayers returns every layer of the tree, leaves first and the single
// root last. An odd trailing node is paired with itself.
func BuildLayers(leaves []Hash) [][]Hash {
	if len(leaves) == 0 {
		return nil
	}
	current := append([]Hash(nil), leaves...)
	layers := [][]Hash{current}
	for len(current) > 1 {
		next := make([]Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, ParentHash(current[i], current[i+1]))
			} else {
				next = append(next, ParentHash(current[i], current[i]))
			}
		}
		layers = append(layers, next)
		current = next
	}
	return layers
}

// ProofFromLayers derives the sibling path for index from in-memory layers.
func ProofFromLayers(layers [][]Hash, index uint64) ([]Hash, error) {
	if len(layers) == 0 || index >= uint64(len(layers[0])) {
		return nil, fmt.Errorf("%w: leaf %d", ErrNotFound, index)
	}
	proof := make([]Hash, 0, len(layers)-1)
	cur := index
	for _, layer := range layers[:len(layers)-1] {
		sib := cur ^ 1
		if sib >= uint64(len(layer)) {
			sib = cur
		}
		proof = append(proof, layer[sib])
		cur /= 2
	}
	return proof, nil
}

// ComputeRoot folds a proof into the leaf using the direction-free parent rule.
func ComputeRoot(leaf Hash, proof []Hash) Hash {
	cur := leaf
	for _, sib := range proof {
		cur = ParentHash(cur, sib)
	}
	return cur
}

// VerifyProof reports whether proof links leaf to root.
func VerifyProof(leaf Hash, proof []Hash, root Hash) bool {
	return ComputeRoot(leaf, proof) == root
}
