package rewards

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// WalletKeySize is the byte length of a decoded wallet public key.
const WalletKeySize = 32

// DecodeWallet decodes a base58 wallet address into its 32-byte public key.
func DecodeWallet(wallet string) ([WalletKeySize]byte, error) {
	var key [WalletKeySize]byte
	if wallet == "" {
		return key, fmt.Errorf("%w: empty wallet", ErrInvalidAddress)
	}
	raw, err := base58.Decode(wallet)
	if err != nil {
		return key, fmt.Errorf("%w: %q is not base58: %v", ErrInvalidAddress, wallet, err)
	}
	if len(raw) != WalletKeySize {
		return key, fmt.Errorf("%w: %q decodes to %d bytes, want %d", ErrInvalidAddress, wallet, len(raw), WalletKeySize)
	}
	copy(key[:], raw)
	return key, nil
}

// EncodeWallet renders a public key in the base58 form used as wallet id.
func EncodeWallet(key [WalletKeySize]byte) string {
	return base58.Encode(key[:])
}
