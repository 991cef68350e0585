package rewards_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"rewards-backend/core/rewards"
)

func TestDecodeWallet(t *testing.T) {
	key := testKey(1)
	got, err := rewards.DecodeWallet(rewards.EncodeWallet(key))
	require.NoError(t, err)
	require.Equal(t, key, got)

	cases := map[string]string{
		"empty":      "",
		"not base58": "0OIl" + strings.Repeat("1", 40),
		"too short":  rewards.EncodeWallet(key)[:10],
		"too long":   rewards.EncodeWallet(key) + "2222",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := rewards.DecodeWallet(in)
			require.ErrorIs(t, err, rewards.ErrInvalidAddress)
		})
	}
}

func sampleTicket(t *testing.T, n, index int) rewards.ClaimTicket {
	t.Helper()
	entries := make([]rewards.Hash, n)
	for i := range entries {
		entries[i] = rewards.LeafHash(4, uint64(i), testKey(byte(i+1)), uint64(10*(i+1)))
	}
	layers := rewards.BuildLayers(entries)
	proof, err := rewards.ProofFromLayers(layers, uint64(index))
	require.NoError(t, err)
	return rewards.ClaimTicket{
		Epoch:  4,
		Index:  uint64(index),
		Wallet: testWallet(byte(index + 1)),
		Amount: uint64(10 * (index + 1)),
		Proof:  proof,
		Root:   layers[len(layers)-1][0],
	}
}

func TestTicketVerify(t *testing.T) {
	ticket := sampleTicket(t, 5, 3)
	require.True(t, ticket.Verify())

	ticket.Amount++
	require.False(t, ticket.Verify())

	ticket = sampleTicket(t, 5, 3)
	ticket.Wallet = "bad"
	require.False(t, ticket.Verify())
}

func TestTicketBinaryLayout(t *testing.T) {
	ticket := sampleTicket(t, 6, 4)
	data, err := ticket.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 8+8+32+8+32+4+len(ticket.Proof)*32)

	var back rewards.ClaimTicket
	require.NoError(t, back.UnmarshalBinary(data))
	require.Equal(t, ticket, back)
	require.True(t, back.Verify())

	require.Error(t, back.UnmarshalBinary(data[:20]))
	require.Error(t, back.UnmarshalBinary(data[:len(data)-1]))
}

func TestParseTicketGate(t *testing.T) {
	g, ok := rewards.ParseTicketGate("")
	require.True(t, ok)
	require.Equal(t, rewards.TicketGateGlobal, g)

	g, ok = rewards.ParseTicketGate("epoch")
	require.True(t, ok)
	require.Equal(t, rewards.TicketGateEpoch, g)

	_, ok = rewards.ParseTicketGate("wallet")
	require.False(t, ok)
}
