package services

import (
	"bytes"
	"image/png"
	"testing"

	"rewards-backend/core/rewards"
)

func sampleTicket(t *testing.T, proofLen int) rewards.ClaimTicket {
	t.Helper()
	var key [rewards.WalletKeySize]byte
	for i := range key {
		key[i] = byte(i + 1)
	}
	ticket := rewards.ClaimTicket{
		Epoch:  3,
		Index:  1,
		Wallet: rewards.EncodeWallet(key),
		Amount: 150,
	}
	for i := 0; i < proofLen; i++ {
		var h rewards.Hash
		h[0] = byte(i)
		ticket.Proof = append(ticket.Proof, h)
	}
	return ticket
}

func TestEncodeDecodeTicket(t *testing.T) {
	in := sampleTicket(t, 3)
	enc, err := EncodeTicket(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeTicket(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Wallet != in.Wallet || out.Amount != in.Amount || len(out.Proof) != 3 || out.Proof[2] != in.Proof[2] {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if _, err := DecodeTicket("!!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
}

func TestTicketPNG(t *testing.T) {
	svc := NewQRCodeService()
	for _, n := range []int{0, 20} {
		data, err := svc.TicketPNG(sampleTicket(t, n))
		if err != nil {
			t.Fatalf("proof %d: %v", n, err)
		}
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("proof %d: decode png: %v", n, err)
		}
		if img.Bounds().Dx() != 256 {
			t.Fatalf("proof %d: expected 256px image, got %d", n, img.Bounds().Dx())
		}
	}
}

func TestTicketPNGRejectsBadWallet(t *testing.T) {
	ticket := sampleTicket(t, 1)
	ticket.Wallet = "not-a-wallet"
	if _, err := NewQRCodeService().TicketPNG(ticket); err == nil {
		t.Fatalf("expected error")
	}
}
