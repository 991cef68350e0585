package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/skip2/go-qrcode"

	"rewards-backend/core/rewards"
	"rewards-backend/models"
)

// QRCodeService renders claim tickets as QR images for wallet apps.
type QRCodeService struct {
	size int
}

// NewQRCodeService creates a new QR code service
func NewQRCodeService() *QRCodeService {
	return &QRCodeService{size: 256}
}

// EncodeTicket returns the base64url binary form of a ticket.
func EncodeTicket(t rewards.ClaimTicket) (string, error) {
	raw, err := t.MarshalBinary()
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeTicket parses the EncodeTicket form.
func DecodeTicket(s string) (rewards.ClaimTicket, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return rewards.ClaimTicket{}, fmt.Errorf("decode ticket: %w", err)
	}
	var t rewards.ClaimTicket
	if err := t.UnmarshalBinary(raw); err != nil {
		return rewards.ClaimTicket{}, err
	}
	return t, nil
}

// TicketPNG renders the encoded ticket as a PNG QR code.
func (s *QRCodeService) TicketPNG(t rewards.ClaimTicket) ([]byte, error) {
	content, err := EncodeTicket(t)
	if err != nil {
		return nil, err
	}
	// Large proofs need the lower correction level to stay within QR capacity.
	level := qrcode.Medium
	if len(content) > 1200 {
		level = qrcode.Low
	}
	qr, err := qrcode.New(content, level)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(s.size)); err != nil {
		return nil, fmt.Errorf("failed to encode QR code to PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// HealthService reports process health.
type HealthService struct {
	store string
	gate  rewards.TicketGate
	now   func() time.Time
}

// NewHealthService creates a new health service
func NewHealthService(storeDriver string, gate rewards.TicketGate) *HealthService {
	return &HealthService{store: storeDriver, gate: gate, now: time.Now}
}

// GetHealthStatus returns current health status
func (s *HealthService) GetHealthStatus() *models.HealthResponse {
	return &models.HealthResponse{
		Status:    "healthy",
		Store:     s.store,
		Gate:      string(s.gate),
		Timestamp: s.now().Unix(),
	}
}
