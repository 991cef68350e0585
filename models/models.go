package models

import (
	"time"

	"rewards-backend/core/rewards"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store"`
	Gate      string `json:"ticket_gate"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response. kind is the machine-readable
// error class, message the human-readable detail.
func NewErrorResponse(kind, message string, code int) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &ErrorResponse{
			Error:     kind,
			Message:   message,
			Code:      code,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// DefineTasksRequest replaces or extends the task registry.
type DefineTasksRequest struct {
	Tasks []rewards.TaskDefinition `json:"tasks"`
}

// CompleteTaskRequest carries completion evidence. A zero Timestamp means now.
type CompleteTaskRequest struct {
	Evidence  string `json:"evidence"`
	Timestamp uint64 `json:"ts,omitempty"`
}

// PaymentRequest records an external payment.
type PaymentRequest struct {
	Wallet     string `json:"wallet"`
	AmountPaid uint64 `json:"amount_paid"`
	TxRef      string `json:"tx_ref"`
	Timestamp  uint64 `json:"ts,omitempty"`
	PayFor     string `json:"payfor,omitempty"`
}

// BuildEpochRequest asks for a snapshot of the given epoch. A nil Epoch
// builds the epoch after the latest one.
type BuildEpochRequest struct {
	Epoch *uint64 `json:"epoch,omitempty"`
}

// ProofResponse is the inclusion path of one leaf.
type ProofResponse struct {
	Epoch uint64         `json:"epoch"`
	Index uint64         `json:"index"`
	Root  rewards.Hash   `json:"root"`
	Proof []rewards.Hash `json:"proof"`
}

// TicketResponse wraps an issued ticket with its binary encoding.
type TicketResponse struct {
	Ticket rewards.ClaimTicket `json:"ticket"`
	// Encoded is the base64url binary ticket accepted by the settlement layer.
	Encoded string `json:"encoded"`
}

// ClaimReportRequest reports a settlement outcome.
type ClaimReportRequest struct {
	Wallet      string               `json:"wallet"`
	Epoch       uint64               `json:"epoch"`
	Outcome     rewards.ClaimOutcome `json:"outcome"`
	ExternalRef string               `json:"external_ref,omitempty"`
}

// IssueKeyRequest asks for a new API key.
type IssueKeyRequest struct {
	Label string `json:"label"`
	Role  string `json:"role"`
}

// IssueKeyResponse returns the plaintext key once.
type IssueKeyResponse struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
