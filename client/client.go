package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rewards-backend/core/rewards"
	"rewards-backend/models"
)

// Client talks to the rewardsd HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client for baseURL authenticating with apiKey.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:3001"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-success envelope returned by the server.
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
}

type envelope struct {
	Success bool                  `json:"success"`
	Data    json.RawMessage       `json:"data"`
	Error   *models.ErrorResponse `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Kind: "unknown"}
		if env.Error != nil {
			apiErr.Kind = env.Error.Error
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func epochPath(epoch uint64) string {
	return "/api/epochs/" + strconv.FormatUint(epoch, 10)
}

// BuildEpoch builds epoch, or the one after the latest when epoch is nil.
func (c *Client) BuildEpoch(ctx context.Context, epoch *uint64) (rewards.EpochSnapshot, error) {
	var snap rewards.EpochSnapshot
	err := c.do(ctx, http.MethodPost, "/api/epochs", models.BuildEpochRequest{Epoch: epoch}, &snap)
	return snap, err
}

func (c *Client) ListEpochs(ctx context.Context) ([]rewards.EpochSnapshot, error) {
	var snaps []rewards.EpochSnapshot
	err := c.do(ctx, http.MethodGet, "/api/epochs", nil, &snaps)
	return snaps, err
}

func (c *Client) LatestEpoch(ctx context.Context) (rewards.EpochSnapshot, error) {
	var snap rewards.EpochSnapshot
	err := c.do(ctx, http.MethodGet, "/api/epochs/latest", nil, &snap)
	return snap, err
}

func (c *Client) GetEpoch(ctx context.Context, epoch uint64) (rewards.EpochSnapshot, error) {
	var snap rewards.EpochSnapshot
	err := c.do(ctx, http.MethodGet, epochPath(epoch), nil, &snap)
	return snap, err
}

func (c *Client) LeafFor(ctx context.Context, epoch uint64, wallet string) (rewards.ClaimEntry, error) {
	var entry rewards.ClaimEntry
	err := c.do(ctx, http.MethodGet, epochPath(epoch)+"/wallets/"+url.PathEscape(wallet), nil, &entry)
	return entry, err
}

func (c *Client) Proof(ctx context.Context, epoch, index uint64) (models.ProofResponse, error) {
	var proof models.ProofResponse
	err := c.do(ctx, http.MethodGet, epochPath(epoch)+"/proofs/"+strconv.FormatUint(index, 10), nil, &proof)
	return proof, err
}

// Ticket assembles the claim ticket for wallet in epoch from the leaf and
// proof endpoints, without touching claim state.
func (c *Client) Ticket(ctx context.Context, epoch uint64, wallet string) (rewards.ClaimTicket, error) {
	entry, err := c.LeafFor(ctx, epoch, wallet)
	if err != nil {
		return rewards.ClaimTicket{}, err
	}
	proof, err := c.Proof(ctx, epoch, entry.Index)
	if err != nil {
		return rewards.ClaimTicket{}, err
	}
	return rewards.ClaimTicket{
		Epoch:  entry.Epoch,
		Index:  entry.Index,
		Wallet: entry.Wallet,
		Amount: entry.Amount,
		Proof:  proof.Proof,
		Root:   proof.Root,
	}, nil
}
