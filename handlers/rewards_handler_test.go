package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/mr-tron/base58"

	"rewards-backend/core/rewards"
	"rewards-backend/metrics"
	"rewards-backend/models"
	"rewards-backend/services"
	auth "rewards-backend/storage/auth"
	store "rewards-backend/storage/rewards"
)

const (
	adminKey    = "admin-key"
	operatorKey = "operator-key"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := auth.NewAPIKeyStore()
	keys.Reload("config", []string{adminKey}, []string{operatorKey})
	rec := metrics.New()
	engine := rewards.NewEngine(store.NewMemoryStore(),
		rewards.WithAuthorizer(rewards.AuthorizerFunc(auth.IsAdmin)),
		rewards.WithLogger(logger),
		rewards.WithRecorder(rec),
	)
	router := NewRouter(RouterConfig{
		Rewards: NewRewardsHandler(engine, services.NewQRCodeService(), logger),
		Keys:    NewAPIKeyHandler(keys, logger),
		Health:  NewHealthHandler(services.NewHealthService("memory", engine.TicketGate())),
		Metrics: rec.Handler(),
		Auth:    keys,
		Logger:  logger,
	})
	return &testServer{t: t, handler: router}
}

func (s *testServer) do(method, path, key string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

// expect asserts the status and decodes the envelope's data into out.
func (s *testServer) expect(rr *httptest.ResponseRecorder, status int, out interface{}) models.APIResponse {
	s.t.Helper()
	if rr.Code != status {
		s.t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
	var env struct {
		models.APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		s.t.Fatalf("decode envelope: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			s.t.Fatalf("decode data: %v", err)
		}
	}
	return env.APIResponse
}

func wallet(seed byte) string {
	key := make([]byte, rewards.WalletKeySize)
	for i := range key {
		key[i] = seed + byte(i)
	}
	return base58.Encode(key)
}

func TestRewardsHTTPLifecycle(t *testing.T) {
	s := newTestServer(t)
	w1 := wallet(1)

	s.expect(s.do(http.MethodPost, "/api/tasks", operatorKey, models.DefineTasksRequest{
		Tasks: []rewards.TaskDefinition{{TaskID: "T1", Reward: 100}},
	}), http.StatusForbidden, nil)

	var defs []rewards.TaskDefinition
	s.expect(s.do(http.MethodPost, "/api/tasks", adminKey, models.DefineTasksRequest{
		Tasks: []rewards.TaskDefinition{{TaskID: "T1", Reward: 100}, {TaskID: "SUB", Reward: 40, PayFor: "ai_subscription"}},
	}), http.StatusOK, &defs)
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}

	var state rewards.UserTaskState
	s.expect(s.do(http.MethodPost, "/api/wallets/"+w1+"/tasks/T1/complete", operatorKey,
		models.CompleteTaskRequest{Evidence: "proof-url", Timestamp: 42}), http.StatusOK, &state)
	if task := findTask(t, state, "T1"); task.Status != rewards.StatusCompleted || task.RewardAmount != 100 || task.CompletedAt != 42 {
		t.Fatalf("unexpected task after completion: %+v", task)
	}

	var pay rewards.PaymentRecord
	s.expect(s.do(http.MethodPost, "/api/payments", operatorKey, models.PaymentRequest{
		Wallet: w1, AmountPaid: 9, TxRef: "tx-1", Timestamp: 43, PayFor: "ai_subscription",
	}), http.StatusCreated, &pay)
	if pay.Seq != 0 || pay.TxRef != "tx-1" {
		t.Fatalf("unexpected payment %+v", pay)
	}

	var snap rewards.EpochSnapshot
	s.expect(s.do(http.MethodPost, "/api/epochs", adminKey, nil), http.StatusCreated, &snap)
	if snap.Epoch != 1 || snap.LeafCount != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	s.expect(s.do(http.MethodPost, "/api/epochs", adminKey, models.BuildEpochRequest{Epoch: &snap.Epoch}), http.StatusConflict, nil)

	var latest rewards.EpochSnapshot
	s.expect(s.do(http.MethodGet, "/api/epochs/latest", operatorKey, nil), http.StatusOK, &latest)
	if latest.Root != snap.Root {
		t.Fatalf("latest root mismatch")
	}

	var leaf rewards.ClaimEntry
	s.expect(s.do(http.MethodGet, "/api/epochs/1/wallets/"+w1, operatorKey, nil), http.StatusOK, &leaf)
	if leaf.Amount != 140 || leaf.Index != 0 {
		t.Fatalf("unexpected leaf %+v", leaf)
	}

	var proof models.ProofResponse
	s.expect(s.do(http.MethodGet, "/api/epochs/1/proofs/0", operatorKey, nil), http.StatusOK, &proof)
	if len(proof.Proof) != 0 || proof.Root != snap.Root {
		t.Fatalf("single leaf epoch must have an empty proof: %+v", proof)
	}

	var ticket models.TicketResponse
	s.expect(s.do(http.MethodPost, "/api/wallets/"+w1+"/ticket", operatorKey, nil), http.StatusOK, &ticket)
	if !ticket.Ticket.Verify() || ticket.Ticket.Amount != 140 || ticket.Encoded == "" {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
	s.expect(s.do(http.MethodPost, "/api/wallets/"+w1+"/ticket", operatorKey, nil), http.StatusConflict, nil)

	rr := s.do(http.MethodGet, "/api/tickets/qr?ticket="+url.QueryEscape(ticket.Encoded), operatorKey, nil)
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("expected png, got %d %s", rr.Code, rr.Header().Get("Content-Type"))
	}

	s.expect(s.do(http.MethodPost, "/api/claims", operatorKey, models.ClaimReportRequest{
		Wallet: w1, Epoch: 1, Outcome: rewards.ClaimSuccess, ExternalRef: "sig-1",
	}), http.StatusOK, &state)
	if state.TotalUnclaimed != 0 {
		t.Fatalf("expected nothing unclaimed, got %d", state.TotalUnclaimed)
	}
	for _, task := range state.Tasks {
		if task.Status != rewards.StatusClaimed {
			t.Fatalf("task %s: expected claimed, got %s", task.TaskID, task.Status)
		}
	}
}

func TestRewardsHTTPErrors(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		name   string
		method string
		path   string
		key    string
		body   interface{}
		status int
		kind   string
	}{
		{"no key", http.MethodGet, "/api/tasks", "", nil, http.StatusUnauthorized, "api_key_required"},
		{"bad key", http.MethodGet, "/api/tasks", "nope", nil, http.StatusForbidden, "api_key_invalid"},
		{"bad wallet", http.MethodGet, "/api/wallets/xyz/tasks", operatorKey, nil, http.StatusBadRequest, "invalid_address"},
		{"unknown task", http.MethodPost, "/api/wallets/" + wallet(2) + "/tasks/NOPE/complete", operatorKey, nil, http.StatusNotFound, "not_found"},
		{"empty epoch", http.MethodPost, "/api/epochs", adminKey, nil, http.StatusUnprocessableEntity, "empty"},
		{"build as operator", http.MethodPost, "/api/epochs", operatorKey, nil, http.StatusForbidden, "permission_denied"},
		{"missing epoch", http.MethodGet, "/api/epochs/9", operatorKey, nil, http.StatusNotFound, "not_found"},
		{"non numeric epoch", http.MethodGet, "/api/epochs/abc", operatorKey, nil, http.StatusBadRequest, "invalid_input"},
		{"no latest", http.MethodGet, "/api/epochs/latest", operatorKey, nil, http.StatusNotFound, "not_found"},
		{"ticket without leaf", http.MethodPost, "/api/wallets/" + wallet(3) + "/ticket", operatorKey, nil, http.StatusNotFound, "not_found"},
		{"missing payment", http.MethodGet, "/api/payments/5", operatorKey, nil, http.StatusNotFound, "not_found"},
		{"unknown outcome", http.MethodPost, "/api/claims", operatorKey, models.ClaimReportRequest{Wallet: wallet(4), Epoch: 1, Outcome: "maybe"}, http.StatusBadRequest, "invalid_input"},
		{"unknown field", http.MethodPost, "/api/payments", operatorKey, map[string]any{"wallet": wallet(4), "bogus": 1}, http.StatusBadRequest, "invalid_json"},
		{"qr without ticket", http.MethodGet, "/api/tickets/qr", operatorKey, nil, http.StatusBadRequest, "invalid_input"},
		{"issue key as operator", http.MethodPost, "/api/keys", operatorKey, models.IssueKeyRequest{Label: "x"}, http.StatusForbidden, "permission_denied"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s.t = t
			env := s.expect(s.do(tc.method, tc.path, tc.key, tc.body), tc.status, nil)
			if env.Success || env.Error == nil || env.Error.Error != tc.kind {
				t.Fatalf("expected error kind %q, got %+v", tc.kind, env.Error)
			}
		})
	}
}

func TestIssueKeyThenUseIt(t *testing.T) {
	s := newTestServer(t)
	var issued models.IssueKeyResponse
	s.expect(s.do(http.MethodPost, "/api/keys", adminKey, models.IssueKeyRequest{Label: "ci", Role: "operator"}), http.StatusCreated, &issued)
	if issued.Key == "" || issued.Role != "operator" {
		t.Fatalf("unexpected key %+v", issued)
	}

	var self auth.APIKey
	s.expect(s.do(http.MethodGet, "/api/keys/self", issued.Key, nil), http.StatusOK, &self)
	if self.Label != "ci" || self.Key != "" || self.IsAdmin() {
		t.Fatalf("unexpected self %+v", self)
	}
	s.expect(s.do(http.MethodPost, "/api/keys", adminKey, models.IssueKeyRequest{Role: "root"}), http.StatusBadRequest, nil)
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	var health models.HealthResponse
	rr := s.do(http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil || health.Gate != "global" || health.Store != "memory" {
		t.Fatalf("unexpected health %+v (%v)", health, err)
	}

	rr = s.do(http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "rewards_snapshots_total") {
		t.Fatalf("metrics endpoint missing reward metrics: %d", rr.Code)
	}

	rr = s.do(http.MethodGet, "/swagger/doc.json", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("swagger: %d", rr.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("swagger doc is not json: %v", err)
	}
	if _, ok := doc["paths"].(map[string]any)["/api/claims"]; !ok {
		t.Fatalf("swagger doc missing /api/claims")
	}
}

func TestProofsForEveryLeafOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.expect(s.do(http.MethodPost, "/api/tasks", adminKey, models.DefineTasksRequest{
		Tasks: []rewards.TaskDefinition{{TaskID: "T1", Reward: 10}},
	}), http.StatusOK, nil)
	for seed := byte(1); seed <= 5; seed++ {
		s.expect(s.do(http.MethodPost, "/api/wallets/"+wallet(seed*7)+"/tasks/T1/complete", operatorKey, nil), http.StatusOK, nil)
	}
	var snap rewards.EpochSnapshot
	s.expect(s.do(http.MethodPost, "/api/epochs", adminKey, models.BuildEpochRequest{}), http.StatusCreated, &snap)
	if snap.LeafCount != 5 {
		t.Fatalf("expected 5 leaves, got %d", snap.LeafCount)
	}
	for seed := byte(1); seed <= 5; seed++ {
		w := wallet(seed * 7)
		var leaf rewards.ClaimEntry
		s.expect(s.do(http.MethodGet, "/api/epochs/1/wallets/"+w, operatorKey, nil), http.StatusOK, &leaf)
		var proof models.ProofResponse
		s.expect(s.do(http.MethodGet, "/api/epochs/1/proofs/"+strconv.FormatUint(leaf.Index, 10), operatorKey, nil), http.StatusOK, &proof)
		ticket := rewards.ClaimTicket{Epoch: 1, Index: leaf.Index, Wallet: w, Amount: leaf.Amount, Proof: proof.Proof, Root: proof.Root}
		if !ticket.Verify() {
			t.Fatalf("proof for %s does not reach the root", w)
		}
	}
}

func findTask(t *testing.T, state rewards.UserTaskState, taskID string) rewards.TaskDetail {
	t.Helper()
	for _, task := range state.Tasks {
		if task.TaskID == taskID {
			return task
		}
	}
	t.Fatalf("task %s missing from %s", taskID, state.Wallet)
	return rewards.TaskDetail{}
}
