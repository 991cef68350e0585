package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rewards-backend/core/rewards"
	"rewards-backend/models"
	"rewards-backend/services"
)

// RewardsHandler exposes the reward engine over HTTP.
type RewardsHandler struct {
	*BaseHandler
	engine *rewards.Engine
	qr     *services.QRCodeService
	now    func() time.Time
}

// NewRewardsHandler creates a new rewards handler
func NewRewardsHandler(engine *rewards.Engine, qr *services.QRCodeService, logger *slog.Logger) *RewardsHandler {
	return &RewardsHandler{
		BaseHandler: NewBaseHandler(logger),
		engine:      engine,
		qr:          qr,
		now:         time.Now,
	}
}

// stamp returns ts, or the current unix time when the caller left it zero.
func (h *RewardsHandler) stamp(ts uint64) uint64 {
	if ts != 0 {
		return ts
	}
	return uint64(h.now().Unix())
}

// HandleListTasks lists the task registry
// @Summary List task definitions
// @Tags Tasks
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/tasks [get]
func (h *RewardsHandler) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	defs, err := h.engine.ListTasks(r.Context())
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, defs)
}

// HandleDefineTasks upserts task definitions (admin)
// @Summary Define tasks
// @Tags Tasks
// @Accept json
// @Produce json
// @Param body body models.DefineTasksRequest true "task definitions"
// @Success 200 {object} models.APIResponse
// @Failure 403 {object} models.APIResponse
// @Router /api/tasks [post]
func (h *RewardsHandler) HandleDefineTasks(w http.ResponseWriter, r *http.Request) {
	var req models.DefineTasksRequest
	if err := h.parseJSON(w, r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := h.engine.DefineTasks(r.Context(), req.Tasks); err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	defs, err := h.engine.ListTasks(r.Context())
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, defs)
}

// HandleGetWalletTasks returns a wallet's task aggregate, materializing it on first access
// @Summary Get wallet tasks
// @Tags Tasks
// @Produce json
// @Param wallet path string true "base58 wallet"
// @Success 200 {object} models.APIResponse
// @Router /api/wallets/{wallet}/tasks [get]
func (h *RewardsHandler) HandleGetWalletTasks(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.GetOrInitTasks(r.Context(), r.PathValue("wallet"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, state)
}

// HandleStartTask moves a task to in_progress
// @Summary Start task
// @Tags Tasks
// @Produce json
// @Param wallet path string true "base58 wallet"
// @Param taskid path string true "task id"
// @Success 200 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/wallets/{wallet}/tasks/{taskid}/start [post]
func (h *RewardsHandler) HandleStartTask(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.StartTask(r.Context(), r.PathValue("wallet"), r.PathValue("taskid"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, state)
}

// HandleCompleteTask marks a task completed and pins its reward
// @Summary Complete task
// @Tags Tasks
// @Accept json
// @Produce json
// @Param wallet path string true "base58 wallet"
// @Param taskid path string true "task id"
// @Param body body models.CompleteTaskRequest false "evidence"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/wallets/{wallet}/tasks/{taskid}/complete [post]
func (h *RewardsHandler) HandleCompleteTask(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteTaskRequest
	if r.ContentLength != 0 {
		if err := h.parseJSON(w, r, &req); err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
	}
	state, err := h.engine.CompleteTask(r.Context(), r.PathValue("wallet"), r.PathValue("taskid"), req.Evidence, h.stamp(req.Timestamp))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, state)
}

// HandleRecordPayment appends a payment to the ledger
// @Summary Record payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param body body models.PaymentRequest true "payment"
// @Success 201 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /api/payments [post]
func (h *RewardsHandler) HandleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := h.parseJSON(w, r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	rec, err := h.engine.RecordPayment(r.Context(), req.Wallet, req.AmountPaid, req.TxRef, h.stamp(req.Timestamp), req.PayFor)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusCreated, rec)
}

// HandleListPayments lists ledger entries, optionally for one wallet
// @Summary List payments
// @Tags Payments
// @Produce json
// @Param wallet query string false "base58 wallet"
// @Success 200 {object} models.APIResponse
// @Router /api/payments [get]
func (h *RewardsHandler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	recs, err := h.engine.ListPayments(r.Context(), r.URL.Query().Get("wallet"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, recs)
}

// HandleGetPayment returns one ledger entry
// @Summary Get payment
// @Tags Payments
// @Produce json
// @Param seq path int true "sequence number"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/payments/{seq} [get]
func (h *RewardsHandler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	seq, err := pathUint(r, "seq")
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	rec, err := h.engine.GetPayment(r.Context(), seq)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, rec)
}

// HandleBuildEpoch freezes an epoch snapshot (admin)
// @Summary Build epoch snapshot
// @Description Builds the requested epoch, or the one after the latest when no epoch is given.
// @Tags Epochs
// @Accept json
// @Produce json
// @Param body body models.BuildEpochRequest false "epoch"
// @Success 201 {object} models.APIResponse
// @Failure 403 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Failure 422 {object} models.APIResponse
// @Router /api/epochs [post]
func (h *RewardsHandler) HandleBuildEpoch(w http.ResponseWriter, r *http.Request) {
	var req models.BuildEpochRequest
	if r.ContentLength != 0 {
		if err := h.parseJSON(w, r, &req); err != nil {
			h.sendError(w, http.StatusBadRequest, "invalid_json", err.Error())
			return
		}
	}
	var epoch uint64
	if req.Epoch != nil {
		epoch = *req.Epoch
	} else {
		latest, err := h.engine.LatestEpoch(r.Context())
		switch {
		case err == nil:
			epoch = latest.Epoch + 1
		case errors.Is(err, rewards.ErrNotFound):
			epoch = 1
		default:
			h.sendEngineError(w, r, err)
			return
		}
	}
	snap, err := h.engine.BuildSnapshot(r.Context(), epoch)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusCreated, snap)
}

// HandleListEpochs lists built epochs
// @Summary List epochs
// @Tags Epochs
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/epochs [get]
func (h *RewardsHandler) HandleListEpochs(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.engine.ListEpochs(r.Context())
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, snaps)
}

// HandleLatestEpoch returns the highest built epoch
// @Summary Latest epoch
// @Tags Epochs
// @Produce json
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/epochs/latest [get]
func (h *RewardsHandler) HandleLatestEpoch(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.LatestEpoch(r.Context())
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, snap)
}

// HandleGetEpoch returns one epoch's metadata
// @Summary Get epoch
// @Tags Epochs
// @Produce json
// @Param epoch path int true "epoch"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/epochs/{epoch} [get]
func (h *RewardsHandler) HandleGetEpoch(w http.ResponseWriter, r *http.Request) {
	epoch, err := pathUint(r, "epoch")
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	snap, err := h.engine.GetEpoch(r.Context(), epoch)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, snap)
}

// HandleGetLeaf returns a wallet's leaf in an epoch
// @Summary Get wallet leaf
// @Tags Epochs
// @Produce json
// @Param epoch path int true "epoch"
// @Param wallet path string true "base58 wallet"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/epochs/{epoch}/wallets/{wallet} [get]
func (h *RewardsHandler) HandleGetLeaf(w http.ResponseWriter, r *http.Request) {
	epoch, err := pathUint(r, "epoch")
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	entry, err := h.engine.LeafFor(r.Context(), epoch, r.PathValue("wallet"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, entry)
}

// HandleGetProof returns the inclusion proof of a leaf index
// @Summary Get proof
// @Tags Epochs
// @Produce json
// @Param epoch path int true "epoch"
// @Param index path int true "leaf index"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/epochs/{epoch}/proofs/{index} [get]
func (h *RewardsHandler) HandleGetProof(w http.ResponseWriter, r *http.Request) {
	epoch, err := pathUint(r, "epoch")
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	index, err := pathUint(r, "index")
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	snap, err := h.engine.GetEpoch(r.Context(), epoch)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	proof, err := h.engine.ProveLeaf(r.Context(), epoch, index)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, models.ProofResponse{Epoch: epoch, Index: index, Root: snap.Root, Proof: proof})
}

// HandleIssueTicket issues a claim ticket for the wallet's latest epoch
// @Summary Issue claim ticket
// @Tags Claims
// @Produce json
// @Param wallet path string true "base58 wallet"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/wallets/{wallet}/ticket [post]
func (h *RewardsHandler) HandleIssueTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.engine.IssueTicket(r.Context(), r.PathValue("wallet"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	encoded, err := services.EncodeTicket(ticket)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, models.TicketResponse{Ticket: ticket, Encoded: encoded})
}

// HandleTicketQR renders an encoded ticket as a QR code
// @Summary Ticket QR code
// @Tags Claims
// @Produce png
// @Param ticket query string true "base64url ticket"
// @Success 200 {file} binary
// @Failure 400 {object} models.APIResponse
// @Router /api/tickets/qr [get]
func (h *RewardsHandler) HandleTicketQR(w http.ResponseWriter, r *http.Request) {
	encoded := r.URL.Query().Get("ticket")
	if encoded == "" {
		h.sendError(w, http.StatusBadRequest, "invalid_input", "ticket parameter required")
		return
	}
	ticket, err := services.DecodeTicket(encoded)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	if !ticket.Verify() {
		h.sendError(w, http.StatusBadRequest, "invalid_input", "ticket proof does not reach its root")
		return
	}
	data, err := h.qr.TicketPNG(ticket)
	if err != nil {
		h.sendEngineError(w, r, fmt.Errorf("render ticket: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}

// HandleReportClaim records the settlement layer's verdict on a ticket
// @Summary Report claim result
// @Tags Claims
// @Accept json
// @Produce json
// @Param body body models.ClaimReportRequest true "outcome"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/claims [post]
func (h *RewardsHandler) HandleReportClaim(w http.ResponseWriter, r *http.Request) {
	var req models.ClaimReportRequest
	if err := h.parseJSON(w, r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	state, err := h.engine.ReportClaimResult(r.Context(), req.Wallet, req.Epoch, req.Outcome, req.ExternalRef)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, state)
}
