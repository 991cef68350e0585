package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"rewards-backend/core/rewards"
	"rewards-backend/services"
	auth "rewards-backend/storage/auth"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes the reward engine as MCP tools.
type MCPServer struct {
	mcpServer *server.MCPServer
	engine    *rewards.Engine
	identity  auth.APIKey
	logger    *slog.Logger
}

// NewMCPServer builds the tool server. Every tool call runs as identity.
func NewMCPServer(engine *rewards.Engine, identity auth.APIKey, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	mcpServer := server.NewMCPServer(
		"Rewards MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s := &MCPServer{
		mcpServer: mcpServer,
		engine:    engine,
		identity:  identity,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server for transport setup
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

type toolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Tools lists every tool with its handler, in registration order.
func (s *MCPServer) Tools() []server.ServerTool {
	walletArg := mcp.WithString("wallet", mcp.Required(), mcp.Description("Base58 wallet public key"))
	epochArg := mcp.WithNumber("epoch", mcp.Required(), mcp.Description("Epoch number"))
	taskArg := mcp.WithString("taskid", mcp.Required(), mcp.Description("Task identifier"))

	tool := func(t mcp.Tool, h toolHandler) server.ServerTool {
		return server.ServerTool{Tool: t, Handler: server.ToolHandlerFunc(h)}
	}
	return []server.ServerTool{
		tool(mcp.NewTool("list_tasks",
			mcp.WithDescription("List the task registry"),
		), s.handleListTasks),
		tool(mcp.NewTool("define_tasks",
			mcp.WithDescription("Insert or update task definitions (admin)"),
			mcp.WithArray("tasks", mcp.Required(), mcp.Description("Objects with taskid, reward and optional payfor")),
		), s.handleDefineTasks),
		tool(mcp.NewTool("get_wallet_tasks",
			mcp.WithDescription("Get a wallet's task statuses and unclaimed total"),
			walletArg,
		), s.handleGetWalletTasks),
		tool(mcp.NewTool("start_task",
			mcp.WithDescription("Mark a task in progress for a wallet"),
			walletArg, taskArg,
		), s.handleStartTask),
		tool(mcp.NewTool("complete_task",
			mcp.WithDescription("Mark a task completed for a wallet and pin its reward"),
			walletArg, taskArg,
			mcp.WithString("evidence", mcp.Description("Completion evidence")),
			mcp.WithNumber("ts", mcp.Description("Completion unix time")),
		), s.handleCompleteTask),
		tool(mcp.NewTool("record_payment",
			mcp.WithDescription("Append a payment; a payfor tag completes the matching task"),
			walletArg,
			mcp.WithNumber("amount_paid", mcp.Required(), mcp.Description("Amount paid")),
			mcp.WithString("tx_ref", mcp.Required(), mcp.Description("External transaction reference")),
			mcp.WithNumber("ts", mcp.Description("Payment unix time")),
			mcp.WithString("payfor", mcp.Description("Task tag the payment is for")),
		), s.handleRecordPayment),
		tool(mcp.NewTool("list_payments",
			mcp.WithDescription("List ledger entries, optionally for one wallet"),
			mcp.WithString("wallet", mcp.Description("Base58 wallet public key")),
		), s.handleListPayments),
		tool(mcp.NewTool("build_epoch",
			mcp.WithDescription("Freeze an epoch Merkle snapshot (admin)"),
			epochArg,
		), s.handleBuildEpoch),
		tool(mcp.NewTool("list_epochs",
			mcp.WithDescription("List built epochs"),
		), s.handleListEpochs),
		tool(mcp.NewTool("get_epoch",
			mcp.WithDescription("Get an epoch's root and leaf count"),
			epochArg,
		), s.handleGetEpoch),
		tool(mcp.NewTool("get_leaf",
			mcp.WithDescription("Get a wallet's leaf index and amount in an epoch"),
			epochArg, walletArg,
		), s.handleGetLeaf),
		tool(mcp.NewTool("prove_leaf",
			mcp.WithDescription("Get the inclusion proof of a leaf"),
			epochArg,
			mcp.WithNumber("index", mcp.Required(), mcp.Description("Leaf index")),
		), s.handleProveLeaf),
		tool(mcp.NewTool("issue_ticket",
			mcp.WithDescription("Issue a claim ticket for the wallet's latest epoch"),
			walletArg,
		), s.handleIssueTicket),
		tool(mcp.NewTool("verify_ticket",
			mcp.WithDescription("Check that an encoded ticket's proof reaches its root"),
			mcp.WithString("ticket", mcp.Required(), mcp.Description("Base64url binary ticket")),
		), s.handleVerifyTicket),
		tool(mcp.NewTool("report_claim_result",
			mcp.WithDescription("Record the settlement outcome of a ticket"),
			walletArg, epochArg,
			mcp.WithString("outcome", mcp.Required(), mcp.Enum(string(rewards.ClaimSuccess), string(rewards.ClaimFailed))),
			mcp.WithString("external_ref", mcp.Description("Settlement transaction reference")),
		), s.handleReportClaim),
	}
}

func (s *MCPServer) registerTools() {
	s.mcpServer.AddTools(s.Tools()...)
}

// ctx attaches the server identity unless the caller already carries a key,
// as calls through HTTPHandler do.
func (s *MCPServer) ctx(ctx context.Context) context.Context {
	if _, ok := auth.FromContext(ctx); ok {
		return ctx
	}
	return auth.NewContext(ctx, s.identity)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func engineError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", rewards.Kind(err), err)), nil
}

// uintArg reads a non-negative integer given as a JSON number or decimal
// string. Strings carry values above 2^53 exactly.
func uintArg(args map[string]interface{}, key string, required bool) (uint64, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		if required {
			return 0, fmt.Errorf("required argument %q not found", key)
		}
		return 0, nil
	}
	switch v := raw.(type) {
	case float64:
		if v < 0 || v != math.Trunc(v) || v >= math.MaxUint64 {
			return 0, fmt.Errorf("argument %q must be a non-negative integer", key)
		}
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("argument %q must be a non-negative integer", key)
		}
		return uint64(v), nil
	case uint64:
		return v, nil
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q must be a non-negative integer", key)
		}
		return n, nil
	}
	return 0, fmt.Errorf("argument %q must be a number", key)
}

func (s *MCPServer) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	defs, err := s.engine.ListTasks(s.ctx(ctx))
	if err != nil {
		return engineError(err)
	}
	return jsonResult(defs)
}

func (s *MCPServer) handleDefineTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, ok := request.GetArguments()["tasks"].([]interface{})
	if !ok {
		return mcp.NewToolResultError("tasks must be an array"), nil
	}
	defs := make([]rewards.TaskDefinition, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("tasks[%d] must be an object", i)), nil
		}
		id, _ := obj["taskid"].(string)
		payfor, _ := obj["payfor"].(string)
		reward, err := uintArg(obj, "reward", true)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("tasks[%d]: %v", i, err)), nil
		}
		defs = append(defs, rewards.TaskDefinition{TaskID: id, Reward: reward, PayFor: payfor})
	}
	if err := s.engine.DefineTasks(s.ctx(ctx), defs); err != nil {
		return engineError(err)
	}
	return jsonResult(map[string]int{"defined": len(defs)})
}

func (s *MCPServer) handleGetWalletTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wallet, err := request.RequireString("wallet")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.engine.GetOrInitTasks(s.ctx(ctx), wallet)
	if err != nil {
		return engineError(err)
	}
	return jsonResult(state)
}

func (s *MCPServer) handleStartTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wallet, err := request.RequireString("wallet")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	taskID, err := request.RequireString("taskid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.engine.StartTask(s.ctx(ctx), wallet, taskID)
	if err != nil {
		return engineError(err)
	}
	return jsonResult(state)
}

func (s *MCPServer) handleCompleteTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wallet, err := request.RequireString("wallet")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	taskID, err := request.RequireString("taskid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts, err := uintArg(request.GetArguments(), "ts", false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.engine.CompleteTask(s.ctx(ctx), wallet, taskID, request.GetString("evidence", ""), ts)
	if err != nil {
		return engineError(err)
	}
	return jsonResult(state)
}

func (s *MCPServer) handleRecordPayment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	wallet, err := request.RequireString("wallet")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	txRef, err := request.RequireString("tx_ref")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	amount, err := uintArg(args, "amount_paid", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts, err := uintArg(args, "ts", false)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.engine.RecordPayment(s.ctx(ctx), wallet, amount, txRef, ts, request.GetString("payfor", ""))
	if err != nil {
		return engineError(err)
	}
	return jsonResult(rec)
}

func (s *MCPServer) handleListPayments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs, err := s.engine.ListPayments(s.ctx(ctx), request.GetString("wallet", ""))
	if err != nil {
		return engineError(err)
	}
	return jsonResult(recs)
}

func (s *MCPServer) handleBuildEpoch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	epoch, err := uintArg(request.GetArguments(), "epoch", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.engine.BuildSnapshot(s.ctx(ctx), epoch)
	if err != nil {
		return engineError(err)
	}
	return jsonResult(snap)
}

func (s *MCPServer) handleListEpochs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snaps, err := s.engine.ListEpochs(s.ctx(ctx))
	if err != nil {
		return engineError(err)
	}
	return jsonResult(snaps)
}

func (s *MCPServer) handleGetEpoch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	epoch, err := uintArg(request.GetArguments(), "epoch", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.engine.GetEpoch(s.ctx(ctx), epoch)
	if err != nil {
		return engineError(err)
	}
	return jsonResult(snap)
}

func (s *MCPServer) handleGetLeaf(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	epoch, err := uintArg(request.GetArguments(), "epoch", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	wallet, err := request.RequireString("wallet")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.engine.LeafFor(s.ctx(ctx), epoch, wallet)
	if err != nil {
		return engineError(err)
	}
	return jsonResult(entry)
}

func (s *MCPServer) handleProveLeaf(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	epoch, err := uintArg(args, "epoch", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := uintArg(args, "index", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	proof, err := s.engine.ProveLeaf(s.ctx(ctx), epoch, index)
	if err != nil {
		return engineError(err)
	}
	return jsonResult(map[string]interface{}{"epoch": epoch, "index": index, "proof": proof})
}

func (s *MCPServer) handleIssueTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wallet, err := request.RequireString("wallet")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ticket, err := s.engine.IssueTicket(s.ctx(ctx), wallet)
	if err != nil {
		return engineError(err)
	}
	encoded, err := services.EncodeTicket(ticket)
	if err != nil {
		return engineError(err)
	}
	return jsonResult(map[string]interface{}{"ticket": ticket, "encoded": encoded})
}

func (s *MCPServer) handleVerifyTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	encoded, err := request.RequireString("ticket")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ticket, err := services.DecodeTicket(encoded)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{"valid": ticket.Verify(), "ticket": ticket})
}

func (s *MCPServer) handleReportClaim(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wallet, err := request.RequireString("wallet")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	epoch, err := uintArg(request.GetArguments(), "epoch", true)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	outcome, err := request.RequireString("outcome")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	state, err := s.engine.ReportClaimResult(s.ctx(ctx), wallet, epoch, rewards.ClaimOutcome(outcome), request.GetString("external_ref", ""))
	if err != nil {
		return engineError(err)
	}
	return jsonResult(state)
}
