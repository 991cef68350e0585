package mcp

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"rewards-backend/middleware"
	"rewards-backend/models"
)

// CallRequest is the body of POST /mcp/call.
type CallRequest struct {
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolInfo describes one tool for GET /mcp/tools.
type ToolInfo struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	InputSchema mcp.ToolInputSchema `json:"input_schema"`
}

var kindStatus = map[string]int{
	"permission_denied": http.StatusForbidden,
	"not_found":         http.StatusNotFound,
	"already_exists":    http.StatusConflict,
	"invalid_state":     http.StatusConflict,
	"invalid_address":   http.StatusBadRequest,
	"invalid_input":     http.StatusBadRequest,
	"empty":             http.StatusUnprocessableEntity,
	"corrupt":           http.StatusInternalServerError,
	"internal":          http.StatusInternalServerError,
}

// HTTPHandler serves the tools over plain JSON for clients without an MCP
// transport. Mount it behind middleware.APIAuth; calls run as the caller's key.
func (s *MCPServer) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /mcp/tools", s.handleListTools)
	mux.HandleFunc("POST /mcp/call", s.handleToolCall)
	return mux
}

func (s *MCPServer) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools := s.Tools()
	infos := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		infos = append(infos, ToolInfo{Name: t.Tool.Name, Description: t.Tool.Description, InputSchema: t.Tool.InputSchema})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	middleware.JSON(w, http.StatusOK, models.NewSuccessResponse(infos))
}

func (s *MCPServer) handleToolCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		middleware.Error(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if req.Tool == "" {
		middleware.Error(w, http.StatusBadRequest, "missing_tool", "tool name required")
		return
	}

	for _, t := range s.Tools() {
		if t.Tool.Name != req.Tool {
			continue
		}
		res, err := t.Handler(r.Context(), mcp.CallToolRequest{
			Params: mcp.CallToolParams{Name: req.Tool, Arguments: req.Arguments},
		})
		if err != nil {
			s.logger.Error("tool call failed", "tool", req.Tool, "error", err)
			middleware.Error(w, http.StatusInternalServerError, "internal", "tool call failed")
			return
		}
		text := resultText(res)
		if res.IsError {
			kind, msg, _ := strings.Cut(text, ": ")
			status, ok := kindStatus[kind]
			if !ok {
				kind, msg, status = "invalid_input", text, http.StatusBadRequest
			}
			middleware.Error(w, status, kind, msg)
			return
		}
		middleware.JSON(w, http.StatusOK, models.NewSuccessResponse(json.RawMessage(text)))
		return
	}
	middleware.Error(w, http.StatusNotFound, "unknown_tool", "no tool named "+req.Tool)
}

func resultText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if text, ok := c.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}
