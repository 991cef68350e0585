// Package docs registers the OpenAPI document served at /swagger/doc.json.
// Regenerate with `swag init -g cmd/rewardsd/main.go` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "in": "header", "name": "X-API-Key"}
    },
    "security": [{"ApiKeyAuth": []}],
    "paths": {
        "/healthz": {"get": {"tags": ["Health"], "summary": "Health check", "produces": ["application/json"], "security": [],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.HealthResponse"}}}}},
        "/api/tasks": {
            "get": {"tags": ["Tasks"], "summary": "List task definitions", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}},
            "post": {"tags": ["Tasks"], "summary": "Define tasks", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.DefineTasksRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}
        },
        "/api/wallets/{wallet}/tasks": {"get": {"tags": ["Tasks"], "summary": "Get wallet tasks", "produces": ["application/json"],
            "parameters": [{"name": "wallet", "in": "path", "required": true, "type": "string"}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/wallets/{wallet}/tasks/{taskid}/start": {"post": {"tags": ["Tasks"], "summary": "Start task", "produces": ["application/json"],
            "parameters": [{"name": "wallet", "in": "path", "required": true, "type": "string"}, {"name": "taskid", "in": "path", "required": true, "type": "string"}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/wallets/{wallet}/tasks/{taskid}/complete": {"post": {"tags": ["Tasks"], "summary": "Complete task", "consumes": ["application/json"], "produces": ["application/json"],
            "parameters": [{"name": "wallet", "in": "path", "required": true, "type": "string"}, {"name": "taskid", "in": "path", "required": true, "type": "string"},
                {"name": "body", "in": "body", "schema": {"$ref": "#/definitions/models.CompleteTaskRequest"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/wallets/{wallet}/ticket": {"post": {"tags": ["Claims"], "summary": "Issue claim ticket", "produces": ["application/json"],
            "parameters": [{"name": "wallet", "in": "path", "required": true, "type": "string"}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/payments": {
            "get": {"tags": ["Payments"], "summary": "List payments", "produces": ["application/json"],
                "parameters": [{"name": "wallet", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}},
            "post": {"tags": ["Payments"], "summary": "Record payment", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.PaymentRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}
        },
        "/api/payments/{seq}": {"get": {"tags": ["Payments"], "summary": "Get payment", "produces": ["application/json"],
            "parameters": [{"name": "seq", "in": "path", "required": true, "type": "integer"}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/epochs": {
            "get": {"tags": ["Epochs"], "summary": "List epochs", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}},
            "post": {"tags": ["Epochs"], "summary": "Build epoch snapshot", "description": "Builds the requested epoch, or the one after the latest when no epoch is given.",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"name": "body", "in": "body", "schema": {"$ref": "#/definitions/models.BuildEpochRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}
        },
        "/api/epochs/latest": {"get": {"tags": ["Epochs"], "summary": "Latest epoch", "produces": ["application/json"],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/epochs/{epoch}": {"get": {"tags": ["Epochs"], "summary": "Get epoch", "produces": ["application/json"],
            "parameters": [{"name": "epoch", "in": "path", "required": true, "type": "integer"}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/epochs/{epoch}/wallets/{wallet}": {"get": {"tags": ["Epochs"], "summary": "Get wallet leaf", "produces": ["application/json"],
            "parameters": [{"name": "epoch", "in": "path", "required": true, "type": "integer"}, {"name": "wallet", "in": "path", "required": true, "type": "string"}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/epochs/{epoch}/proofs/{index}": {"get": {"tags": ["Epochs"], "summary": "Get proof", "produces": ["application/json"],
            "parameters": [{"name": "epoch", "in": "path", "required": true, "type": "integer"}, {"name": "index", "in": "path", "required": true, "type": "integer"}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/tickets/qr": {"get": {"tags": ["Claims"], "summary": "Ticket QR code", "produces": ["image/png"],
            "parameters": [{"name": "ticket", "in": "query", "required": true, "type": "string"}],
            "responses": {"200": {"description": "OK", "schema": {"type": "file"}},
                "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/claims": {"post": {"tags": ["Claims"], "summary": "Report claim result", "consumes": ["application/json"], "produces": ["application/json"],
            "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.ClaimReportRequest"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/keys": {"post": {"tags": ["Auth"], "summary": "Issue API key", "consumes": ["application/json"], "produces": ["application/json"],
            "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/models.IssueKeyRequest"}}],
            "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/api/keys/self": {"get": {"tags": ["Auth"], "summary": "Describe calling key", "produces": ["application/json"],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/mcp/tools": {"get": {"tags": ["MCP"], "summary": "List MCP tools", "produces": ["application/json"],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}},
        "/mcp/call": {"post": {"tags": ["MCP"], "summary": "Call an MCP tool as the calling key", "consumes": ["application/json"], "produces": ["application/json"],
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/mcp.CallRequest"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.APIResponse"}},
                "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/models.APIResponse"}}}}}
    },
    "definitions": {
        "mcp.CallRequest": {"type": "object", "properties": {
            "tool": {"type": "string"}, "arguments": {"type": "object"}}},
        "models.APIResponse": {"type": "object", "properties": {
            "success": {"type": "boolean"}, "data": {}, "error": {"$ref": "#/definitions/models.ErrorResponse"}}},
        "models.ErrorResponse": {"type": "object", "properties": {
            "error": {"type": "string"}, "message": {"type": "string"}, "code": {"type": "integer"}, "timestamp": {"type": "string"}}},
        "models.HealthResponse": {"type": "object", "properties": {
            "status": {"type": "string"}, "store": {"type": "string"}, "ticket_gate": {"type": "string"}, "timestamp": {"type": "integer"}}},
        "models.DefineTasksRequest": {"type": "object", "properties": {
            "tasks": {"type": "array", "items": {"$ref": "#/definitions/rewards.TaskDefinition"}}}},
        "rewards.TaskDefinition": {"type": "object", "properties": {
            "taskid": {"type": "string"}, "reward": {"type": "integer"}, "payfor": {"type": "string"}}},
        "models.CompleteTaskRequest": {"type": "object", "properties": {
            "evidence": {"type": "string"}, "ts": {"type": "integer"}}},
        "models.PaymentRequest": {"type": "object", "properties": {
            "wallet": {"type": "string"}, "amount_paid": {"type": "integer"}, "tx_ref": {"type": "string"}, "ts": {"type": "integer"}, "payfor": {"type": "string"}}},
        "models.BuildEpochRequest": {"type": "object", "properties": {
            "epoch": {"type": "integer"}}},
        "models.ClaimReportRequest": {"type": "object", "properties": {
            "wallet": {"type": "string"}, "epoch": {"type": "integer"}, "outcome": {"type": "string", "enum": ["success", "failed"]}, "external_ref": {"type": "string"}}},
        "models.IssueKeyRequest": {"type": "object", "properties": {
            "label": {"type": "string"}, "role": {"type": "string", "enum": ["admin", "operator"]}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Rewards API",
	Description:      "Task rewards, epoch Merkle snapshots and claim tickets.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
