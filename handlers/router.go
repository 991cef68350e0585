package handlers

import (
	"log/slog"
	"net/http"

	"github.com/swaggo/swag"

	"rewards-backend/docs"
	"rewards-backend/middleware"
	auth "rewards-backend/storage/auth"
)

// RouterConfig collects everything NewRouter mounts.
type RouterConfig struct {
	Rewards *RewardsHandler
	Keys    *APIKeyHandler
	Health  *HealthHandler
	Metrics http.Handler // optional
	MCP     http.Handler // optional JSON tool bridge under /mcp/
	Auth    auth.APIKeyValidator
	Limiter *middleware.RateLimiter // optional
	Logger  *slog.Logger
}

// NewRouter wires the public endpoints and the key-protected /api tree.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := http.NewServeMux()
	rh := cfg.Rewards
	api.HandleFunc("GET /api/tasks", rh.HandleListTasks)
	api.HandleFunc("POST /api/tasks", rh.HandleDefineTasks)
	api.HandleFunc("GET /api/wallets/{wallet}/tasks", rh.HandleGetWalletTasks)
	api.HandleFunc("POST /api/wallets/{wallet}/tasks/{taskid}/start", rh.HandleStartTask)
	api.HandleFunc("POST /api/wallets/{wallet}/tasks/{taskid}/complete", rh.HandleCompleteTask)
	api.HandleFunc("POST /api/wallets/{wallet}/ticket", rh.HandleIssueTicket)
	api.HandleFunc("POST /api/payments", rh.HandleRecordPayment)
	api.HandleFunc("GET /api/payments", rh.HandleListPayments)
	api.HandleFunc("GET /api/payments/{seq}", rh.HandleGetPayment)
	api.HandleFunc("POST /api/epochs", rh.HandleBuildEpoch)
	api.HandleFunc("GET /api/epochs", rh.HandleListEpochs)
	api.HandleFunc("GET /api/epochs/latest", rh.HandleLatestEpoch)
	api.HandleFunc("GET /api/epochs/{epoch}", rh.HandleGetEpoch)
	api.HandleFunc("GET /api/epochs/{epoch}/wallets/{wallet}", rh.HandleGetLeaf)
	api.HandleFunc("GET /api/epochs/{epoch}/proofs/{index}", rh.HandleGetProof)
	api.HandleFunc("GET /api/tickets/qr", rh.HandleTicketQR)
	api.HandleFunc("POST /api/claims", rh.HandleReportClaim)
	if cfg.Keys != nil {
		api.HandleFunc("POST /api/keys", cfg.Keys.HandleIssue)
		api.HandleFunc("GET /api/keys/self", cfg.Keys.HandleWhoAmI)
	}

	protected := []func(http.Handler) http.Handler{middleware.APIAuth(cfg.Auth)}
	if cfg.Limiter != nil {
		protected = append(protected, cfg.Limiter.Middleware)
	}

	root := http.NewServeMux()
	root.Handle("/api/", middleware.Chain(api, protected...))
	if cfg.MCP != nil {
		root.Handle("/mcp/", middleware.Chain(cfg.MCP, protected...))
	}
	if cfg.Health != nil {
		root.HandleFunc("GET /healthz", cfg.Health.HandleHealth)
	}
	if cfg.Metrics != nil {
		root.Handle("GET /metrics", cfg.Metrics)
	}
	root.HandleFunc("GET /swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
		if err != nil {
			middleware.Error(w, http.StatusInternalServerError, "internal", "swagger doc unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	})

	return middleware.Chain(root,
		middleware.Logging(logger),
		middleware.Recovery(logger),
		middleware.CORS,
		middleware.SecurityHeaders,
	)
}
