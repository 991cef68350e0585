package main

import (
	"context"
	"os"

	"rewards-backend/config"
	"rewards-backend/container"
	auth "rewards-backend/storage/auth"
	"rewards-backend/telemetry"

	"github.com/mark3labs/mcp-go/server"
)

type mcpConfig struct {
	ConfigPath string
	Label      string
	Role       auth.Role
}

func loadConfig() mcpConfig {
	role, ok := auth.ParseRole(envDefault("REWARDS_MCP_ROLE", string(auth.RoleOperator)))
	if !ok {
		role = auth.RoleOperator
	}
	return mcpConfig{
		ConfigPath: envDefault("REWARDS_CONFIG", "rewards.yaml"),
		Label:      envDefault("REWARDS_MCP_LABEL", "mcp"),
		Role:       role,
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	mc := loadConfig()

	cfg, err := config.Load(mc.ConfigPath)
	// stdout carries the MCP protocol; logs go to stderr.
	logger := telemetry.NewLogger(os.Stderr, telemetry.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	identity := auth.APIKey{Label: mc.Label, Role: mc.Role, Source: "mcp"}
	c, err := container.NewContainer(context.Background(), cfg, logger, identity)
	if err != nil {
		logger.Error("failed to init container", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer c.Close()

	logger.Info("rewards MCP server starting", "driver", cfg.Store.Driver, "role", mc.Role)
	if err := server.ServeStdio(c.MCPServer.GetMCPServer()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
