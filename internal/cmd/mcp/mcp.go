// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"
	"os"

	entrypoint "github.com/louisbranch/kingdom/internal/platform/cmd"
	"github.com/louisbranch/kingdom/internal/platform/logging"
	"github.com/louisbranch/kingdom/internal/services/kingdom/app"
	"github.com/louisbranch/kingdom/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	App       app.Config
	Log       logging.Config
	HTTPAddr  string `env:"KINGDOM_MCP_HTTP_ADDR" envDefault:"localhost:8081"`
	Transport string `env:"KINGDOM_MCP_TRANSPORT" envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.App.DBPath, "db", cfg.App.DBPath, "SQLite database path")
	fs.StringVar(&cfg.App.CatalogDir, "catalog", cfg.App.CatalogDir, "Directory of check definitions layered over the built-in catalog")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter over the kingdom service.
func Run(ctx context.Context, cfg Config) error {
	// Stdout carries the stdio transport, so logs always go to stderr.
	logger, err := logging.New(os.Stderr, cfg.Log)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceMCP, entrypoint.RunOptions{Logger: &logger}, func(ctx context.Context) error {
		kingdoms, err := app.New(ctx, cfg.App, logger)
		if err != nil {
			return err
		}
		defer kingdoms.Close()

		return service.Run(ctx, service.Config{
			Transport: cfg.Transport,
			HTTPAddr:  cfg.HTTPAddr,
		}, kingdoms, kingdoms.Metrics().Handler(), logger)
	})
}
