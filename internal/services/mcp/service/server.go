package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/louisbranch/kingdom/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

const (
	serverName = "kingdom"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Supported transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config selects the MCP transport.
type Config struct {
	Transport string
	HTTPAddr  string
}

type registration func(*mcp.Server)

func tool[I, O any](definition *mcp.Tool, handler mcp.ToolHandlerFor[I, O]) registration {
	return func(server *mcp.Server) {
		mcp.AddTool(server, definition, handler)
	}
}

func resourceTemplate(template *mcp.ResourceTemplate, handler mcp.ResourceHandler) registration {
	return func(server *mcp.Server) {
		server.AddResourceTemplate(template, handler)
	}
}

func registrations(kingdoms domain.Kingdoms) []registration {
	return []registration{
		tool(domain.ChecksListTool(), domain.ChecksListHandler(kingdoms)),
		tool(domain.CheckPreviewTool(), domain.CheckPreviewHandler(kingdoms)),
		tool(domain.CheckRunTool(), domain.CheckRunHandler(kingdoms)),
		tool(domain.LedgerGetTool(), domain.LedgerGetHandler(kingdoms)),
		tool(domain.KingdomFoundTool(), domain.KingdomFoundHandler(kingdoms)),
		resourceTemplate(domain.JournalResourceTemplate(), domain.JournalResourceHandler(kingdoms)),
	}
}

// NewServer returns an MCP server exposing the kingdom tools.
func NewServer(kingdoms domain.Kingdoms) (*mcp.Server, error) {
	if kingdoms == nil {
		return nil, fmt.Errorf("kingdom service is required")
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	for _, register := range registrations(kingdoms) {
		register(server)
	}
	return server, nil
}

// Run serves the kingdom tools on the configured transport until ctx is
// cancelled. metrics is mounted at /metrics on the HTTP transport.
func Run(ctx context.Context, cfg Config, kingdoms domain.Kingdoms, metrics http.Handler, logger zerolog.Logger) error {
	server, err := NewServer(kingdoms)
	if err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Transport)) {
	case "", TransportStdio:
		logger.Info().Str("transport", TransportStdio).Msg("mcp server starting")
		return serveWithTransport(ctx, server, &mcp.StdioTransport{})
	case TransportHTTP:
		return NewHTTPTransport(cfg.HTTPAddr, server, metrics, logger).Start(ctx)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// serveWithTransport runs server on transport. Cancellation is a clean stop.
func serveWithTransport(ctx context.Context, server *mcp.Server, transport mcp.Transport) error {
	if server == nil {
		return fmt.Errorf("mcp server is not configured")
	}
	if err := server.Run(ctx, transport); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
