package service

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/louisbranch/kingdom/internal/platform/timeouts"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

const defaultHTTPAddr = "localhost:8081"

var listenTCP = net.Listen

// HTTPTransport serves MCP over streamable HTTP together with health and
// metrics endpoints.
type HTTPTransport struct {
	addr    string
	handler http.Handler
	logger  zerolog.Logger
}

// NewHTTPTransport returns a transport for server on addr. A nil metrics
// handler leaves /metrics unmounted.
func NewHTTPTransport(addr string, server *mcp.Server, metrics http.Handler, logger zerolog.Logger) *HTTPTransport {
	if addr == "" {
		addr = defaultHTTPAddr
	}
	return &HTTPTransport{addr: addr, handler: newMux(server, metrics), logger: logger}
}

// Handler returns the transport's routes.
func (t *HTTPTransport) Handler() http.Handler {
	return t.handler
}

func newMux(server *mcp.Server, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil))
	mux.HandleFunc("/mcp/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (t *HTTPTransport) Start(ctx context.Context) error {
	listener, err := listenTCP("tcp", t.addr)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           t.handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	t.logger.Info().Str("addr", listener.Addr().String()).Msg("mcp http server starting")

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info().Msg("mcp http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errChan:
		return err
	}
}
