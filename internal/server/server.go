package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/viant/jsonrpc/transport"
	mcpclientproto "github.com/viant/mcp-protocol/client"
	mcplogger "github.com/viant/mcp-protocol/logger"
	mcpserverproto "github.com/viant/mcp-protocol/server"
	mcpserver "github.com/viant/mcp/server"
	"go.uber.org/zap"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/config"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
	"github.com/yugmatech/yt-mcp-server-odoo/internal/tools"
)

const httpShutdownTimeout = 5 * time.Second

// Server serves the MCP surface over the configured transport.
type Server struct {
	cfg config.Config
	mcp *mcpserver.Server
	log *zap.Logger
}

func New(cfg config.Config, dispatcher *tools.Dispatcher, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	handler := NewHandler(dispatcher, log)
	srv, err := mcpserver.New(
		mcpserver.WithNewHandler(func(_ context.Context, _ transport.Notifier, _ mcplogger.Logger, _ mcpclientproto.Operations) (mcpserverproto.Handler, error) {
			return handler, nil
		}),
	)
	if err != nil {
		return nil, oerr.Wrap(oerr.KindValidation, "build mcp server", err)
	}
	return &Server{cfg: cfg, mcp: srv, log: log}, nil
}

// Run blocks serving the selected transport until ctx is canceled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case config.TransportStdio:
		s.log.Info("serving mcp over stdio")
		return s.mcp.Stdio(ctx).ListenAndServe()
	case config.TransportHTTP:
		s.mcp.UseStreamableHTTP(true)
		addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
		httpSrv := s.mcp.HTTP(ctx, addr)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()
		s.log.Info("serving mcp over streamable http", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
	return oerr.Newf(oerr.KindValidation, "unsupported transport %q", s.cfg.Transport)
}
