package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/ASHISH26940/sharedvars/internal/config"
	"github.com/ASHISH26940/sharedvars/internal/journal"
	"github.com/ASHISH26940/sharedvars/internal/metrics"
	"github.com/ASHISH26940/sharedvars/internal/server"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Represents the 'sharedvars serve' command.
type ServeCmd struct{}

// Executes the serve command.
//
// Runs until a client sends quit, or until SIGINT/SIGTERM. On a signal the
// server is sent its own quit handshake; if the accept loop has not exited
// within the configured shutdown timeout the listener is force-closed.
func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	opts := []server.Option{server.WithLogger(logger)}

	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, server.WithJournal(j))
		logger.Info("journal enabled", "path", cfg.Journal)
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, server.WithMetrics(metrics.New(reg)))

		httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.NewHandler(reg)}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer httpServer.Close()
		logger.Info("metrics enabled", "addr", cfg.MetricsAddr)
	}

	srv, err := server.Start(server.Config{Addr: serverAddr(cfg)}, opts...)
	if err != nil {
		return err
	}

	stopped := make(chan struct{})
	go func() {
		srv.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
		defer cancel()
		if err := srv.Quit(sctx); err != nil && !errors.Is(err, server.ErrClosed) {
			logger.Warn("quit handshake failed", "error", err)
		}
		if err := srv.Shutdown(sctx); err != nil {
			logger.Warn("listener force-closed", "error", err)
		}
	}

	logger.Info("variables at exit", "count", srv.Len())
	return nil
}
