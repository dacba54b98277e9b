package restarter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ccheshirecat/swarmctl/internal/config"
	"github.com/ccheshirecat/swarmctl/internal/eventbus/memory"
)

// App wires the config, executor, output bus and HTTP transport.
type App struct {
	cfg        config.RestarterConfig
	logger     *slog.Logger
	exec       *Executor
	httpServer *http.Server
}

// New constructs the restarter daemon. A nil runner executes scripts with
// the system shell in cfg.WorkDir, on a pseudo-terminal when cfg.UseTTY is
// set.
func New(cfg config.RestarterConfig, logger *slog.Logger, runner Runner) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if runner == nil {
		runner = ShellRunner{Dir: cfg.WorkDir}
		if cfg.UseTTY {
			runner = PTYRunner{Dir: cfg.WorkDir}
		}
	}
	if cfg.Password == "" {
		logger.Warn("PASSWORD is not set; every job endpoint will reject requests")
	}
	bus := memory.New()
	exec := NewExecutor(runner, bus, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewHandler(cfg, exec, bus, logger),
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return &App{cfg: cfg, logger: logger, exec: exec, httpServer: httpServer}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.httpServer.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	// Followers hold hijacked connections that Shutdown does not track.
	a.httpServer.BaseContext = func(net.Listener) context.Context { return gctx }
	g.Go(func() error {
		a.logger.Info("restarter listening", "addr", ln.Addr().String())
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		wait := a.cfg.ShutdownWait
		if wait <= 0 {
			wait = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), wait)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http shutdown", "error", err)
		}
		// A job still running past the grace period is killed.
		a.exec.Stop()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
