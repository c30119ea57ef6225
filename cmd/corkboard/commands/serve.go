package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dyluth/corkboard/internal/config"
	"github.com/dyluth/corkboard/internal/printer"
	"github.com/dyluth/corkboard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the corkboard transport daemon",
	Long: `Run the corkboard HTTP server.

Endpoints:
  GET /healthz                 liveness and Redis reachability
  GET /boards/{board}/items    JSON snapshot of a board
  GET /boards/{board}/ws       websocket collaboration endpoint

Configuration is read from corkboard.yml (or --config), with CORKBOARD_LISTEN
and REDIS_URL environment overrides. The daemon also sweeps expired edit
locks on every board it serves.

The server shuts down cleanly on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{"Check corkboard.yml and the CORKBOARD_LISTEN / REDIS_URL environment variables"},
		)
	}

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}

	srv := server.New(redisOpts, cfg.Board)
	defer srv.Close()

	httpServer := &http.Server{Addr: cfg.Server.Listen, Handler: srv.Router()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		srv.RunLockSweeper(ctx, cfg.Board.SweepInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen failed", "err", err)
		}
	}()

	slog.Info("corkboard serving", "addr", cfg.Server.Listen, "redis", cfg.Redis.URL)

	exit := make(chan os.Signal, 1) // buffer of 1 so the notifier is never blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("signal caught", "sig", sig)
	cancel()
	_ = httpServer.Close()

	wg.Wait()
	return nil
}
