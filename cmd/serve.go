package cmd

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/dealrefresher/internal/api"
	"sjsage522/dealrefresher/logger"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the deals API and refresh on an interval",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (default from $HTTP_ADDR)")
	serveCmd.Flags().Bool("no-worker", false, "Only serve the API, never refresh on a schedule")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Default

	addr := cfg.HTTPAddr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}
	noWorker, _ := cmd.Flags().GetBool("no-worker")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer services.Cleanup()

	routerCfg := api.RouterConfig{
		Deals: services.Deals,
		Debug: !cfg.IsProduction(),
	}
	// a nil *worker.Worker must not become a non-nil Refresher
	if services.Worker != nil {
		routerCfg.Refresher = services.Worker
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("addr", addr).
		Dur("refresh_interval", cfg.RefreshInterval).
		Bool("worker", services.Worker != nil && !noWorker).
		Msg("Starting application")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if services.Worker != nil && !noWorker {
		g.Go(func() error {
			return services.Worker.Start(gctx)
		})
	}

	return g.Wait()
}
