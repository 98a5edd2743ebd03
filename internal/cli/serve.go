package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/application/services"
	"github.com/clinicq/backend/internal/infrastructure/metrics"
	"github.com/clinicq/backend/internal/infrastructure/migrations"
	"github.com/clinicq/backend/internal/infrastructure/sms"
	"github.com/clinicq/backend/internal/interfaces/rest"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(opts *globalOptions) *cobra.Command {
	var addr string
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the outbox worker and reminder scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.setup()
			if err != nil {
				return err
			}
			defer rt.close()
			if addr == "" {
				addr = "0.0.0.0:" + rt.cfg.Port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt, addr, migrate)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default 0.0.0.0:$PORT)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, rt *cmdRuntime, addr string, migrate bool) error {
	logger := rt.logger
	if !rt.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := rt.openDB(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	logger.Info("[Server] database connection established", zap.String("driver", conn.Driver()))

	if migrate {
		if _, err := migrations.New(conn.DB(), conn.Driver(), logger).Up(ctx); err != nil {
			return err
		}
	}

	sm, err := services.NewServiceManager(conn, rt.cfg, metrics.New(), sms.NewLogSender(logger), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           rest.NewRouter(sm, rt.cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sm.Start()
	logger.Info("[Server] outbox worker and scheduler started")

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Server] listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		sm.Stop()
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("[Server] shutting down")
	sm.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("[Server] exited")
	return nil
}
