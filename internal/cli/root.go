// Package cli is clinicctl: the management commands and the API server.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clinicq/backend/internal/config"
	"github.com/clinicq/backend/internal/deploy"
	"github.com/clinicq/backend/internal/infrastructure/database"
	"github.com/clinicq/backend/internal/infrastructure/logging"
)

// Execute runs clinicctl and exits with the status of the failed command
func Execute() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(deploy.ExitCode(err))
	}
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Clinic queue backend: server and management commands",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable development logging")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load this .env file instead of searching for one")

	cmd.AddCommand(
		serveCmd(opts),
		migrateCmd(opts),
		loaddataCmd(opts),
		collectstaticCmd(opts),
		ensureAdminCmd(opts),
		wipeCmd(opts),
		buildCmd(opts),
		issueTokenCmd(opts),
	)
	return cmd
}

type globalOptions struct {
	debug   bool
	envFile string
}

// cmdRuntime is what every command needs before doing work
type cmdRuntime struct {
	cfg    *config.Config
	logger *zap.Logger
}

func (o *globalOptions) setup() (*cmdRuntime, error) {
	if o.envFile != "" {
		if config.LoadDotEnv(o.envFile) == "" {
			return nil, fmt.Errorf("env file %s not found", o.envFile)
		}
	} else {
		config.LoadDotEnv()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(o.debug || cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &cmdRuntime{cfg: cfg, logger: logger}, nil
}

func (r *cmdRuntime) openDB(ctx context.Context) (*database.Connection, error) {
	conn, err := database.Open(ctx, r.cfg)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("[DB] connected", zap.String("driver", conn.Driver()))
	return conn, nil
}

func (r *cmdRuntime) close() {
	_ = r.logger.Sync()
}
