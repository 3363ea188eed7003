package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/countsort/internal/server"
)

// newServeCmd creates the 'serve' subcommand, which runs the HTTP sort service.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP sort service",
		Long: `Starts the HTTP API with the synchronous /v1/sort endpoint and the
asynchronous job pipeline. Storage, Postgres and Pub/Sub are configured
through the config file or COUNTSORT_* environment variables.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationLogLevel: "info"},
		RunE:        runServeCommand,
	}
	cmd.Flags().Int("port", 0, "HTTP port (overrides server.port and PORT)")
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	env, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	cfg := env.cfg
	if cmd.Flags().Changed("port") {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			return fmt.Errorf("read port flag: %w", err)
		}
		if port <= 0 {
			return fmt.Errorf("invalid port %d", port)
		}
		cfg.Server.Port = port
	}

	app, err := server.Build(cmd.Context(), &cfg, env.logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	if err := app.Run(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run server: %w", err)
	}
	env.logger.Info("serve command finished", zap.Int("port", cfg.Server.Port))
	return nil
}
