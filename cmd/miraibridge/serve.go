package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/keepmind9/miraibridge/internal/core"
	"github.com/keepmind9/miraibridge/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile    string
	serveValidate bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the mirai bridge",
		Long:  "Connect to mirai-api-http (or accept its reverse websocket) and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := core.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if serveValidate {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration is valid: %s\n", configFile)
				return nil
			}

			if err := logger.InitLogger(config.LoggerConfig()); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger.WithFields(logrus.Fields{
				"config_file": configFile,
				"log_level":   config.Logging.Level,
				"log_file":    config.Logging.File,
			}).Info("logger-initialized")

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runEngine(ctx, core.NewEngine(config))
		},
	}
)

// runEngine blocks until ctx ends or the engine fails
func runEngine(ctx context.Context, engine *core.Engine) error {
	if err := engine.Run(ctx); err != nil {
		logger.WithField("error", err).Error("engine-error")
		return err
	}
	logger.Info("miraibridge-stopped")
	return nil
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
	serveCmd.Flags().BoolVar(&serveValidate, "validate", false, "Validate configuration and exit")
}
