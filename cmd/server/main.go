package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/meeting-recorder/internal/app"
	"github.com/codebuildervaibhav/meeting-recorder/internal/config"
	"github.com/codebuildervaibhav/meeting-recorder/internal/handlers"
	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "meeting-server",
		Short:         "Serve the meeting recorder HTTP and websocket API",
		Args:          cobra.NoArgs,
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
				return err
			}

			if err := logging.Init(logging.Options{Level: cfg.Logging.Level, Console: true, File: cfg.Logging.File}); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
				return err
			}
			defer logging.Close()

			if err := run(cfg); err != nil {
				logging.Error(logging.CategoryApp, "%v", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to a YAML or TOML config file")
	return cmd
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	// Initialize components
	logging.Info(logging.CategoryApp, "initializing components (data dir %s)", cfg.Storage.DataDir)
	application, err := app.New(ctx, cfg, app.Options{Background: true})
	if err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		application.Close(ctx)
		return err
	}

	server := handlers.NewApp(handlers.Deps{
		Service: application.Service,
		Engine:  application.Engine,
		Jobs:    application.Workers,
		Version: app.Version,
	})

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logging.Info(logging.CategoryApp, "shutting down gracefully...")
		if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
			logging.Warn(logging.CategoryHTTP, "server shutdown: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logging.Info(logging.CategoryApp, "server starting on %s", addr)
	logging.Info(logging.CategoryApp, "endpoints: /meetings, /recording, /devices, /ws/recording, /logs, /health")

	listenErr := server.Listen(addr)

	// stops an active recording, keeping its audio, then drains the workers
	if err := application.Close(ctx); err != nil {
		logging.Warn(logging.CategoryApp, "shutdown: %v", err)
	}
	if listenErr != nil {
		return fmt.Errorf("server failed: %w", listenErr)
	}
	return nil
}
