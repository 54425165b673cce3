package main

import (
	"context"
	"fmt"
	"os"

	"github.com/codebuildervaibhav/meeting-recorder/internal/app"
	"github.com/codebuildervaibhav/meeting-recorder/internal/cli"
	"github.com/codebuildervaibhav/meeting-recorder/internal/config"
	"github.com/codebuildervaibhav/meeting-recorder/internal/logging"
	"github.com/codebuildervaibhav/meeting-recorder/internal/output"
)

func main() {
	if err := run(); err != nil {
		output.NewFormatter(os.Stderr).Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// console logging would interleave with command output
	if err := logging.Init(logging.Options{Level: cfg.Logging.Level, File: cfg.Logging.File}); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logging.Close()

	deps := &cli.Dependencies{
		Config: cfg,
		Open: func(ctx context.Context, opts app.Options) (*app.App, error) {
			return app.New(ctx, cfg, opts)
		},
		Out: os.Stdout,
		Err: os.Stderr,
	}

	return cli.NewRootCmd(deps).ExecuteContext(context.Background())
}

func configPath() string {
	if p := os.Getenv("MEETING_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}
