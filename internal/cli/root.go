// Package cli implements the meetingctl commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/meeting-recorder/internal/app"
	"github.com/codebuildervaibhav/meeting-recorder/internal/config"
	"github.com/codebuildervaibhav/meeting-recorder/internal/output"
)

// Dependencies are shared by every command. Open builds a fresh App per command.
type Dependencies struct {
	Config *config.Config
	Open   func(ctx context.Context, opts app.Options) (*app.App, error)
	Out    io.Writer
	Err    io.Writer

	// PollInterval is how often commands check for finished jobs
	PollInterval time.Duration
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "meetingctl",
		Short:         "Record, transcribe and summarize meetings",
		Long:          "A CLI over the meeting recorder: capture audio from an input device, transcribe it with speaker attribution, and summarize it with an LLM.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = app.Version
	rootCmd.SetVersionTemplate("meetingctl {{.Version}}\n")
	rootCmd.SetOut(deps.Out)
	rootCmd.SetErr(deps.Err)

	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewShowCmd(deps))
	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewRetryCmd(deps))
	rootCmd.AddCommand(NewSummarizeCmd(deps))
	rootCmd.AddCommand(NewRenameSpeakerCmd(deps))
	rootCmd.AddCommand(NewTitleCmd(deps))
	rootCmd.AddCommand(NewDeleteCmd(deps))
	rootCmd.AddCommand(NewDevicesCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// withApp opens the app for one command and always closes it
func withApp(cmd *cobra.Command, deps *Dependencies, opts app.Options, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := deps.Open(ctx, opts)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			output.NewFormatter(deps.Err).Warning(err.Error())
		}
	}()
	return fn(ctx, a)
}

// waitForJob blocks until the meeting has no queued or running job
func waitForJob(ctx context.Context, deps *Dependencies, a *app.App, meetingID string) error {
	interval := deps.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for a.Workers.InFlight(meetingID) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
