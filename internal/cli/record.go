package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/meeting-recorder/internal/app"
	"github.com/codebuildervaibhav/meeting-recorder/internal/meeting"
	"github.com/codebuildervaibhav/meeting-recorder/internal/output"
)

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var title, device string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a meeting in the foreground (Ctrl+C to stop)",
		Long:  "Record audio from the input device until interrupted, then wait for transcription.\nA meeting whose transcription fails keeps its audio and can be re-run with 'meetingctl retry'.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, app.Options{}, func(ctx context.Context, a *app.App) error {
				if err := a.Start(ctx); err != nil {
					return err
				}
				sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				return runRecording(ctx, deps, a, meeting.StartOptions{Title: title, Device: device}, sigCtx.Done())
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Meeting title (defaults to the start time)")
	cmd.Flags().StringVarP(&device, "device", "d", "", "Capture device name (see 'meetingctl devices')")
	return cmd
}

// runRecording records until interrupted is closed, then stops and waits for
// the transcription job
func runRecording(ctx context.Context, deps *Dependencies, a *app.App, opts meeting.StartOptions, interrupted <-chan struct{}) error {
	f := output.NewFormatter(deps.Out)

	m, err := a.Service.StartRecording(ctx, opts)
	if err != nil {
		return err
	}
	f.RecordingStarted(m)

	select {
	case <-interrupted:
	case <-ctx.Done():
	}

	stopCtx := context.WithoutCancel(ctx)
	stopped, err := a.Service.StopRecording(stopCtx)
	if err != nil {
		return fmt.Errorf("stopping recording: %w", err)
	}
	f.RecordingStopped(stopped)

	f.Transcribing()
	if err := waitForJob(stopCtx, deps, a, stopped.ID); err != nil {
		return err
	}
	final, err := a.Service.GetMeeting(stopCtx, stopped.ID)
	if err != nil {
		return err
	}
	f.MeetingStatus(final)
	return nil
}
