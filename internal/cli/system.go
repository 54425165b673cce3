package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/meeting-recorder/internal/app"
	"github.com/codebuildervaibhav/meeting-recorder/internal/output"
)

func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, app.Options{DisableExport: true}, func(ctx context.Context, a *app.App) error {
				devices, err := a.Engine.Devices()
				if err != nil {
					return err
				}
				output.NewFormatter(deps.Out).DeviceList(devices)
				return nil
			})
		},
	}
}

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check provider keys and storage paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(deps.Out)
			cfg := deps.Config

			check := func(name string, ok bool, detail string) {
				if ok {
					f.Success(fmt.Sprintf("%s: %s", name, detail))
				} else {
					f.Error(fmt.Sprintf("%s: %s", name, detail))
				}
			}

			switch cfg.Transcription.Diarizer {
			case "assemblyai":
				check("Diarizer", cfg.Transcription.AssemblyAIKey != "", "assemblyai (needs ASSEMBLYAI_API_KEY)")
			default:
				f.Info("Diarizer: disabled")
			}
			switch cfg.Transcription.Transcriber {
			case "none":
				f.Info("Transcriber: disabled")
			default:
				check("Transcriber", cfg.Transcription.OpenAIKey != "", cfg.Transcription.Transcriber+" (needs an API key)")
			}
			check("Summaries", cfg.Summary.AnthropicKey != "", "anthropic "+cfg.Summary.Model)
			f.Info("Database: " + cfg.Storage.Database)
			f.Info("Audio directory: " + cfg.AudioDir())
			return nil
		},
	}
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "meetingctl %s\n", app.Version)
		},
	}
}
