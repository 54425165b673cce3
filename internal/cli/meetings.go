package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/meeting-recorder/internal/app"
	"github.com/codebuildervaibhav/meeting-recorder/internal/output"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded meetings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, app.Options{DisableExport: true}, func(ctx context.Context, a *app.App) error {
				meetings, err := a.Service.ListMeetings(ctx, limit, offset)
				if err != nil {
					return err
				}
				output.NewFormatter(deps.Out).MeetingList(meetings)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of meetings")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of meetings to skip")
	return cmd
}

func NewShowCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "show <meeting-id>",
		Short: "Print a meeting transcript as markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, app.Options{DisableExport: true}, func(ctx context.Context, a *app.App) error {
				m, err := a.Service.GetMeeting(ctx, args[0])
				if err != nil {
					return err
				}
				segments, err := a.Service.Segments(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprint(deps.Out, output.RenderTranscript(m, segments))
				return nil
			})
		},
	}
}

func NewRetryCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <meeting-id>",
		Short: "Re-run transcription on a meeting's stored audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, app.Options{}, func(ctx context.Context, a *app.App) error {
				f := output.NewFormatter(deps.Out)
				if err := a.Start(ctx); err != nil {
					return err
				}
				if _, err := a.Service.RetryTranscription(ctx, args[0]); err != nil {
					return err
				}
				f.Transcribing()
				if err := waitForJob(ctx, deps, a, args[0]); err != nil {
					return err
				}
				m, err := a.Service.GetMeeting(ctx, args[0])
				if err != nil {
					return err
				}
				f.MeetingStatus(m)
				return nil
			})
		},
	}
}

func NewSummarizeCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <meeting-id>",
		Short: "Generate a summary and action items for a completed meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, app.Options{DisableExport: true}, func(ctx context.Context, a *app.App) error {
				f := output.NewFormatter(deps.Out)
				f.Summarizing()
				res, err := a.Service.GenerateSummary(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(deps.Out, "\n%s\n", res.Summary.Summary)
				for _, item := range res.Summary.ActionItems {
					line := "- [ ] " + item.Task
					if item.Assignee != nil {
						line += " (" + *item.Assignee + ")"
					}
					fmt.Fprintf(deps.Out, "%s `%s`\n", line, item.Priority)
				}
				return nil
			})
		},
	}
}

func NewRenameSpeakerCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "rename-speaker <meeting-id> <speaker-id> <name>",
		Short: "Set the display name of a speaker in one meeting",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args[2:], " ")
			return withApp(cmd, deps, app.Options{DisableExport: true}, func(ctx context.Context, a *app.App) error {
				if err := a.Service.RenameSpeaker(ctx, args[0], args[1], name); err != nil {
					return err
				}
				output.NewFormatter(deps.Out).Success(fmt.Sprintf("Speaker %s is now %q", args[1], strings.TrimSpace(name)))
				return nil
			})
		},
	}
}

func NewTitleCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "title <meeting-id> <title>",
		Short: "Rename a meeting",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args[1:], " ")
			if strings.TrimSpace(title) == "" {
				return fmt.Errorf("title must not be empty")
			}
			return withApp(cmd, deps, app.Options{DisableExport: true}, func(ctx context.Context, a *app.App) error {
				m, err := a.Service.UpdateTitle(ctx, args[0], title)
				if err != nil {
					return err
				}
				output.NewFormatter(deps.Out).Success(fmt.Sprintf("Meeting %s renamed to %q", m.ID, m.Title))
				return nil
			})
		},
	}
}

func NewDeleteCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <meeting-id>",
		Short: "Delete a meeting with its transcript and audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, deps, app.Options{DisableExport: true}, func(ctx context.Context, a *app.App) error {
				if err := a.Service.DeleteMeeting(ctx, args[0]); err != nil {
					return err
				}
				output.NewFormatter(deps.Out).Success(fmt.Sprintf("Meeting %s deleted", args[0]))
				return nil
			})
		},
	}
}
