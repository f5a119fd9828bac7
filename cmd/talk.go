package cmd

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	live "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/spf13/cobra"
)

func newTalkCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "talk",
		Short: "Start a live conversation with the travel assistant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			devices, err := app.openAudio(cfg)
			if err != nil {
				return fmt.Errorf("%w: %w", live.ErrPermission, err)
			}
			defer devices.close()

			controller := newController(cfg, devices, app.connector(cfg))
			defer controller.Close()

			if err := controller.CheckPermission(); err != nil {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), newStyles().warning.Render("Microphone unavailable, not connecting. Run mic-check for details."))
				return err
			}

			return runTalk(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), controller)
		},
	}
}

// runTalk drives one session from a terminal program. It returns once the
// session has ended and the program exited.
func runTalk(ctx context.Context, input io.Reader, output io.Writer, controller *live.Controller) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var program *tea.Program
	start := func() tea.Msg {
		session, err := controller.Start(ctx, live.WithEventCallback(func(event events.Event) {
			program.Send(sessionEventMsg{event: event})
		}))
		return sessionStartedMsg{session: session, err: err}
	}

	program = tea.NewProgram(
		newTalkModel(start),
		tea.WithInput(input),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := program.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(talkModel)
	if !ok {
		return fmt.Errorf("unexpected final talk model type %T", finalModel)
	}

	return result.err
}
