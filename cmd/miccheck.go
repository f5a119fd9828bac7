package cmd

import (
	"fmt"

	live "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/spf13/cobra"
)

func newMicCheckCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mic-check",
		Short: "Check that the microphone can be opened",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}

			devices, err := app.openAudio(cfg)
			if err != nil {
				return fmt.Errorf("%w: %w", live.ErrPermission, err)
			}
			defer devices.close()

			controller := live.NewController(live.WithAudioInput(devices.input))
			defer controller.Close()

			if err := controller.CheckPermission(); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "microphone ready (%s, %d Hz mono)\n", cfg.Audio.Backend, audio.CaptureSampleRate)
			return err
		},
	}
}
