package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithApp(newApp())
}

func newRootCmdWithApp(app *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ema-live",
		Short:         "Talk to a travel assistant from the terminal",
		Long:          "ema-live streams your microphone to a live conversational model, plays its answers back and shows the itineraries and flights it finds.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/ema-live/config.toml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(app),
		newMicCheckCmd(app),
		newTalkCmd(app),
	)

	return rootCmd
}
