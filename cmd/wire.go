package cmd

import (
	"fmt"

	live "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/audio/miniaudio"
	"github.com/koscakluka/ema-live/core/audio/portaudio"
	"github.com/koscakluka/ema-live/core/flights"
	"github.com/koscakluka/ema-live/core/gemini"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/internal/config"
	"github.com/spf13/viper"
)

// Both microphone backends have to answer mic-check with a real probe.
var (
	_ live.PermissionChecker = (*miniaudio.Client)(nil)
	_ live.PermissionChecker = (*portaudio.Client)(nil)
)

type app struct {
	configPath string
	openAudio  func(config.Config) (audioDevices, error)
	connector  func(config.Config) realtime.Connector
}

// audioDevices are opened once per command. close releases whatever the
// controller does not own.
type audioDevices struct {
	input  live.AudioInput
	output playback.Output
	close  func()
}

func newApp() *app {
	return &app{
		openAudio: openAudioDevices,
		connector: newConnector,
	}
}

func (a *app) loadConfig() (config.Config, error) {
	return config.Load(viper.New(), a.configPath)
}

func openAudioDevices(cfg config.Config) (audioDevices, error) {
	timeline := playback.NewTimeline(audio.PlaybackEncodingInfo())
	speaker, err := miniaudio.NewClient(timeline)
	if err != nil {
		return audioDevices{}, fmt.Errorf("open audio devices: %w", err)
	}

	if cfg.Audio.Backend != config.BackendPortaudio {
		return audioDevices{input: speaker, output: timeline, close: func() {}}, nil
	}

	microphone, err := portaudio.NewClient(cfg.Audio.PeriodSize)
	if err != nil {
		speaker.Close()
		return audioDevices{}, fmt.Errorf("open portaudio input: %w", err)
	}
	return audioDevices{input: microphone, output: timeline, close: speaker.Close}, nil
}

func newConnector(cfg config.Config) realtime.Connector {
	return gemini.NewConnector(cfg.APIKey, gemini.WithEndpoint(cfg.Endpoint))
}

func newController(cfg config.Config, devices audioDevices, connector realtime.Connector) *live.Controller {
	opts := []live.ControllerOption{
		live.WithConnector(connector),
		live.WithFlightSearcher(flights.NewClient(cfg.FlightsURL)),
		live.WithModel(cfg.Model),
		live.WithVoice(cfg.Voice),
	}
	if devices.input != nil {
		opts = append(opts, live.WithAudioInput(devices.input))
	}
	if devices.output != nil {
		opts = append(opts, live.WithPlaybackOutput(devices.output))
	}
	if cfg.Greeting != "" {
		opts = append(opts, live.WithGreeting(cfg.Greeting))
	}

	return live.NewController(opts...)
}
