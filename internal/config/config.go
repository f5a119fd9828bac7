// Package config loads the settings of the ema-live command from a TOML
// file and EMA_LIVE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/koscakluka/ema-live/core/gemini"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	configName      = "config"
	configType      = "toml"
	configDir       = "ema-live"
	envPrefix       = "EMA_LIVE"
	configFileMode  = 0o600
	configDirMode   = 0o700
	tempFilePattern = ".config-*.toml.tmp"

	BackendMiniaudio = "miniaudio"
	BackendPortaudio = "portaudio"

	defaultFlightsURL = "http://localhost:8000"
	defaultPeriodSize = 1024
)

var (
	ErrMissingAPIKey = errors.New("api key is not configured, set EMA_LIVE_API_KEY or GEMINI_API_KEY")
	ErrConfigExists  = errors.New("config file already exists")
)

type Audio struct {
	Backend    string `mapstructure:"backend" toml:"backend"`
	PeriodSize int    `mapstructure:"period_size" toml:"period_size"`
}

type Config struct {
	APIKey     string `mapstructure:"api_key" toml:"api_key"`
	Model      string `mapstructure:"model" toml:"model"`
	Voice      string `mapstructure:"voice" toml:"voice"`
	Endpoint   string `mapstructure:"endpoint" toml:"endpoint"`
	FlightsURL string `mapstructure:"flights_url" toml:"flights_url"`
	Greeting   string `mapstructure:"greeting" toml:"greeting,omitempty"`
	Audio      Audio  `mapstructure:"audio" toml:"audio"`
}

func Default() Config {
	return Config{
		Model:      gemini.DefaultModel,
		Endpoint:   gemini.DefaultEndpoint,
		FlightsURL: defaultFlightsURL,
		Audio: Audio{
			Backend:    BackendMiniaudio,
			PeriodSize: defaultPeriodSize,
		},
	}
}

// DefaultPath is where Load looks when no explicit file is given.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, configDir, configName+"."+configType), nil
}

// Load merges defaults, the config file and the environment, in increasing
// order of precedence. A missing default config file is not an error; a
// missing explicit one is.
func Load(cfg *viper.Viper, path string) (Config, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	defaults := Default()
	cfg.SetDefault("api_key", "")
	cfg.SetDefault("model", defaults.Model)
	cfg.SetDefault("voice", defaults.Voice)
	cfg.SetDefault("endpoint", defaults.Endpoint)
	cfg.SetDefault("flights_url", defaults.FlightsURL)
	cfg.SetDefault("greeting", "")
	cfg.SetDefault("audio.backend", defaults.Audio.Backend)
	cfg.SetDefault("audio.period_size", defaults.Audio.PeriodSize)

	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()
	if err := cfg.BindEnv("api_key", envPrefix+"_API_KEY", "GEMINI_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind api key environment: %w", err)
	}

	cfg.SetConfigType(configType)
	if path != "" {
		cfg.SetConfigFile(path)
	} else {
		cfg.SetConfigName(configName)
		if dir, err := os.UserConfigDir(); err == nil {
			cfg.AddConfigPath(filepath.Join(dir, configDir))
		}
	}

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var config Config
	if err := cfg.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	config.FlightsURL = strings.TrimRight(strings.TrimSpace(config.FlightsURL), "/")
	config.Audio.Backend = strings.ToLower(strings.TrimSpace(config.Audio.Backend))

	return config, nil
}

// Validate reports every setting a live session cannot start with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.APIKey) == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if c.FlightsURL == "" {
		errs = append(errs, errors.New("flights_url is empty"))
	}
	switch c.Audio.Backend {
	case BackendMiniaudio, BackendPortaudio:
	default:
		errs = append(errs, fmt.Errorf("unknown audio backend %q", c.Audio.Backend))
	}
	if c.Audio.PeriodSize <= 0 {
		errs = append(errs, fmt.Errorf("audio period_size must be positive, got %d", c.Audio.PeriodSize))
	}
	return errors.Join(errs...)
}

// WriteStarter writes config to path, refusing to replace an existing file
// unless overwrite is set.
func WriteStarter(path string, config Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), configDirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("encode config file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp config file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := tempFile.Chmod(configFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp config file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}
	cleanup = false

	return nil
}
