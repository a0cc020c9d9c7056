// Package config loads the process level runtime configuration of the demo daemon
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "DEMO"
	configName = "demomode"

	DefaultListenAddr = "127.0.0.1:8080"
)

// Config is the runtime configuration. Paths left empty are derived from RootPath.
type Config struct {
	RootPath     string `mapstructure:"root_path"`
	SettingsFile string `mapstructure:"settings_file"`
	HistoryDB    string `mapstructure:"history_db"`
	ContentDir   string `mapstructure:"content_dir"`
	ListenAddr   string `mapstructure:"listen_addr"`

	AWSProfile string `mapstructure:"aws_profile"`
	S3Bucket   string `mapstructure:"s3_bucket"`

	InputDevice  string `mapstructure:"input_device"`
	MouseDevice  string `mapstructure:"mouse_device"`
	Viewer       string `mapstructure:"viewer"`
	VideoPlayer  string `mapstructure:"video_player"`
	KioskBrowser string `mapstructure:"kiosk_browser"`
	Prompt       string `mapstructure:"prompt"`

	// DisplayOutput is the wlr-randr output switched with the schedule, e.g. HDMI-A-1.
	DisplayOutput string `mapstructure:"display_output"`
}

// RemoteDir is where the S3 bucket is mirrored.
func (c Config) RemoteDir() string {
	return filepath.Join(c.ContentDir, "remote")
}

func defaultRoot() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, configName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + configName
	}
	return filepath.Join(home, ".config", configName)
}

// Load reads demomode.yaml from the working directory or the root path, then applies DEMO_*
// environment overrides. A missing config file is not an error.
func Load() (Config, error) {
	return load(viper.New(), "")
}

// LoadFile is Load with an explicit config file.
func LoadFile(path string) (Config, error) {
	return load(viper.New(), path)
}

func load(v *viper.Viper, file string) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("root_path", defaultRoot())
	v.SetDefault("settings_file", "")
	v.SetDefault("history_db", "")
	v.SetDefault("content_dir", "")
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("aws_profile", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("input_device", "")
	v.SetDefault("mouse_device", "")
	v.SetDefault("viewer", "")
	v.SetDefault("video_player", "")
	v.SetDefault("kiosk_browser", "")
	v.SetDefault("prompt", "auto")
	v.SetDefault("display_output", "")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(v.GetString("root_path"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}

	if cfg.SettingsFile == "" {
		cfg.SettingsFile = filepath.Join(cfg.RootPath, "demo_settings.json")
	}
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = filepath.Join(cfg.RootPath, "history.db")
	}
	if cfg.ContentDir == "" {
		cfg.ContentDir = filepath.Join(cfg.RootPath, "content")
	}
	switch cfg.Prompt {
	case "auto", "terminal", "dialog":
	default:
		return Config{}, fmt.Errorf("unknown prompt %q, expected auto, terminal or dialog", cfg.Prompt)
	}
	return cfg, nil
}
