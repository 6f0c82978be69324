// Package config loads signbridge settings from YAML, the environment and
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/signbridge/internal/session"
)

// EnvPrefix is the prefix for environment overrides, e.g. SIGNBRIDGE_SESSION_FRAME_SKIP.
const EnvPrefix = "SIGNBRIDGE"

// Config contains all settings.
type Config struct {
	Session    SessionConfig    `mapstructure:"session"`
	Camera     CameraConfig     `mapstructure:"camera"`
	Motion     MotionConfig     `mapstructure:"motion"`
	Detector   DetectorConfig   `mapstructure:"detector"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Tray       TrayConfig       `mapstructure:"tray"`
}

// SessionConfig controls the recognition pipeline.
type SessionConfig struct {
	WindowSize          int     `mapstructure:"window_size"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	ConsistencyWindow   int     `mapstructure:"consistency_window"`
	FrameSkip           int     `mapstructure:"frame_skip"`
	Points              int     `mapstructure:"points"`
	Backpressure        string  `mapstructure:"backpressure"`
	RefreshConfidence   bool    `mapstructure:"refresh_confidence"`
	Async               bool    `mapstructure:"async"`
}

// CameraConfig selects the capture device and frame rates.
type CameraConfig struct {
	Device      int           `mapstructure:"device"`
	FPS         int           `mapstructure:"fps"`
	IdleFPS     int           `mapstructure:"idle_fps"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// MotionConfig tunes the idle/active frame rate switch.
type MotionConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

// DetectorConfig selects the landmark backend.
type DetectorConfig struct {
	Backend               string  `mapstructure:"backend"`
	MinConfidence         float64 `mapstructure:"min_confidence"`
	MinTrackingConfidence float64 `mapstructure:"min_tracking_confidence"`
}

// ClassifierConfig selects the window classifier.
type ClassifierConfig struct {
	Backend    string `mapstructure:"backend"`
	ModelPath  string `mapstructure:"model_path"`
	LabelsPath string `mapstructure:"labels_path"`
	Threads    int    `mapstructure:"threads"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	StaticDir string `mapstructure:"static_dir"`
}

// StoreConfig locates the sqlite database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig configures transition fan-out.
type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Channel   string `mapstructure:"channel"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// TrayConfig toggles the system tray icon.
type TrayConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads the config file at path, or signbridge.yaml from the default
// search paths when path is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("signbridge")
		v.SetConfigType("yaml")
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DataDir returns the per-user data directory.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".signbridge"
	}
	return filepath.Join(home, ".signbridge")
}

func searchPaths() []string {
	return []string{".", DataDir()}
}

// SessionSettings converts the session section into session.Config.
func (c *Config) SessionSettings() session.Config {
	return session.Config{
		WindowSize:        c.Session.WindowSize,
		Points:            c.Session.Points,
		FrameSkip:         c.Session.FrameSkip,
		Threshold:         c.Session.ConfidenceThreshold,
		ConsistencyWindow: c.Session.ConsistencyWindow,
		RefreshConfidence: c.Session.RefreshConfidence,
		Async:             c.Session.Async,
		Backpressure:      session.Backpressure(c.Session.Backpressure),
	}
}
