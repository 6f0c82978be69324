package config

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError lists every invalid setting found.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(ve.Errors, "; "))
}

// Validate checks cfg and returns a ValidationError naming each violation.
func Validate(cfg *Config) error {
	ve := ValidationError{}
	add := func(format string, args ...any) {
		ve.Errors = append(ve.Errors, fmt.Sprintf(format, args...))
	}

	s := cfg.Session
	if s.WindowSize <= 0 {
		add("session.window_size must be positive, got %d", s.WindowSize)
	}
	if math.IsNaN(s.ConfidenceThreshold) || s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		add("session.confidence_threshold must be within [0,1], got %v", s.ConfidenceThreshold)
	}
	if s.ConsistencyWindow <= 0 {
		add("session.consistency_window must be positive, got %d", s.ConsistencyWindow)
	}
	if s.FrameSkip < 1 {
		add("session.frame_skip must be at least 1, got %d", s.FrameSkip)
	}
	if s.Points <= 0 {
		add("session.points must be positive, got %d", s.Points)
	}
	if s.Backpressure != "queue" && s.Backpressure != "drop" {
		add("session.backpressure must be queue or drop, got %q", s.Backpressure)
	}

	if cfg.Camera.FPS <= 0 {
		add("camera.fps must be positive, got %d", cfg.Camera.FPS)
	}
	if cfg.Camera.IdleFPS <= 0 {
		add("camera.idle_fps must be positive, got %d", cfg.Camera.IdleFPS)
	}

	switch cfg.Detector.Backend {
	case "mediapipe", "mock":
	default:
		add("detector.backend must be mediapipe or mock, got %q", cfg.Detector.Backend)
	}

	switch cfg.Classifier.Backend {
	case "tflite", "template":
	default:
		add("classifier.backend must be tflite or template, got %q", cfg.Classifier.Backend)
	}
	if cfg.Classifier.Threads < 0 {
		add("classifier.threads must not be negative, got %d", cfg.Classifier.Threads)
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		add("redis.addr is required when redis is enabled")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
