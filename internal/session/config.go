package session

import (
	"fmt"

	"github.com/ayusman/signbridge/internal/detector"
	"github.com/ayusman/signbridge/internal/stability"
)

// Backpressure selects what happens to a full window that arrives while a
// classification is still in flight.
type Backpressure string

const (
	// BackpressureQueue keeps the newest window in a single pending slot.
	BackpressureQueue Backpressure = "queue"
	// BackpressureDrop discards the window.
	BackpressureDrop Backpressure = "drop"
)

// Config holds the session settings.
type Config struct {
	WindowSize        int
	Points            int
	FrameSkip         int
	Threshold         float64
	ConsistencyWindow int
	RefreshConfidence bool
	Async             bool
	Backpressure      Backpressure
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		WindowSize:        30,
		Points:            detector.NumLandmarks,
		FrameSkip:         1,
		Threshold:         stability.DefaultThreshold,
		ConsistencyWindow: stability.DefaultHistory,
		RefreshConfidence: true,
		Async:             true,
		Backpressure:      BackpressureQueue,
	}
}

// Validate checks every setting.
func (c Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidConfig, c.WindowSize)
	}
	if c.Points <= 0 {
		return fmt.Errorf("%w: points must be positive, got %d", ErrInvalidConfig, c.Points)
	}
	if c.FrameSkip < 1 {
		return fmt.Errorf("%w: frame skip must be at least 1, got %d", ErrInvalidConfig, c.FrameSkip)
	}
	switch c.Backpressure {
	case BackpressureQueue, BackpressureDrop:
	default:
		return fmt.Errorf("%w: unknown backpressure policy %q", ErrInvalidConfig, c.Backpressure)
	}
	if err := c.filterConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) filterConfig() stability.Config {
	return stability.Config{
		Threshold:         c.Threshold,
		History:           c.ConsistencyWindow,
		RefreshConfidence: c.RefreshConfidence,
	}
}
