// Package stability debounces the raw per-window prediction stream into a
// confidence-gated label that only changes when recent evidence agrees.
package stability

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/signbridge/internal/classifier"
)

const (
	// DefaultThreshold is the minimum confidence a record needs to count as evidence.
	DefaultThreshold = 0.8
	// DefaultHistory is the number of qualifying labels considered for a commit.
	DefaultHistory = 10
)

var (
	// ErrInvalidRecord is returned for a malformed prediction record.
	ErrInvalidRecord = errors.New("invalid prediction record")
	// ErrInvalidConfig is returned for an out-of-range filter setting.
	ErrInvalidConfig = errors.New("invalid stability config")
)

// State is the externally visible display state. Stable is false until a
// label has been committed, which reads as "no stable output".
type State struct {
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence"`
	Stable     bool    `json:"stable"`
}

// Result describes what a single Update did.
type Result struct {
	State    State
	Previous State
	Rejected bool // below threshold, history untouched
	Changed  bool // committed label differs from Previous
}

// Config holds the filter settings.
type Config struct {
	Threshold         float64
	History           int
	RefreshConfidence bool
}

// DefaultConfig returns the default filter settings.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		History:           DefaultHistory,
		RefreshConfidence: true,
	}
}

// Validate checks the threshold and history size.
func (c Config) Validate() error {
	if err := validateThreshold(c.Threshold); err != nil {
		return err
	}
	if c.History <= 0 {
		return fmt.Errorf("%w: history size must be positive, got %d", ErrInvalidConfig, c.History)
	}
	return nil
}

func validateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidConfig, t)
	}
	return nil
}

// Filter keeps the last History qualifying labels and commits the majority
// label once the history is full. Filter is not safe for concurrent use.
type Filter struct {
	cfg     Config
	history []string
	start   int
	size    int
	state   State
}

// NewFilter creates a Filter with an empty history.
func NewFilter(cfg Config) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Filter{
		cfg:     cfg,
		history: make([]string, cfg.History),
	}, nil
}

// Update applies one prediction record and returns the resulting state.
// A malformed record fails with ErrInvalidRecord and changes nothing.
func (f *Filter) Update(rec classifier.Record) (Result, error) {
	prev := f.state

	if rec.Label == "" {
		return Result{State: prev, Previous: prev}, fmt.Errorf("%w: empty label", ErrInvalidRecord)
	}
	if math.IsNaN(rec.Confidence) || rec.Confidence < 0 || rec.Confidence > 1 {
		return Result{State: prev, Previous: prev}, fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidRecord, rec.Confidence)
	}

	if rec.Confidence < f.cfg.Threshold {
		return Result{State: prev, Previous: prev, Rejected: true}, nil
	}

	f.push(rec.Label)
	if f.size < len(f.history) {
		return Result{State: prev, Previous: prev}, nil
	}

	label := f.committed()
	switch {
	case !prev.Stable || label != prev.Label:
		f.state = State{Label: label, Confidence: rec.Confidence, Stable: true}
		return Result{State: f.state, Previous: prev, Changed: true}, nil
	case f.cfg.RefreshConfidence && rec.Label == label:
		f.state.Confidence = rec.Confidence
	}

	return Result{State: f.state, Previous: prev}, nil
}

// push appends label, evicting the oldest once the history is full.
func (f *Filter) push(label string) {
	capacity := len(f.history)
	if f.size < capacity {
		f.history[(f.start+f.size)%capacity] = label
		f.size++
		return
	}
	f.history[f.start] = label
	f.start = (f.start + 1) % capacity
}

// committed returns the most frequent label in the history. Ties go to the
// label whose first occurrence is oldest.
func (f *Filter) committed() string {
	counts := make(map[string]int, f.size)
	order := make([]string, 0, f.size)
	for _, label := range f.History() {
		if counts[label] == 0 {
			order = append(order, label)
		}
		counts[label]++
	}

	best := ""
	bestCount := 0
	for _, label := range order {
		if counts[label] > bestCount {
			best = label
			bestCount = counts[label]
		}
	}
	return best
}

// History returns the qualifying labels, oldest first.
func (f *Filter) History() []string {
	out := make([]string, f.size)
	for i := 0; i < f.size; i++ {
		out[i] = f.history[(f.start+i)%len(f.history)]
	}
	return out
}

// State returns the current display state.
func (f *Filter) State() State {
	return f.state
}

// Threshold returns the active confidence threshold.
func (f *Filter) Threshold() float64 {
	return f.cfg.Threshold
}

// SetThreshold changes the confidence threshold for subsequent updates.
// The history is kept.
func (f *Filter) SetThreshold(t float64) error {
	if err := validateThreshold(t); err != nil {
		return err
	}
	f.cfg.Threshold = t
	return nil
}

// Reset clears the history and the display state.
func (f *Filter) Reset() {
	for i := range f.history {
		f.history[i] = ""
	}
	f.start = 0
	f.size = 0
	f.state = State{}
}
