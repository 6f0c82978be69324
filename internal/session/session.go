// Package session runs the per-frame recognition pipeline: landmark
// extraction, vectorization, the sliding window, classification and the
// stability filter, behind a start/feed/stop state machine.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/signbridge/internal/classifier"
	"github.com/ayusman/signbridge/internal/detector"
	"github.com/ayusman/signbridge/internal/feature"
	"github.com/ayusman/signbridge/internal/metrics"
	"github.com/ayusman/signbridge/internal/stability"
	"github.com/ayusman/signbridge/internal/window"
)

// Status is the lifecycle state of a session.
type Status string

// Lifecycle states. STOPPED may be restarted with Start.
const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// Output is what Feed hands back to the display layer. Ready is false until
// the first window of the run has been classified ("no prediction yet").
type Output struct {
	Ready bool            `json:"ready"`
	State stability.State `json:"state"`
}

// Transition is a change of the committed label.
type Transition struct {
	RunID      string    `json:"run_id"`
	Label      string    `json:"label"`
	Previous   string    `json:"previous,omitempty"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}

// Snapshot is a consistent view of the session for status endpoints.
type Snapshot struct {
	Status    Status  `json:"status"`
	RunID     string  `json:"run_id,omitempty"`
	Output    Output  `json:"output"`
	Threshold float64 `json:"threshold"`
	Error     string  `json:"error,omitempty"`
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records pipeline metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithClock overrides the time source used for transitions.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Session owns one Buffer and one Filter and drives them from fed frames.
// Set the hooks before the first Start; they are invoked without the
// session lock held.
type Session struct {
	// OnTransition is called for every committed label change.
	OnTransition func(Transition)
	// OnUpdate is called after every applied classification.
	OnUpdate func(Output)
	// OnStop is called when a run ends; err is nil for a requested stop.
	OnStop func(runID string, err error)

	cfg        Config
	detector   detector.Detector
	classifier classifier.Classifier
	vectorizer *feature.Vectorizer
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	mu          sync.Mutex
	status      Status
	runID       string
	gen         uint64
	buffer      *window.Buffer
	filter      *stability.Filter
	ready       bool
	fullFrames  int
	inflight    bool
	pending     window.Window
	err         error
	errReported bool
	stats       Stats
	ctx         context.Context
	cancel      context.CancelFunc

	wg sync.WaitGroup
}

// New creates an idle Session.
func New(cfg Config, det detector.Detector, clf classifier.Classifier, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if det == nil || clf == nil {
		return nil, errors.New("session requires a detector and a classifier")
	}

	vectorizer := feature.NewVectorizer(cfg.Points)
	buffer, err := window.New(cfg.WindowSize, vectorizer.Dim())
	if err != nil {
		return nil, err
	}
	filter, err := stability.NewFilter(cfg.filterConfig())
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:        cfg,
		detector:   det,
		classifier: clf,
		vectorizer: vectorizer,
		logger:     zap.NewNop(),
		now:        time.Now,
		status:     StatusIdle,
		buffer:     buffer,
		filter:     filter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins a new run with an empty window and history and returns its ID.
func (s *Session) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusRunning {
		return "", ErrAlreadyRunning
	}

	s.gen++
	s.status = StatusRunning
	s.runID = uuid.NewString()
	s.resetLocked()
	s.err = nil
	s.errReported = false
	s.stats = newStats(s.runID)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.metrics.SetRunning(true)
	s.logger.Info("session started",
		zap.String("run_id", s.runID),
		zap.Int("window_size", s.cfg.WindowSize),
		zap.Int("frame_skip", s.cfg.FrameSkip),
		zap.Bool("async", s.cfg.Async))

	return s.runID, nil
}

// Stop ends the current run. Classification results arriving afterwards are
// discarded. Stop is idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		return
	}
	runID := s.runID
	s.endLocked()
	s.logger.Info("session stopped", zap.String("run_id", runID))
	s.mu.Unlock()

	s.notifyStop(runID, nil)
}

// Wait blocks until no classification worker is running.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Feed runs one frame through the pipeline. A detector failure counts as a
// frame without a hand. A structural or classifier failure stops the run and
// is returned as a *ClassificationError; in async mode it is returned by the
// next Feed instead.
func (s *Session) Feed(ctx context.Context, frame *gocv.Mat) (Output, error) {
	s.mu.Lock()
	if err := s.checkRunningLocked(); err != nil {
		s.mu.Unlock()
		return Output{}, err
	}
	gen := s.gen
	s.mu.Unlock()

	hands, detectErr := s.detector.Detect(frame)
	if detectErr != nil {
		s.logger.Debug("landmark detection failed, treating frame as absent", zap.Error(detectErr))
		hands = nil
	}
	vec, vecErr := s.vectorizer.FromHands(hands)

	s.mu.Lock()
	if gen != s.gen || s.status != StatusRunning {
		s.mu.Unlock()
		return Output{}, ErrNotRunning
	}

	if vecErr == nil {
		vecErr = s.buffer.Push(vec)
	}
	if vecErr != nil {
		err := s.failLocked(vecErr)
		s.errReported = true
		runID := s.runID
		s.mu.Unlock()
		s.notifyStop(runID, err)
		return Output{}, err
	}

	missed := vec.IsAbsent()
	s.stats.Frames++
	if missed {
		s.stats.MissedDetections++
	}
	if detectErr != nil {
		s.stats.DetectorErrors++
	}
	s.metrics.RecordFrame(missed, detectErr != nil)

	if !s.buffer.IsFull() {
		out := s.outputLocked()
		s.mu.Unlock()
		return out, nil
	}

	s.fullFrames++
	s.stats.Windows++
	if (s.fullFrames-1)%s.cfg.FrameSkip != 0 {
		s.stats.Skipped++
		s.metrics.RecordWindow("skipped")
		out := s.outputLocked()
		s.mu.Unlock()
		return out, nil
	}

	w := s.buffer.Snapshot()

	if s.inflight {
		s.enqueueLocked(w)
		out := s.outputLocked()
		s.mu.Unlock()
		return out, nil
	}
	s.inflight = true

	if s.cfg.Async {
		s.wg.Add(1)
		go s.worker(s.ctx, gen, w)
		out := s.outputLocked()
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	return s.classifyInline(ctx, gen, w)
}

// classifyInline runs one classification on the caller's goroutine.
func (s *Session) classifyInline(ctx context.Context, gen uint64, w window.Window) (Output, error) {
	dist, elapsed, predictErr := s.predict(ctx, w)

	s.mu.Lock()
	if gen == s.gen {
		s.inflight = false
		s.pending = nil
	}
	res := s.applyLocked(gen, dist, elapsed, predictErr)
	if res.fatal != nil {
		s.errReported = true
	}
	out := s.outputLocked()
	s.mu.Unlock()

	s.notify(res)
	switch {
	case res.stale:
		return Output{}, ErrNotRunning
	case res.fatal != nil:
		return Output{}, res.fatal
	case res.invalid != nil:
		return out, res.invalid
	}
	return out, nil
}

// worker classifies w and then any window left in the pending slot.
func (s *Session) worker(ctx context.Context, gen uint64, w window.Window) {
	defer s.wg.Done()

	for {
		dist, elapsed, predictErr := s.predict(ctx, w)

		s.mu.Lock()
		res := s.applyLocked(gen, dist, elapsed, predictErr)
		if res.invalid != nil {
			s.logger.Warn("classifier returned an invalid record", zap.Error(res.invalid))
		}

		var next window.Window
		if gen == s.gen && s.status == StatusRunning && s.pending != nil {
			next = s.pending
			s.pending = nil
		} else if gen == s.gen {
			s.inflight = false
		}
		s.mu.Unlock()

		s.notify(res)
		if next == nil {
			return
		}
		w = next
	}
}

func (s *Session) predict(ctx context.Context, w window.Window) (classifier.Distribution, time.Duration, error) {
	start := time.Now()
	dist, err := s.classifier.Predict(ctx, w)
	return dist, time.Since(start), err
}

// enqueueLocked applies the backpressure policy to a window that arrived
// while a classification is in flight.
func (s *Session) enqueueLocked(w window.Window) {
	if s.cfg.Async && s.cfg.Backpressure == BackpressureQueue {
		if s.pending != nil {
			s.stats.Replaced++
			s.metrics.RecordWindow("replaced")
		}
		s.pending = w
		return
	}
	s.stats.Dropped++
	s.metrics.RecordWindow("dropped")
}

// applied carries the side effects of one classification out of the lock.
type applied struct {
	stale      bool
	runID      string
	update     *Output
	transition *Transition
	fatal      error
	invalid    error
}

// applyLocked folds a classification result into the run identified by gen.
// Results from an earlier run are discarded.
func (s *Session) applyLocked(gen uint64, dist classifier.Distribution, elapsed time.Duration, predictErr error) applied {
	if gen != s.gen || s.status != StatusRunning {
		s.logger.Debug("discarding classification from a finished run")
		return applied{stale: true}
	}
	res := applied{runID: s.runID}

	var rec classifier.Record
	if predictErr == nil {
		rec, predictErr = dist.Top()
	}
	s.metrics.RecordClassification(elapsed.Seconds(), predictErr)
	if predictErr != nil {
		res.fatal = s.failLocked(predictErr)
		return res
	}

	result, err := s.filter.Update(rec)
	if err != nil {
		res.invalid = err
		return res
	}

	s.stats.Classified++
	s.metrics.RecordWindow("classified")
	s.ready = true
	if result.Rejected {
		s.stats.Rejected++
		s.metrics.RecordRejected()
	}
	if result.Changed {
		s.stats.Transitions[result.State.Label]++
		s.metrics.RecordTransition(result.State.Label, result.State.Confidence)
		s.logger.Info("label committed",
			zap.String("run_id", s.runID),
			zap.String("label", result.State.Label),
			zap.String("previous", result.Previous.Label),
			zap.Float64("confidence", result.State.Confidence))
		res.transition = &Transition{
			RunID:      s.runID,
			Label:      result.State.Label,
			Previous:   result.Previous.Label,
			Confidence: result.State.Confidence,
			At:         s.now(),
		}
	} else if result.State.Stable {
		s.metrics.SetConfidence(result.State.Confidence)
	}

	out := s.outputLocked()
	res.update = &out
	return res
}

// failLocked stops the run with a fatal error.
func (s *Session) failLocked(cause error) error {
	err := &ClassificationError{RunID: s.runID, Err: cause}
	s.logger.Error("stopping session after classification failure",
		zap.String("run_id", s.runID),
		zap.Error(cause))
	s.endLocked()
	s.err = err
	s.errReported = false
	return err
}

// endLocked moves to STOPPED, invalidating in-flight work.
func (s *Session) endLocked() {
	s.gen++
	s.status = StatusStopped
	if s.cancel != nil {
		s.cancel()
	}
	s.resetLocked()
	s.metrics.SetRunning(false)
}

func (s *Session) resetLocked() {
	s.buffer.Reset()
	s.filter.Reset()
	s.ready = false
	s.fullFrames = 0
	s.inflight = false
	s.pending = nil
}

func (s *Session) checkRunningLocked() error {
	if s.status == StatusRunning {
		return nil
	}
	if s.err != nil && !s.errReported {
		s.errReported = true
		return s.err
	}
	return ErrNotRunning
}

func (s *Session) outputLocked() Output {
	return Output{Ready: s.ready, State: s.filter.State()}
}

func (s *Session) notify(res applied) {
	if res.update != nil && s.OnUpdate != nil {
		s.OnUpdate(*res.update)
	}
	if res.transition != nil && s.OnTransition != nil {
		s.OnTransition(*res.transition)
	}
	if res.fatal != nil {
		s.notifyStop(res.runID, res.fatal)
	}
}

func (s *Session) notifyStop(runID string, err error) {
	if s.OnStop != nil {
		s.OnStop(runID, err)
	}
}

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// RunID returns the ID of the current or most recent run.
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Output returns the current display output.
func (s *Session) Output() Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputLocked()
}

// Err returns the fatal error that ended the last run, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot returns the status, output and error in one consistent read.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status:    s.status,
		RunID:     s.runID,
		Output:    s.outputLocked(),
		Threshold: s.filter.Threshold(),
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

// SetThreshold changes the confidence threshold from the next update on.
func (s *Session) SetThreshold(t float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.filter.SetThreshold(t); err != nil {
		return err
	}
	s.cfg.Threshold = t
	s.logger.Info("confidence threshold changed", zap.Float64("threshold", t))
	return nil
}

// Config returns the session settings.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}
