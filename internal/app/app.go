// Package app wires the camera, the recognition session and the outer
// surfaces (store, display feed, Redis, tray) into one running application.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/classifier"
	"github.com/ayusman/signbridge/internal/detector"
	"github.com/ayusman/signbridge/internal/metrics"
	"github.com/ayusman/signbridge/internal/publish"
	"github.com/ayusman/signbridge/internal/session"
	"github.com/ayusman/signbridge/internal/store"
)

// Defaults for the acquisition loop.
const (
	// IdleFPS is the frame rate when no motion is detected.
	IdleFPS = 5
	// ActiveFPS is the frame rate while the scene moves.
	ActiveFPS = 15
	// IdleTimeout is how long the scene must be still before switching back to idle.
	IdleTimeout = 2 * time.Second

	publishTimeout = time.Second
)

// Stop reasons recorded on a run.
const (
	ReasonStopped = "stopped"
	reasonError   = "error: "
)

// Config holds the collaborators of an App. Session settings, Camera,
// Detector and Classifier are required; everything else is optional.
type Config struct {
	Session      session.Config
	Camera       capture.Camera
	Detector     detector.Detector
	Classifier   classifier.Classifier
	Store        *store.Store
	Publisher    publish.Publisher
	Metrics      *metrics.Metrics
	Preview      *capture.Preview
	Logger       *zap.Logger
	MotionThresh float64
	ActiveFPS    int
	IdleFPS      int
	IdleTimeout  time.Duration
}

// App runs the frame acquisition loop around a recognition session.
type App struct {
	config  Config
	session *session.Session
	camera  capture.Camera
	motion  *capture.MotionDetector
	rate    *capture.RateController
	preview *capture.Preview
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}

	hooksMu   sync.RWMutex
	onDisplay []func(session.Output)
	onTrans   []func(session.Transition)
	onStatus  []func(session.Snapshot)
}

// New creates an App. A threshold saved in the store overrides the configured one.
func New(config Config) (*App, error) {
	if config.Camera == nil {
		return nil, errors.New("app requires a camera")
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if config.Store != nil {
		t, err := config.Store.Settings().GetFloat(store.SettingThreshold)
		switch {
		case err == nil:
			config.Session.Threshold = t
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("failed to load saved threshold: %w", err)
		}
	}

	sess, err := session.New(config.Session, config.Detector, config.Classifier,
		session.WithLogger(logger.Named("session")),
		session.WithMetrics(config.Metrics),
	)
	if err != nil {
		return nil, err
	}

	motionThreshold := config.MotionThresh
	if motionThreshold <= 0 {
		motionThreshold = 1.0 // 1% of pixels changed
	}
	activeFPS := config.ActiveFPS
	if activeFPS <= 0 {
		activeFPS = ActiveFPS
	}
	idleFPS := config.IdleFPS
	if idleFPS <= 0 {
		idleFPS = IdleFPS
	}
	idleTimeout := config.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = IdleTimeout
	}

	a := &App{
		config:  config,
		session: sess,
		camera:  config.Camera,
		motion:  capture.NewMotionDetector(motionThreshold),
		rate:    capture.NewRateController(activeFPS, idleFPS, idleTimeout),
		preview: config.Preview,
		logger:  logger,
		now:     time.Now,
	}

	sess.OnUpdate = a.handleUpdate
	sess.OnTransition = a.handleTransition
	sess.OnStop = a.handleStop

	return a, nil
}

// Session returns the recognition session.
func (a *App) Session() *session.Session {
	return a.session
}

// OnDisplay registers fn to receive every display update.
func (a *App) OnDisplay(fn func(session.Output)) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	a.onDisplay = append(a.onDisplay, fn)
}

// OnTransition registers fn to receive every committed transition.
func (a *App) OnTransition(fn func(session.Transition)) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	a.onTrans = append(a.onTrans, fn)
}

// OnStatus registers fn to receive lifecycle changes.
func (a *App) OnStatus(fn func(session.Snapshot)) {
	a.hooksMu.Lock()
	defer a.hooksMu.Unlock()
	a.onStatus = append(a.onStatus, fn)
}

// Start opens the camera and begins a new recognition run.
func (a *App) Start() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session.Status() == session.StatusRunning {
		return "", session.ErrAlreadyRunning
	}
	// A loop ended by a fatal error may still be closing the camera.
	a.stopLoopLocked()

	if err := a.camera.Open(); err != nil {
		return "", fmt.Errorf("failed to open camera: %w", err)
	}

	runID, err := a.session.Start()
	if err != nil {
		a.camera.Close()
		return "", err
	}

	if a.config.Store != nil {
		if err := a.config.Store.Runs().Create(runID, a.now()); err != nil {
			a.logger.Warn("failed to record run", zap.String("run_id", runID), zap.Error(err))
		}
	}

	a.motion.Reset()
	a.rate.Reset()
	a.camera.SetFPS(a.rate.FPS())

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.stopCh, a.done)

	a.logger.Info("detection pipeline started", zap.String("run_id", runID))
	a.emitStatus()
	return runID, nil
}

// Stop ends the current run and waits for the acquisition loop to exit.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.session.Stop()
	a.stopLoopLocked()
	a.session.Wait()
}

// Close stops the app and releases the detector and publisher.
func (a *App) Close() error {
	a.Stop()
	a.motion.Close()

	var errs []error
	if a.config.Detector != nil {
		if err := a.config.Detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close detector: %w", err))
		}
	}
	if closer, ok := a.config.Classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close classifier: %w", err))
		}
	}
	if a.config.Publisher != nil {
		if err := a.config.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) stopLoopLocked() {
	if a.stopCh == nil {
		return
	}
	close(a.stopCh)
	<-a.done
	a.stopCh = nil
	a.done = nil
}

// Snapshot returns the session status.
func (a *App) Snapshot() session.Snapshot {
	return a.session.Snapshot()
}

// Stats returns the counters of the current or last run.
func (a *App) Stats() session.Stats {
	return a.session.Stats()
}

// SetThreshold changes the confidence threshold and saves it for the next start.
func (a *App) SetThreshold(t float64) error {
	if err := a.session.SetThreshold(t); err != nil {
		return err
	}
	if a.config.Store != nil {
		if err := a.config.Store.Settings().SetFloat(store.SettingThreshold, t); err != nil {
			return fmt.Errorf("failed to save threshold: %w", err)
		}
	}
	return nil
}

// IsRunning reports whether a run is active.
func (a *App) IsRunning() bool {
	return a.session.Status() == session.StatusRunning
}

func (a *App) handleUpdate(out session.Output) {
	if a.config.Publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.config.Publisher.PublishDisplay(ctx, out); err != nil {
			a.logger.Debug("failed to publish display state", zap.Error(err))
		}
		cancel()
	}

	a.hooksMu.RLock()
	defer a.hooksMu.RUnlock()
	for _, fn := range a.onDisplay {
		fn(out)
	}
}

func (a *App) handleTransition(t session.Transition) {
	a.logger.Info("label committed",
		zap.String("run_id", t.RunID),
		zap.String("label", t.Label),
		zap.String("previous", t.Previous),
		zap.Float64("confidence", t.Confidence))

	if a.config.Store != nil {
		err := a.config.Store.Transitions().Record(&store.Transition{
			RunID:      t.RunID,
			Label:      t.Label,
			Previous:   t.Previous,
			Confidence: t.Confidence,
			CreatedAt:  t.At,
		})
		if err != nil {
			a.logger.Warn("failed to record transition", zap.Error(err))
		}
	}

	if a.config.Publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.config.Publisher.PublishTransition(ctx, t); err != nil {
			a.logger.Warn("failed to publish transition", zap.Error(err))
		}
		cancel()
	}

	a.hooksMu.RLock()
	defer a.hooksMu.RUnlock()
	for _, fn := range a.onTrans {
		fn(t)
	}
}

func (a *App) handleStop(runID string, err error) {
	reason := ReasonStopped
	if err != nil {
		reason = reasonError + err.Error()
		a.logger.Error("recognition run failed", zap.String("run_id", runID), zap.Error(err))
	}

	if a.config.Store != nil {
		if ferr := a.config.Store.Runs().Finish(runID, a.now(), reason); ferr != nil {
			a.logger.Warn("failed to finish run", zap.String("run_id", runID), zap.Error(ferr))
		}
	}
	a.emitStatus()
}

func (a *App) emitStatus() {
	snap := a.session.Snapshot()

	a.hooksMu.RLock()
	defer a.hooksMu.RUnlock()
	for _, fn := range a.onStatus {
		fn(snap)
	}
}
