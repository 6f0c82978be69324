package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/session"
)

// runPipeline reads frames at the current rate and feeds every one of them
// to the session. Motion only changes the capture rate between the idle and
// active FPS; it never gates which frames reach the window.
//
// The loop ends when stopCh closes, the frame source runs dry, or the
// session stops on its own after a fatal error. The camera is closed on exit.
func (a *App) runPipeline(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if err := a.camera.Close(); err != nil {
			a.logger.Warn("failed to close camera", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	fps := a.rate.FPS()
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrNoMoreFrames) || errors.Is(err, capture.ErrCameraNotOpen) {
				a.logger.Info("frame source exhausted", zap.Error(err))
				a.session.Stop()
				return
			}
			a.logger.Warn("failed to read frame", zap.Error(err))
			continue
		}

		motion := a.motion.Detect(frame)
		if next, changed := a.rate.Observe(motion.Moved, a.now()); changed {
			a.camera.SetFPS(next)
			ticker.Reset(time.Second / time.Duration(next))
			a.logger.Debug("capture rate changed",
				zap.Int("fps", next),
				zap.Float64("change_percent", motion.ChangePercent))
		}

		if a.preview != nil {
			if err := a.preview.Update(frame); err != nil {
				a.logger.Debug("failed to update preview", zap.Error(err))
			}
		}

		_, err = a.session.Feed(ctx, frame)
		frame.Close()

		if err != nil {
			var classErr *session.ClassificationError
			if !errors.As(err, &classErr) && !errors.Is(err, session.ErrNotRunning) {
				a.logger.Warn("frame rejected", zap.Error(err))
				continue
			}
			return
		}
	}
}
