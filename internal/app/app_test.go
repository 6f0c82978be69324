package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/classifier"
	"github.com/ayusman/signbridge/internal/config"
	"github.com/ayusman/signbridge/internal/detector"
	"github.com/ayusman/signbridge/internal/session"
	"github.com/ayusman/signbridge/internal/store"
	"github.com/ayusman/signbridge/internal/window"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func blankFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, m := range frames {
			m.Close()
		}
	})
	return frames
}

func constant(dist classifier.Distribution) classifier.Classifier {
	return classifier.Func(func(ctx context.Context, w window.Window) (classifier.Distribution, error) {
		return dist, nil
	})
}

func testConfig(cam capture.Camera, det detector.Detector, clf classifier.Classifier, st *store.Store) Config {
	sc := session.DefaultConfig()
	sc.WindowSize = 5
	sc.ConsistencyWindow = 3
	sc.Async = false
	return Config{
		Session:     sc,
		Camera:      cam,
		Detector:    det,
		Classifier:  clf,
		Store:       st,
		ActiveFPS:   200,
		IdleFPS:     100,
		IdleTimeout: 50 * time.Millisecond,
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{Session: session.DefaultConfig()})
	assert.Error(t, err)

	cam := capture.NewMockCamera(nil, false)
	_, err = New(Config{Session: session.DefaultConfig(), Camera: cam})
	assert.Error(t, err, "detector and classifier are required")
}

func TestApp_ThresholdIsSaved(t *testing.T) {
	st := newTestStore(t)
	cfg := testConfig(capture.NewMockCamera(nil, false), detector.NewMockDetector(), constant(classifier.Distribution{"A": 1}), st)

	a, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.SetThreshold(0.55))
	assert.Equal(t, 0.55, a.Snapshot().Threshold)

	err = a.SetThreshold(2)
	assert.Error(t, err)

	saved, err := st.Settings().GetFloat(store.SettingThreshold)
	require.NoError(t, err)
	assert.Equal(t, 0.55, saved)

	b, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 0.55, b.Session().Config().Threshold)
}

func TestApp_RecognizesStableLabel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	st := newTestStore(t)
	cam := capture.NewMockCamera(blankFrames(t, 4), true)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.LetterALandmarks()})

	a, err := New(testConfig(cam, det, constant(classifier.Distribution{"A": 0.9, "B": 0.1}), st))
	require.NoError(t, err)

	var mu sync.Mutex
	var committed []string
	var statuses []session.Status
	a.OnTransition(func(tr session.Transition) {
		mu.Lock()
		defer mu.Unlock()
		committed = append(committed, tr.Label)
	})
	a.OnStatus(func(snap session.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, snap.Status)
	})

	runID, err := a.Start()
	require.NoError(t, err)
	assert.True(t, a.IsRunning())

	_, err = a.Start()
	assert.ErrorIs(t, err, session.ErrAlreadyRunning)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(committed) > 0
	}, 2*time.Second, 10*time.Millisecond)

	a.Stop()
	assert.False(t, cam.IsOpen())
	assert.Equal(t, session.StatusStopped, a.Snapshot().Status)

	mu.Lock()
	assert.Equal(t, []string{"A"}, committed)
	assert.Equal(t, []session.Status{session.StatusRunning, session.StatusStopped}, statuses)
	mu.Unlock()

	transitions, err := st.Transitions().ListByRun(runID)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, "A", transitions[0].Label)
	assert.InDelta(t, 0.9, transitions[0].Confidence, 1e-9)

	run, err := st.Runs().GetByID(runID)
	require.NoError(t, err)
	assert.Equal(t, ReasonStopped, run.Reason)
	assert.NotNil(t, run.StoppedAt)

	stats := a.Stats()
	assert.Equal(t, runID, stats.RunID)
	assert.Equal(t, uint64(1), stats.Transitions["A"])
}

func TestApp_FrameSourceExhausted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	st := newTestStore(t)
	cam := capture.NewMockCamera(blankFrames(t, 3), false)

	a, err := New(testConfig(cam, detector.NewMockDetector(), constant(classifier.Distribution{"A": 1}), st))
	require.NoError(t, err)

	runID, err := a.Start()
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !a.IsRunning() }, 2*time.Second, 10*time.Millisecond)
	a.Stop()

	assert.Equal(t, 3, cam.Reads())
	assert.Equal(t, uint64(3), a.Stats().Frames)

	run, err := st.Runs().GetByID(runID)
	require.NoError(t, err)
	assert.Equal(t, ReasonStopped, run.Reason)
}

func TestApp_FatalErrorIsRecorded(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	st := newTestStore(t)
	cam := capture.NewMockCamera(blankFrames(t, 2), true)
	failing := classifier.Func(func(ctx context.Context, w window.Window) (classifier.Distribution, error) {
		return nil, errors.New("model exploded")
	})

	a, err := New(testConfig(cam, detector.NewMockDetector(), failing, st))
	require.NoError(t, err)

	runID, err := a.Start()
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !a.IsRunning() }, 2*time.Second, 10*time.Millisecond)
	a.Stop()

	snap := a.Snapshot()
	assert.Equal(t, session.StatusStopped, snap.Status)
	assert.Contains(t, snap.Error, "model exploded")

	run, err := st.Runs().GetByID(runID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(run.Reason, "error: "), "reason %q", run.Reason)

	// The app can be restarted after a failure.
	_, err = a.Start()
	require.NoError(t, err)
	a.Stop()
}

func TestApp_MotionSwitchesRate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dark := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer dark.Close()
	bright := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer bright.Close()

	cam := capture.NewMockCamera([]*gocv.Mat{&dark, &bright}, true)
	a, err := New(testConfig(cam, detector.NewMockDetector(), constant(classifier.Distribution{"A": 1}), nil))
	require.NoError(t, err)

	_, err = a.Start()
	require.NoError(t, err)
	defer a.Stop()

	require.Eventually(t, func() bool {
		for _, fps := range cam.FPSHistory() {
			if fps == 200 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 100, cam.FPSHistory()[0], "starts at the idle rate")
}

func TestApp_Preview(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	preview := capture.NewPreview()
	unwatch := preview.Watch()
	defer unwatch()

	cam := capture.NewMockCamera(blankFrames(t, 1), true)
	cfg := testConfig(cam, detector.NewMockDetector(), constant(classifier.Distribution{"A": 1}), nil)
	cfg.Preview = preview

	a, err := New(cfg)
	require.NoError(t, err)
	_, err = a.Start()
	require.NoError(t, err)
	defer a.Stop()

	require.Eventually(t, func() bool {
		_, seq := preview.Latest()
		return seq > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoadLabels(t *testing.T) {
	st := newTestStore(t)

	t.Run("empty registry", func(t *testing.T) {
		_, err := LoadLabels(config.ClassifierConfig{}, st)
		assert.Error(t, err)
	})

	t.Run("registry", func(t *testing.T) {
		for _, name := range []string{"B", "A"} {
			_, err := st.Labels().Create(name)
			require.NoError(t, err)
		}
		labels, err := LoadLabels(config.ClassifierConfig{}, st)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, labels)
	})

	t.Run("file takes precedence", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "labels.txt")
		require.NoError(t, os.WriteFile(path, []byte("# letters\nC\nD\n"), 0644))
		labels, err := LoadLabels(config.ClassifierConfig{LabelsPath: path}, st)
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "D"}, labels)
	})
}

func TestNewClassifier(t *testing.T) {
	st := newTestStore(t)
	cfg, err := config.Load("")
	require.NoError(t, err)

	t.Run("tflite requires a model", func(t *testing.T) {
		_, err := NewClassifier(cfg, st, nil)
		assert.ErrorIs(t, err, ErrNoModel)
	})

	t.Run("template backend loads stored templates", func(t *testing.T) {
		_, err := st.Labels().Create("A")
		require.NoError(t, err)
		centroid := make([]float32, cfg.Session.Points*3)
		centroid[0] = 0.5
		require.NoError(t, st.Templates().Save(&store.Template{Label: "A", Centroid: centroid, Samples: 1}))

		tc := *cfg
		tc.Classifier.Backend = "template"
		clf, err := NewClassifier(&tc, st, nil)
		require.NoError(t, err)

		templates, ok := clf.(*classifier.TemplateClassifier)
		require.True(t, ok)
		assert.Equal(t, []string{"A"}, templates.Labels())
	})
}

func TestNewDetector_Mock(t *testing.T) {
	det := NewDetector(config.DetectorConfig{Backend: "mock"}, nil)
	_, ok := det.(*detector.MockDetector)
	assert.True(t, ok)
}
