package app

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ayusman/signbridge/internal/classifier"
	"github.com/ayusman/signbridge/internal/config"
	"github.com/ayusman/signbridge/internal/detector"
	"github.com/ayusman/signbridge/internal/feature"
	"github.com/ayusman/signbridge/internal/store"
)

// ErrNoModel is returned when the tflite backend is selected without a model.
var ErrNoModel = errors.New("classifier.model_path is required for the tflite backend")

// NewDetector builds the landmark backend named in cfg. When MediaPipe is
// unavailable the mock detector is used so the API stays reachable.
func NewDetector(cfg config.DetectorConfig, logger *zap.Logger) detector.Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Backend == "mock" {
		return detector.NewMockDetector()
	}

	dc := detector.DefaultConfig()
	dc.MinConfidence = cfg.MinConfidence
	dc.MinTrackingConf = cfg.MinTrackingConfidence

	mp, err := detector.NewMediaPipeDetector(dc, logger)
	if err != nil {
		logger.Warn("MediaPipe not available, using mock detector", zap.Error(err))
		return detector.NewMockDetector()
	}
	logger.Info("using MediaPipe hand detection")
	return mp
}

// LoadLabels returns the classifier label set: the labels file when one is
// configured, otherwise the label registry. Order defines output index.
func LoadLabels(cfg config.ClassifierConfig, st *store.Store) ([]string, error) {
	if cfg.LabelsPath != "" {
		return classifier.LoadLabels(cfg.LabelsPath)
	}
	if st == nil {
		return nil, errors.New("no labels file configured and no store available")
	}
	labels, err := st.Labels().Names()
	if err != nil {
		return nil, fmt.Errorf("failed to load label registry: %w", err)
	}
	if len(labels) == 0 {
		return nil, errors.New("label registry is empty")
	}
	return labels, nil
}

// NewClassifier builds the window classifier named in cfg.
func NewClassifier(cfg *config.Config, st *store.Store, logger *zap.Logger) (classifier.Classifier, error) {
	frames := cfg.Session.WindowSize
	dim := feature.NewVectorizer(cfg.Session.Points).Dim()

	switch cfg.Classifier.Backend {
	case "template":
		clf, err := LoadTemplates(st, frames, dim, logger)
		if err != nil {
			return nil, err
		}
		return clf, nil
	case "tflite":
		if cfg.Classifier.ModelPath == "" {
			return nil, ErrNoModel
		}
		labels, err := LoadLabels(cfg.Classifier, st)
		if err != nil {
			return nil, err
		}
		clf, err := classifier.NewTFLite(classifier.TFLiteConfig{
			ModelPath: cfg.Classifier.ModelPath,
			Labels:    labels,
			Frames:    frames,
			Dim:       dim,
			Threads:   cfg.Classifier.Threads,
		}, logger)
		if err != nil {
			return nil, err
		}
		return clf, nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Classifier.Backend)
	}
}

// LoadTemplates builds a template classifier from the stored templates.
func LoadTemplates(st *store.Store, frames, dim int, logger *zap.Logger) (*classifier.TemplateClassifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clf := classifier.NewTemplateClassifier(frames, dim)
	if st == nil {
		return clf, nil
	}

	templates, err := st.Templates().List()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	for _, t := range templates {
		err := clf.AddTemplate(&classifier.Template{
			Label:    t.Label,
			Centroid: feature.Vector(t.Centroid),
		})
		if err != nil {
			logger.Warn("skipping template", zap.String("label", t.Label), zap.Error(err))
		}
	}

	logger.Info("loaded templates", zap.Int("count", len(clf.Labels())))
	return clf, nil
}
