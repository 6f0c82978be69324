package classifier

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	tflite "github.com/tphakala/go-tflite"
	"go.uber.org/zap"

	"github.com/ayusman/signbridge/internal/feature"
	"github.com/ayusman/signbridge/internal/window"
)

// TFLiteConfig describes the sequence model and its input shape.
type TFLiteConfig struct {
	ModelPath string
	Labels    []string
	Frames    int // window size N
	Dim       int // feature vector length
	Threads   int // 0 picks based on CPU count
}

// TFLite runs a TensorFlow Lite sequence model with input [1, N, D] and a
// softmax output of K probabilities.
type TFLite struct {
	config      TFLiteConfig
	logger      *zap.Logger
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	mu          sync.Mutex
}

// NewTFLite loads the model and allocates its tensors.
func NewTFLite(config TFLiteConfig, logger *zap.Logger) (*TFLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(config.Labels) == 0 {
		return nil, fmt.Errorf("tflite: no labels configured")
	}

	model := tflite.NewModelFromFile(config.ModelPath)
	if model == nil {
		return nil, fmt.Errorf("tflite: cannot load model %s", config.ModelPath)
	}

	threads := config.Threads
	if threads <= 0 {
		threads = max(1, runtime.NumCPU()/2)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ any) {
		logger.Error("tflite error", zap.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("tflite: cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("tflite: tensor allocation failed: %v", status)
	}

	c := &TFLite{
		config:      config,
		logger:      logger.Named("tflite"),
		model:       model,
		options:     options,
		interpreter: interpreter,
	}

	if err := c.checkTensors(); err != nil {
		c.Close()
		return nil, err
	}

	c.logger.Info("model loaded",
		zap.String("model", config.ModelPath),
		zap.Int("labels", len(config.Labels)),
		zap.Int("threads", threads))

	return c, nil
}

// checkTensors verifies the model shape against the configured window and labels.
func (c *TFLite) checkTensors() error {
	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return fmt.Errorf("tflite: cannot get input tensor")
	}
	want := c.config.Frames * c.config.Dim
	if got := len(input.Float32s()); got != want {
		return fmt.Errorf("tflite: %w", &feature.ShapeError{Kind: "input tensor", Got: got, Want: want})
	}

	output := c.interpreter.GetOutputTensor(0)
	if output == nil {
		return fmt.Errorf("tflite: cannot get output tensor")
	}
	if got := output.Dim(output.NumDims() - 1); got != len(c.config.Labels) {
		return &LabelCountError{Labels: len(c.config.Labels), Outputs: got}
	}
	return nil
}

// Predict copies the window into the input tensor and returns the output
// probabilities keyed by label.
func (c *TFLite) Predict(ctx context.Context, w window.Window) (Distribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.CheckShape(c.config.Frames, c.config.Dim); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter == nil {
		return nil, fmt.Errorf("tflite: classifier closed")
	}

	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("tflite: cannot get input tensor")
	}
	copy(input.Float32s(), w.Flatten())

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tflite: invoke failed: %v", status)
	}

	output := c.interpreter.GetOutputTensor(0)
	size := output.Dim(output.NumDims() - 1)
	scores := make([]float32, size)
	copy(scores, output.Float32s())

	return FromScores(c.config.Labels, scores)
}

// Labels returns the label list in output-index order.
func (c *TFLite) Labels() []string {
	out := make([]string, len(c.config.Labels))
	copy(out, c.config.Labels)
	return out
}

// Close releases the interpreter and model.
func (c *TFLite) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.options != nil {
		c.options.Delete()
		c.options = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}
