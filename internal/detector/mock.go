package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockResult is one scripted Detect outcome.
type MockResult struct {
	Hands []HandLandmarks
	Err   error
}

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results, either with a fixed
// answer or with a script consumed one call at a time.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandLandmarks
	err    error
	script []MockResult
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetScript queues results returned by successive Detect calls.
// Once the script is exhausted Detect falls back to SetHands/SetError.
func (m *MockDetector) SetScript(results ...MockResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script[:0], results...)
}

// Detect returns the next scripted result, or the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next.Hands, next.Err
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// LetterALandmarks returns a preset hand forming the ASL letter A:
// a closed fist with the thumb resting along the side of the index finger.
func LetterALandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
		Points:     make([]Point3D, NumLandmarks),
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb upright against the index knuckle
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.68, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: 0.59, Y: 0.62, Z: 0.0}
	landmarks.Points[ThumbTip] = Point3D{X: 0.59, Y: 0.57, Z: 0.0}

	// Fingers curled into the palm
	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.70, Z: -0.02}
	landmarks.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.68, Z: -0.05}
	landmarks.Points[IndexDIP] = Point3D{X: 0.52, Y: 0.70, Z: -0.04}
	landmarks.Points[IndexTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.02}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.68, Z: -0.02}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.66, Z: -0.05}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.47, Y: 0.68, Z: -0.04}
	landmarks.Points[MiddleTip] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.70, Z: -0.02}
	landmarks.Points[RingPIP] = Point3D{X: 0.45, Y: 0.68, Z: -0.05}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.70, Z: -0.04}
	landmarks.Points[RingTip] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.72, Z: -0.02}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.40, Y: 0.70, Z: -0.05}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.37, Y: 0.72, Z: -0.04}
	landmarks.Points[PinkyTip] = Point3D{X: 0.35, Y: 0.74, Z: -0.02}

	return landmarks
}

// LetterBLandmarks returns a preset hand forming the ASL letter B:
// four fingers extended together with the thumb folded across the palm.
func LetterBLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
		Points:     make([]Point3D, NumLandmarks),
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb folded across the palm
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.76, Z: 0.01}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.56, Y: 0.71, Z: -0.02}
	landmarks.Points[ThumbIP] = Point3D{X: 0.52, Y: 0.68, Z: -0.04}
	landmarks.Points[ThumbTip] = Point3D{X: 0.48, Y: 0.67, Z: -0.05}

	// Index, middle, ring and pinky extended upward and held together
	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.55, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.55, Y: 0.36, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.51, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.51, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.51, Y: 0.41, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.51, Y: 0.31, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: 0.47, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.47, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.47, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.47, Y: 0.37, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.43, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.43, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.43, Y: 0.52, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.43, Y: 0.45, Z: 0.0}

	return landmarks
}
