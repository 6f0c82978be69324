// Package detector provides the hand landmark extraction boundary: the Detector
// interface, landmark types, and the backends that turn a video frame into
// zero or more tracked hands.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Point3D represents a landmark in normalized frame-relative coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is the landmark set produced for one tracked hand.
// Points keep the extractor's order; a well-formed set has NumLandmarks points,
// but the slice is not truncated so that shape violations stay visible downstream.
type HandLandmarks struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"` // "Left" or "Right"
	Score      float64   `json:"score"`
}

// Len returns the number of points in the set.
func (h *HandLandmarks) Len() int {
	if h == nil {
		return 0
	}
	return len(h.Points)
}

// Clone returns a deep copy so callers can hold the set after the producer reuses its buffers.
func (h HandLandmarks) Clone() HandLandmarks {
	out := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
		Points:     make([]Point3D, len(h.Points)),
	}
	copy(out.Points, h.Points)
	return out
}
