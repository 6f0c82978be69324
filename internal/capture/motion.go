package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// blurKernel is the Gaussian kernel size applied before differencing.
	blurKernel = 21
	// pixelDelta is the per-pixel intensity change counted as motion.
	pixelDelta = 25
)

// Motion is the result of comparing a frame with the previous one.
type Motion struct {
	Moved         bool
	ChangePercent float64
}

// MotionDetector compares consecutive frames by differencing their blurred
// grayscale versions. It only steers the capture rate; frames are never
// withheld from recognition because of it.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64 // percent of pixels that must change
	baseline  gocv.Mat
	primed    bool
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage
// of changed pixels above which a frame counts as motion.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		baseline:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous frame. The first frame only
// establishes the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) Motion {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return Motion{}
	}

	current := preprocess(frame)
	defer current.Close()

	if !m.primed {
		current.CopyTo(&m.baseline)
		m.primed = true
		return Motion{}
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(current, m.baseline, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, pixelDelta, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(mask)) / float64(mask.Rows()*mask.Cols()) * 100.0
	current.CopyTo(&m.baseline)

	return Motion{Moved: changed > m.threshold, ChangePercent: changed}
}

// preprocess returns the blurred grayscale version of frame.
func preprocess(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: blurKernel, Y: blurKernel}, 0, 0, gocv.BorderDefault)
	return blurred
}

// Reset drops the baseline so the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Close releases the baseline Mat.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	m.baseline.Close()
}

func (m *MotionDetector) resetLocked() {
	if !m.baseline.Empty() {
		m.baseline.Close()
		m.baseline = gocv.NewMat()
	}
	m.primed = false
}

// Threshold returns the motion threshold in percent.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// SetThreshold sets the motion threshold. Values less than or equal to 0
// are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}
