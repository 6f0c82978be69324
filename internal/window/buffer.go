// Package window holds the sliding window of recent feature vectors that is
// handed to the classifier.
package window

import (
	"fmt"

	"github.com/ayusman/signbridge/internal/feature"
)

// Window is an ordered, oldest-first sequence of feature vectors.
type Window []feature.Vector

// Len returns the number of frames in the window.
func (w Window) Len() int {
	return len(w)
}

// Flatten returns the window as a single row-major slice (frames x dim).
func (w Window) Flatten() []float32 {
	if len(w) == 0 {
		return nil
	}
	out := make([]float32, 0, len(w)*len(w[0]))
	for _, v := range w {
		out = append(out, v...)
	}
	return out
}

// CheckShape verifies the window is exactly frames vectors of length dim.
func (w Window) CheckShape(frames, dim int) error {
	if len(w) != frames {
		return &feature.ShapeError{Kind: "window", Got: len(w), Want: frames}
	}
	for _, v := range w {
		if len(v) != dim {
			return &feature.ShapeError{Kind: "vector", Got: len(v), Want: dim}
		}
	}
	return nil
}

// Buffer is a fixed-capacity FIFO of feature vectors. Once full, each Push
// evicts the oldest vector. Buffer is not safe for concurrent use; the
// owning session serializes access.
type Buffer struct {
	slots []feature.Vector
	dim   int
	start int // index of the oldest vector
	size  int
}

// New creates an empty Buffer holding up to capacity vectors of length dim.
func New(capacity, dim int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("window capacity must be positive, got %d", capacity)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	return &Buffer{
		slots: make([]feature.Vector, capacity),
		dim:   dim,
	}, nil
}

// Push appends v as the newest frame. The buffer keeps its own copy.
func (b *Buffer) Push(v feature.Vector) error {
	if len(v) != b.dim {
		return &feature.ShapeError{Kind: "vector", Got: len(v), Want: b.dim}
	}

	capacity := len(b.slots)
	if b.size < capacity {
		b.slots[(b.start+b.size)%capacity] = v.Clone()
		b.size++
		return nil
	}

	// Full: overwrite the oldest slot and advance.
	b.slots[b.start] = v.Clone()
	b.start = (b.start + 1) % capacity
	return nil
}

// IsFull reports whether capacity pushes have happened since the last reset.
func (b *Buffer) IsFull() bool {
	return b.size == len(b.slots)
}

// Len returns the number of buffered vectors.
func (b *Buffer) Len() int {
	return b.size
}

// Cap returns the window capacity N.
func (b *Buffer) Cap() int {
	return len(b.slots)
}

// Dim returns the expected vector length.
func (b *Buffer) Dim() int {
	return b.dim
}

// Snapshot returns a deep copy of the buffered vectors, oldest first.
// Later pushes never affect a snapshot already taken.
func (b *Buffer) Snapshot() Window {
	out := make(Window, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.slots[(b.start+i)%len(b.slots)].Clone()
	}
	return out
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	for i := range b.slots {
		b.slots[i] = nil
	}
	b.start = 0
	b.size = 0
}
