// Package feature turns landmark sets into the fixed-length vectors the
// recognition window is built from.
package feature

import (
	"errors"
	"fmt"

	"github.com/ayusman/signbridge/internal/detector"
)

// CoordsPerPoint is the number of coordinates flattened per landmark.
const CoordsPerPoint = 3

// ErrShape is the sentinel wrapped by every ShapeError.
var ErrShape = errors.New("shape mismatch")

// ShapeError reports a dimension that violates a fixed-size invariant.
type ShapeError struct {
	Kind string // what was measured, e.g. "points", "vector", "window"
	Got  int
	Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s length %d, want %d", ErrShape, e.Kind, e.Got, e.Want)
}

func (e *ShapeError) Unwrap() error {
	return ErrShape
}

// Vector is one frame's feature vector. All-zero means no hand was detected.
type Vector []float32

// IsAbsent reports whether v is the absence sentinel.
func (v Vector) IsAbsent() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Vectorizer flattens landmark sets with a fixed point count into vectors of length points*3.
type Vectorizer struct {
	points int
}

// NewVectorizer returns a Vectorizer for landmark sets of exactly points points.
func NewVectorizer(points int) *Vectorizer {
	if points <= 0 {
		points = detector.NumLandmarks
	}
	return &Vectorizer{points: points}
}

// Points returns the expected number of landmarks per set.
func (v *Vectorizer) Points() int {
	return v.points
}

// Dim returns the feature vector length.
func (v *Vectorizer) Dim() int {
	return v.points * CoordsPerPoint
}

// Absent returns a fresh all-zero vector standing in for a frame without a hand.
func (v *Vectorizer) Absent() Vector {
	return make(Vector, v.Dim())
}

// Vectorize flattens points in order as x0,y0,z0,x1,y1,z1,...
// It fails with a *ShapeError when the point count is not the configured one.
func (v *Vectorizer) Vectorize(points []detector.Point3D) (Vector, error) {
	if len(points) != v.points {
		return nil, &ShapeError{Kind: "points", Got: len(points), Want: v.points}
	}

	out := make(Vector, 0, v.Dim())
	for _, p := range points {
		out = append(out, float32(p.X), float32(p.Y), float32(p.Z))
	}
	return out, nil
}

// FromHands vectorizes the first detected hand, or returns the absence
// sentinel when hands is empty. Additional hands are ignored.
func (v *Vectorizer) FromHands(hands []detector.HandLandmarks) (Vector, error) {
	if len(hands) == 0 {
		return v.Absent(), nil
	}
	return v.Vectorize(hands[0].Points)
}
