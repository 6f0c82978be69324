package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Preview holds the most recent frame as JPEG for preview clients. Frames
// are only encoded while at least one client watches.
type Preview struct {
	mu       sync.RWMutex
	jpeg     []byte
	seq      uint64
	watchers int
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{}
}

// Watch registers a client and returns the function that unregisters it.
func (p *Preview) Watch() func() {
	p.mu.Lock()
	p.watchers++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.watchers--
			p.mu.Unlock()
		})
	}
}

// Watched reports whether any client is watching.
func (p *Preview) Watched() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.watchers > 0
}

// Update encodes frame as the latest preview image when someone is watching.
func (p *Preview) Update(frame *gocv.Mat) error {
	if frame == nil || frame.Empty() || !p.Watched() {
		return nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return fmt.Errorf("failed to encode preview frame: %w", err)
	}
	defer buf.Close()

	p.Set(append([]byte(nil), buf.GetBytes()...))
	return nil
}

// Set stores an already encoded JPEG image.
func (p *Preview) Set(jpeg []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jpeg = jpeg
	p.seq++
}

// Latest returns the newest image and its sequence number. The sequence is
// zero until the first image arrives.
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.jpeg, p.seq
}
