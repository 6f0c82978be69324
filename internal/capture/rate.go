package capture

import (
	"sync"
	"time"
)

// RateController picks the capture rate: the active rate while the scene
// moves, dropping to the idle rate once no motion was seen for the timeout.
type RateController struct {
	mu          sync.Mutex
	activeFPS   int
	idleFPS     int
	idleTimeout time.Duration
	lastMotion  time.Time
	active      bool
}

// NewRateController creates a controller that starts in the idle state.
func NewRateController(activeFPS, idleFPS int, idleTimeout time.Duration) *RateController {
	if activeFPS <= 0 {
		activeFPS = DefaultFPS
	}
	if idleFPS <= 0 || idleFPS > activeFPS {
		idleFPS = activeFPS
	}
	return &RateController{
		activeFPS:   activeFPS,
		idleFPS:     idleFPS,
		idleTimeout: idleTimeout,
	}
}

// Observe feeds one motion sample taken at now. It returns the rate to use
// and whether it differs from the previous one.
func (r *RateController) Observe(motion bool, now time.Time) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if motion {
		r.lastMotion = now
		if !r.active {
			r.active = true
			return r.activeFPS, true
		}
		return r.activeFPS, false
	}

	if r.active && now.Sub(r.lastMotion) >= r.idleTimeout {
		r.active = false
		return r.idleFPS, true
	}
	return r.currentLocked(), false
}

// FPS returns the current rate.
func (r *RateController) FPS() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentLocked()
}

// Active reports whether the scene is considered in motion.
func (r *RateController) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Reset returns to the idle state.
func (r *RateController) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	r.lastMotion = time.Time{}
}

func (r *RateController) currentLocked() int {
	if r.active {
		return r.activeFPS
	}
	return r.idleFPS
}
