// Package tray provides a system tray icon showing the stable label and a
// start/stop toggle for the recognition session.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

const appName = "SignBridge"

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(running bool)
	onSettings func()
	onQuit     func()
	running    bool
	label      string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuLabel  *systray.MenuItem
}

// New creates a new Tray in the stopped state.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback invoked with the requested running state when
// the start/stop item is clicked.
func (t *Tray) OnToggle(fn func(running bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
func (t *Tray) onReady() {
	systray.SetTitle(appName)
	systray.SetTooltip("SignBridge ASL recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Start or stop recognition")
	systray.AddSeparator()
	t.menuLabel = systray.AddMenuItem(labelTitle(t.label), "Current stable label")
	t.menuLabel.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit SignBridge")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle asks for the opposite of the current state. The displayed
// state only changes once SetRunning confirms it.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	want := !t.running
	callback := t.onToggle
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(want)
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetRunning updates the toggle to reflect the session state.
func (t *Tray) SetRunning(running bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.running = running
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(running))
	}
}

// SetLabel shows the current stable label. An empty label means no stable
// output.
func (t *Tray) SetLabel(label string, confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if label == t.label && t.menuLabel != nil {
		return
	}
	t.label = label
	if t.menuLabel == nil {
		return
	}
	t.menuLabel.SetTitle(labelTitle(label))
	if label == "" {
		systray.SetTitle(appName)
	} else {
		systray.SetTitle(fmt.Sprintf("%s %.0f%%", label, confidence*100))
	}
}

// Label returns the label currently shown.
func (t *Tray) Label() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.label
}

// IsRunning returns the displayed session state.
func (t *Tray) IsRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

func toggleTitle(running bool) string {
	if running {
		return "● Running (click to stop)"
	}
	return "○ Stopped (click to start)"
}

func labelTitle(label string) string {
	if label == "" {
		return "Label: none"
	}
	return "Label: " + label
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}
