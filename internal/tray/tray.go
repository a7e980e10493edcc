// Package tray provides a system tray switch for palmrest sessions.
package tray

import (
	"context"
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/palmrest/internal/events"
	"github.com/ayusman/palmrest/internal/session"
)

// Tray mirrors the session controller in the menu bar and shows the last rest.
type Tray struct {
	controller *session.Controller
	onOpen     func()
	onQuit     func()
	mu         sync.RWMutex
	lastRest   string

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuLastRest *systray.MenuItem
}

var _ events.Publisher = (*Tray)(nil)

// New creates a Tray bound to controller. Toggling the menu starts or stops the session,
// and session changes made elsewhere are reflected in the menu.
func New(controller *session.Controller) *Tray {
	t := &Tray{
		controller: controller,
		lastRest:   "Last rest: none",
	}
	controller.OnChange(t.setActive)
	return t
}

// OnOpen sets the callback for the "Open in Browser" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called and must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("palmrest")
	systray.SetTooltip("palmrest eye-rest coach")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.controller.Active()), "Start or stop the camera")
	systray.AddSeparator()

	t.menuLastRest = systray.AddMenuItem(t.lastRest, "Duration of the last palming rest")
	t.menuLastRest.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open in Browser...", "Open the camera page")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit palmrest")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the session. The menu title follows through the controller listener.
func (t *Tray) handleToggle() {
	if t.controller.Active() {
		t.controller.Stop()
	} else {
		t.controller.Start()
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
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

func (t *Tray) setActive(active bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(active))
	}
}

// Publish updates the last-rest label from rest events.
func (t *Tray) Publish(_ context.Context, ev events.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastRest = restTitle(ev)
	if t.menuLastRest != nil {
		t.menuLastRest.SetTitle(t.lastRest)
	}
	return nil
}

// LastRest returns the current last-rest label.
func (t *Tray) LastRest() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastRest
}

func (t *Tray) Close() error { return nil }

func toggleTitle(active bool) string {
	if active {
		return "● Streaming"
	}
	return "○ Stopped"
}

func restTitle(ev events.Event) string {
	if ev.Kind == events.RestStarted {
		return "Resting..."
	}
	return fmt.Sprintf("Last rest: %ds", ev.Seconds)
}
