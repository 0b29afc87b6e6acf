// Package tray provides the system tray front end of shotcoach.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/shotcoach/internal/session"
)

// Tray is the system tray menu.
type Tray struct {
	onStart  func()
	onCancel func()
	onOpen   func()
	onQuit   func()
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
	menuStart  *systray.MenuItem
	menuCancel *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a Tray.
func New() *Tray {
	return &Tray{}
}

// OnStart sets the callback for the "Start shot" item.
func (t *Tray) OnStart(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStart = fn
}

// OnCancel sets the callback for the "Cancel" item.
func (t *Tray) OnCancel(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCancel = fn
}

// OnOpen sets the callback for the "Open history" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback for the "Quit" item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("ShotCoach")
	systray.SetTooltip("ShotCoach shooting form analysis")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(statusTitle(session.Status{}), "Capture status")
	t.menuStatus.Disable()
	systray.AddSeparator()

	t.menuStart = systray.AddMenuItem("Start shot", "Count down and analyse one shot")
	t.menuCancel = systray.AddMenuItem("Cancel", "Abandon the running capture")
	t.menuCancel.Disable()
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(lastTitle(nil), "Most recent result")
	t.menuLast.Disable()
	menuOpen := systray.AddMenuItem("Open history...", "Open shot history in the browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit ShotCoach")
	start, cancel := t.menuStart, t.menuCancel
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-start.ClickedCh:
				t.call(func() func() { return t.onStart })
			case <-cancel.ClickedCh:
				t.call(func() func() { return t.onCancel })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

// call runs the callback chosen by get outside the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	fn := get()
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Update reflects st in the menu. It is a no-op before the tray is ready.
func (t *Tray) Update(st session.Status) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus == nil {
		return
	}
	t.menuStatus.SetTitle(statusTitle(st))

	if canStart(st) {
		t.menuStart.Enable()
	} else {
		t.menuStart.Disable()
	}
	if st.State == session.Countdown || st.State == session.Analyzing {
		t.menuCancel.Enable()
	} else {
		t.menuCancel.Disable()
	}
	if st.Result != nil {
		t.menuLast.SetTitle(lastTitle(st.Result))
	}
}

func canStart(st session.Status) bool {
	return st.ModelReady && (st.State == session.Previewing || st.State == session.Completed)
}

func statusTitle(st session.Status) string {
	switch st.State {
	case session.Previewing:
		if !st.ModelReady {
			return "Loading pose model..."
		}
		if st.Preview.Ready {
			return "Ready"
		}
		return "Get into your stance"
	case session.Countdown:
		return fmt.Sprintf("Get set: %d", st.Countdown)
	case session.Analyzing:
		return fmt.Sprintf("Shooting... %d frames", st.FrameCount)
	case session.InsufficientData:
		return "Not enough data"
	case session.Failed:
		return "Camera unavailable"
	case session.Completed:
		return "Done"
	}
	return "Idle"
}

func lastTitle(r *session.Result) string {
	if r == nil {
		return "Last: none"
	}
	return fmt.Sprintf("Last: elbow %.0f°, feet %.2f", r.Aggregate.AverageElbowAngle, r.Aggregate.AverageFeetDistance)
}
