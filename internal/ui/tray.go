// Package ui is the system tray presence. The studio has no window of
// its own; the tray is where users see render state and reach the
// browser UI.
package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/frameloom/frameloom-studio/internal/render"
)

type Tray struct {
	runner *render.Runner
	logger *slog.Logger

	statusItem   *systray.MenuItem
	projectsItem *systray.MenuItem
	pauseItem    *systray.MenuItem

	mu sync.Mutex

	onOpen func() error
	onQuit func()
}

type TrayConfig struct {
	Runner *render.Runner
	Logger *slog.Logger

	// OnOpen launches the studio UI in the default browser.
	OnOpen func() error
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		runner: cfg.Runner,
		logger: cfg.Logger,
		onOpen: cfg.OnOpen,
		onQuit: cfg.OnQuit,
	}
}

// Run blocks until Quit; systray owns the main thread on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Frameloom")
	systray.SetTooltip("Frameloom Studio")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current render state")
	t.statusItem.Disable()

	t.projectsItem = systray.AddMenuItem("Projects: 0", "Projects in the library")
	t.projectsItem.Disable()

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open Studio...", "Open the studio in your browser")
	t.pauseItem = systray.AddMenuItem("Pause Renders", "Pause video export jobs")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Frameloom Studio")

	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				t.handleOpen()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause Renders")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume Renders")
		t.statusItem.SetTitle("Status: Paused")
	}
}

func (t *Tray) handleOpen() {
	if t.onOpen != nil {
		if err := t.onOpen(); err != nil {
			t.logger.Error("failed to open studio ui", "error", err)
		}
	}
}

// UpdateStatus reflects the render state unless the user paused; the
// pause label owns the status line until they resume.
func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}
	if t.runner != nil && t.runner.IsPaused() {
		return
	}
	t.statusItem.SetTitle("Status: " + status)
}

func (t *Tray) UpdateProjectsCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.projectsItem == nil {
		return
	}
	t.projectsItem.SetTitle(fmt.Sprintf("Projects: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
