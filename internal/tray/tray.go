package tray

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/broker"
	"github.com/petems/capture-inventory/internal/device"
	"github.com/petems/capture-inventory/internal/inventory"
	"github.com/petems/capture-inventory/internal/logging"
)

type UI struct {
	svc     *inventory.Service
	kinds   []device.Kind
	version string
	commit  string
	log     zerolog.Logger

	ctx   context.Context
	menus map[device.Kind]*deviceMenu

	mu       sync.Mutex
	failedAt map[device.Kind]time.Time

	// Menu items
	mRefresh *systray.MenuItem
}

func New(svc *inventory.Service, kinds []device.Kind, log zerolog.Logger, version, commit string) *UI {
	return &UI{
		svc:      svc,
		kinds:    kinds,
		version:  version,
		commit:   commit,
		log:      log,
		menus:    make(map[device.Kind]*deviceMenu),
		failedAt: make(map[device.Kind]time.Time),
	}
}

// Run blocks on the systray event loop. It must be called from the main thread.
func (u *UI) Run(ctx context.Context) error {
	u.ctx = ctx
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	u.updateStatus()
	systray.SetTooltip("Capture device inventory")

	for _, kind := range u.kinds {
		parent := systray.AddMenuItem(menuTitle(kind), fmt.Sprintf("Click a %s device to copy its ID", kind))
		u.menus[kind] = newDeviceMenu(kind, func(d device.Device) menuItem {
			return u.addDeviceItem(parent, d)
		})
	}

	systray.AddSeparator()
	u.mRefresh = systray.AddMenuItem("Refresh", "Probe devices now")
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About capture-inventory")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	sub := u.attach()
	u.updateStatus()
	if sub != nil {
		go u.consume(sub)
	}

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mRefresh.ClickedCh:
			u.refresh()
		case <-mLogs.ClickedCh:
			u.openLogs()
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

// addDeviceItem creates a submenu entry that copies the device ID when clicked
func (u *UI) addDeviceItem(parent *systray.MenuItem, d device.Device) menuItem {
	item := parent.AddSubMenuItem(deviceLabel(d), d.ID)

	go func(id string, menuItem *systray.MenuItem) {
		for range menuItem.ClickedCh {
			if err := clipboard.WriteAll(id); err != nil {
				u.log.Error().Err(err).Msg("Failed to copy device ID")
				continue
			}
			u.log.Info().Str("device", id).Msg("Copied device ID to clipboard")
		}
	}(d.ID, item)

	return item
}

// attach subscribes to inventory notifications and then loads the current
// devices, so no change can fall between the snapshot and the stream
func (u *UI) attach() *broker.Subscription {
	sub, err := u.svc.Subscribe()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to subscribe to device changes")
		sub = nil
	}
	u.syncAll()
	return sub
}

func (u *UI) consume(sub *broker.Subscription) {
	for n := range sub.C() {
		u.handleNotification(n)
	}
}

func (u *UI) handleNotification(n broker.Notification) {
	switch n.Type {
	case broker.Change:
		if m, ok := u.menus[n.Kind]; ok {
			m.apply(n.Change)
		}
	case broker.ProbeFailed:
		u.mu.Lock()
		u.failedAt[n.Kind] = n.Timestamp
		u.mu.Unlock()
	}
	u.updateStatus()
}

func (u *UI) syncAll() {
	for kind, m := range u.menus {
		m.reset(u.svc.Snapshot(kind).Devices())
	}
}

func (u *UI) refresh() {
	ctx, cancel := context.WithTimeout(u.context(), 10*time.Second)
	defer cancel()

	if err := u.svc.Refresh(ctx); err != nil {
		u.log.Error().Err(err).Msg("Refresh failed")
		return
	}
	u.syncAll()
	u.updateStatus()
}

func (u *UI) context() context.Context {
	if u.ctx != nil {
		return u.ctx
	}
	return context.Background()
}

// anyFailed reports whether some kind's latest probe failed. A kind
// recovers silently when a later probe succeeds without changes, so the
// failure time is compared against the stored snapshot instead of cleared.
func (u *UI) anyFailed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	for kind, at := range u.failedAt {
		if failing(at, u.svc.Snapshot(kind)) {
			return true
		}
	}
	return false
}

func failing(failedAt time.Time, snap device.Snapshot) bool {
	return !failedAt.IsZero() && failedAt.After(snap.TakenAt())
}

func (u *UI) openLogs() {
	// TODO: Open log file with default app
	fmt.Println("Logs:", logging.LogPath())
}

func (u *UI) showAbout() {
	fmt.Printf("capture-inventory %s (%s)\nAudio/video capture device inventory\n", u.version, u.commit)
}

func (u *UI) onExit() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := u.svc.Shutdown(ctx); err != nil {
		u.log.Error().Err(err).Msg("Shutdown error")
	}
}

// updateStatus sets the tray title with per-kind device counts and a health indicator
func (u *UI) updateStatus() {
	counts := make(map[device.Kind]int, len(u.menus))
	for kind, m := range u.menus {
		counts[kind] = m.count()
	}
	systray.SetTitle(statusTitle(u.kinds, counts, u.anyFailed()))
}

func statusTitle(kinds []device.Kind, counts map[device.Kind]int, failed bool) string {
	title := ""
	for _, kind := range kinds {
		title += fmt.Sprintf("%s %d ", iconFor(kind), counts[kind])
	}
	if failed {
		return title + "⚠️"
	}
	return title + "🟢"
}

func iconFor(kind device.Kind) string {
	switch kind {
	case device.Video:
		return "📷"
	case device.Display:
		return "🖥"
	default:
		return "🎤"
	}
}

func menuTitle(kind device.Kind) string {
	switch kind {
	case device.Video:
		return "Cameras"
	case device.Display:
		return "Displays"
	default:
		return "Microphones"
	}
}
