package tray

import (
	"fmt"
	"sync"

	"github.com/petems/capture-inventory/internal/device"
)

// menuItem is the subset of systray.MenuItem the device menus need
type menuItem interface {
	SetTitle(title string)
	Show()
	Hide()
}

// deviceMenu keeps one submenu in step with the inventory of a single kind.
// systray cannot delete items, so removed devices are hidden and reused if
// they come back.
type deviceMenu struct {
	kind    device.Kind
	newItem func(d device.Device) menuItem

	mu      sync.Mutex
	items   map[string]menuItem
	visible map[string]bool
}

func newDeviceMenu(kind device.Kind, newItem func(d device.Device) menuItem) *deviceMenu {
	return &deviceMenu{
		kind:    kind,
		newItem: newItem,
		items:   make(map[string]menuItem),
		visible: make(map[string]bool),
	}
}

// reset makes the menu show exactly devices
func (m *deviceMenu) reset(devices []device.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]bool, len(devices))
	for _, d := range devices {
		want[d.ID] = true
		m.showLocked(d)
	}
	for id := range m.visible {
		if !want[id] {
			m.hideLocked(id)
		}
	}
}

func (m *deviceMenu) apply(ev device.ChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range ev.Removed {
		m.hideLocked(d.ID)
	}
	for _, d := range ev.Added {
		m.showLocked(d)
	}
}

func (m *deviceMenu) showLocked(d device.Device) {
	item, ok := m.items[d.ID]
	if !ok {
		item = m.newItem(d)
		m.items[d.ID] = item
	} else {
		item.SetTitle(deviceLabel(d))
		item.Show()
	}
	m.visible[d.ID] = true
}

func (m *deviceMenu) hideLocked(id string) {
	if item, ok := m.items[id]; ok && m.visible[id] {
		item.Hide()
	}
	delete(m.visible, id)
}

func (m *deviceMenu) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.visible)
}

func deviceLabel(d device.Device) string {
	name := d.Name
	if name == "" {
		name = d.ID
	}
	if d.Width > 0 && d.Height > 0 {
		name = fmt.Sprintf("%s (%dx%d)", name, d.Width, d.Height)
	}
	if d.Default {
		return name + " (default)"
	}
	return name
}
