package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/petems/capture-inventory/internal/device"
)

// drmRoot is where the kernel exposes DRM connectors
const drmRoot = "/sys/class/drm"

// listDRMConnectors reports every connected DRM connector under root as a
// display. Connector directories are named card<N>-<connector>, e.g.
// card0-HDMI-A-1, and carry status and modes files.
func listDRMConnectors(root string) ([]device.Device, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var displays []device.Device
	for _, e := range entries {
		card, connector, ok := strings.Cut(e.Name(), "-")
		if !ok || !strings.HasPrefix(card, "card") {
			continue
		}

		dir := filepath.Join(root, e.Name())
		status, err := os.ReadFile(filepath.Join(dir, "status"))
		if err != nil || strings.TrimSpace(string(status)) != "connected" {
			continue
		}

		d := device.Device{
			ID:    e.Name(),
			Name:  connector,
			Kind:  device.Display,
			Scale: 1,
		}
		if modes, err := os.ReadFile(filepath.Join(dir, "modes")); err == nil {
			d.Width, d.Height = parseMode(string(modes))
		}
		displays = append(displays, d)
	}

	sort.Slice(displays, func(i, j int) bool { return displays[i].ID < displays[j].ID })
	// The kernel does not name a primary output; treat the first one as the default
	if len(displays) > 0 {
		displays[0].Default = true
	}
	return displays, nil
}

// parseMode reads the preferred (first) mode line, e.g. "1920x1080"
func parseMode(modes string) (int, int) {
	line, _, _ := strings.Cut(strings.TrimSpace(modes), "\n")
	var w, h int
	if _, err := fmt.Sscanf(line, "%dx%d", &w, &h); err != nil {
		return 0, 0
	}
	return w, h
}
