//go:build linux

package platform

import "github.com/petems/capture-inventory/internal/device"

func listDisplays() ([]device.Device, error) {
	return listDRMConnectors(drmRoot)
}
