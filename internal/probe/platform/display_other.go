//go:build !darwin && !linux

package platform

import (
	"errors"
	"runtime"

	"github.com/petems/capture-inventory/internal/device"
)

func listDisplays() ([]device.Device, error) {
	return nil, errors.New("display enumeration is not implemented on " + runtime.GOOS)
}
