//go:build !darwin

package permissions

import (
	"runtime"

	"github.com/petems/capture-inventory/internal/device"
)

// Check always reports Authorized on platforms without a capture permission model.
func Check(kind device.Kind) Status {
	return Authorized
}

// Request is a no-op on non-macOS platforms.
func Request(kind device.Kind) {}

// Supported reports whether device enumeration is available on this platform
func Supported() bool {
	return runtime.GOOS == "linux" || runtime.GOOS == "windows"
}
