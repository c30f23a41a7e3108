// Package platform holds the Prober backends that talk to the host's media
// and display APIs. Everything here links against native libraries; the
// hardware-free probe, watcher and inventory logic lives elsewhere.
package platform

import (
	"errors"
	"fmt"

	"github.com/petems/capture-inventory/internal/device"
	"github.com/petems/capture-inventory/internal/probe"
)

// unavailable wraps err so that errors.Is(err, probe.ErrProbeUnavailable) holds
func unavailable(backend string, err error) error {
	if errors.Is(err, probe.ErrProbeUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", backend, probe.ErrProbeUnavailable, err)
}

func checkKind(backend string, want, got device.Kind) error {
	if want != got {
		return fmt.Errorf("%s only serves %s devices, not %s: %w", backend, want, got, probe.ErrProbeUnavailable)
	}
	return nil
}
