package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/petems/capture-inventory/internal/device"
)

var (
	// ErrProbeUnavailable is returned when the platform device API cannot be reached
	ErrProbeUnavailable = errors.New("probe unavailable")
	// ErrPermission is wrapped into ErrProbeUnavailable when capture access is not granted
	ErrPermission = errors.New("capture permission not granted")
)

// Prober enumerates the capture devices of one kind currently present.
// Implementations are read-only and safe to call concurrently.
type Prober interface {
	Probe(ctx context.Context, kind device.Kind) (device.Snapshot, error)
}

// Multi routes each probe to the prober registered for the kind
type Multi map[device.Kind]Prober

func (m Multi) Probe(ctx context.Context, kind device.Kind) (device.Snapshot, error) {
	p, ok := m[kind]
	if !ok || p == nil {
		return device.Snapshot{}, fmt.Errorf("no prober for %s devices: %w", kind, ErrProbeUnavailable)
	}
	return p.Probe(ctx, kind)
}
