package probe

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/device"
	"github.com/petems/capture-inventory/internal/permissions"
)

// PermissionChecker reports and requests capture permissions
type PermissionChecker interface {
	Check(kind device.Kind) permissions.Status
	Request(kind device.Kind)
}

// Gated refuses to probe a kind whose capture permission is not granted.
// macOS returns an empty device list rather than an error in that case,
// which would otherwise read as every device being unplugged.
type Gated struct {
	Prober      Prober
	Permissions PermissionChecker
	Log         zerolog.Logger
}

func (g *Gated) Probe(ctx context.Context, kind device.Kind) (device.Snapshot, error) {
	status := g.Permissions.Check(kind)
	if status.Granted() {
		return g.Prober.Probe(ctx, kind)
	}

	switch status {
	case permissions.NotDetermined:
		g.Log.Info().Str("kind", kind.String()).Msg("Requesting capture permission")
		g.Permissions.Request(kind)
	default:
		g.Log.Warn().Str("kind", kind.String()).Str("status", status.String()).Msg("Capture permission not granted")
	}
	return device.Snapshot{}, fmt.Errorf("%s capture %s: %w: %w", kind, status, ErrProbeUnavailable, ErrPermission)
}
