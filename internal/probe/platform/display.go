package platform

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/device"
)

// Displays enumerates the screens that can be captured
type Displays struct {
	log  zerolog.Logger
	now  func() time.Time
	list func() ([]device.Device, error)
}

// NewDisplays creates a display prober for the host platform
func NewDisplays(log zerolog.Logger) *Displays {
	return &Displays{
		log:  log.With().Str("backend", "displays").Logger(),
		now:  time.Now,
		list: listDisplays,
	}
}

func (d *Displays) Probe(ctx context.Context, kind device.Kind) (device.Snapshot, error) {
	if err := checkKind("displays", device.Display, kind); err != nil {
		return device.Snapshot{}, err
	}

	displays, err := d.list()
	if err != nil {
		d.log.Warn().Err(err).Msg("Failed to enumerate displays")
		return device.Snapshot{}, unavailable("displays", err)
	}

	snap := device.NewSnapshot(device.Display, d.now(), displays)
	d.log.Debug().Int("count", snap.Len()).Msg("Probed displays")
	return snap, nil
}
