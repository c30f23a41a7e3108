package platform

import (
	"context"
	"time"

	"github.com/pion/mediadevices"
	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/device"

	// Registers the platform camera driver with the mediadevices driver manager
	_ "github.com/pion/mediadevices/pkg/driver/camera"
)

// MediaDevices enumerates video input devices through pion/mediadevices
type MediaDevices struct {
	log       zerolog.Logger
	now       func() time.Time
	enumerate func() []mediadevices.MediaDeviceInfo
}

// NewMediaDevices creates a camera prober
func NewMediaDevices(log zerolog.Logger) *MediaDevices {
	return &MediaDevices{
		log:       log.With().Str("backend", "mediadevices").Logger(),
		now:       time.Now,
		enumerate: mediadevices.EnumerateDevices,
	}
}

func (m *MediaDevices) Probe(ctx context.Context, kind device.Kind) (device.Snapshot, error) {
	if err := checkKind("mediadevices", device.Video, kind); err != nil {
		return device.Snapshot{}, err
	}

	var result []device.Device
	for _, info := range m.enumerate() {
		if info.Kind != mediadevices.VideoInput {
			continue
		}
		name := info.Label
		if name == "" {
			name = info.DeviceID
		}
		result = append(result, device.Device{
			ID:   info.DeviceID,
			Name: name,
			Kind: device.Video,
		})
	}

	snap := device.NewSnapshot(device.Video, m.now(), result)
	m.log.Debug().Int("count", snap.Len()).Msg("Probed video devices")
	return snap, nil
}
