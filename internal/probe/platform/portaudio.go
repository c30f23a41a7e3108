package platform

import (
	"context"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/device"
)

// PortAudio enumerates audio input devices through PortAudio
type PortAudio struct {
	log zerolog.Logger
	now func() time.Time

	// PortAudio keeps global state; Initialize/Terminate pairs must not interleave
	mu sync.Mutex
}

// NewPortAudio creates a PortAudio-backed audio prober
func NewPortAudio(log zerolog.Logger) *PortAudio {
	return &PortAudio{
		log: log.With().Str("backend", "portaudio").Logger(),
		now: time.Now,
	}
}

func (p *PortAudio) Probe(ctx context.Context, kind device.Kind) (device.Snapshot, error) {
	if err := checkKind("portaudio", device.Audio, kind); err != nil {
		return device.Snapshot{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// PortAudio only rescans the device list on Initialize, so every probe
	// runs a full Initialize/Terminate cycle to observe hotplugged devices
	if err := portaudio.Initialize(); err != nil {
		p.log.Warn().Err(err).Msg("Failed to initialize PortAudio")
		return device.Snapshot{}, unavailable("portaudio", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to enumerate devices")
		return device.Snapshot{}, unavailable("portaudio", err)
	}

	defaultDevice, _ := portaudio.DefaultInputDevice()

	result := make([]device.Device, 0, len(devices))
	for _, d := range devices {
		if d.MaxInputChannels <= 0 {
			continue
		}
		result = append(result, device.Device{
			ID:      portAudioID(d),
			Name:    d.Name,
			Kind:    device.Audio,
			Default: defaultDevice != nil && portAudioID(d) == portAudioID(defaultDevice),
		})
	}

	snap := device.NewSnapshot(device.Audio, p.now(), result)
	p.log.Debug().Int("count", snap.Len()).Msg("Probed audio devices")
	return snap, nil
}

// portAudioID qualifies the device name with its host API, since the same
// physical device shows up once per host API (e.g. ALSA and PulseAudio)
func portAudioID(d *portaudio.DeviceInfo) string {
	if d.HostApi == nil {
		return d.Name
	}
	return d.HostApi.Name + ":" + d.Name
}
