package platform

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/device"
)

// Malgo enumerates audio capture devices through miniaudio
type Malgo struct {
	log zerolog.Logger
	now func() time.Time
	mu  sync.Mutex
}

// NewMalgo creates a miniaudio-backed audio prober
func NewMalgo(log zerolog.Logger) *Malgo {
	return &Malgo{
		log: log.With().Str("backend", "malgo").Logger(),
		now: time.Now,
	}
}

func (m *Malgo) Probe(ctx context.Context, kind device.Kind) (device.Snapshot, error) {
	if err := checkKind("malgo", device.Audio, kind); err != nil {
		return device.Snapshot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		m.log.Trace().Msg(strings.TrimSpace(message))
	})
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to initialize miniaudio context")
		return device.Snapshot{}, unavailable("malgo", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to enumerate capture devices")
		return device.Snapshot{}, unavailable("malgo", err)
	}

	result := make([]device.Device, 0, len(infos))
	for _, info := range infos {
		result = append(result, device.Device{
			ID:      info.ID.String(),
			Name:    info.Name(),
			Kind:    device.Audio,
			Default: info.IsDefault != 0,
		})
	}

	snap := device.NewSnapshot(device.Audio, m.now(), result)
	m.log.Debug().Int("count", snap.Len()).Msg("Probed audio devices")
	return snap, nil
}
