// Package app assembles the inventory service from configuration: platform
// probers behind the permission gate, plus the hotplug hinter when enabled.
package app

import (
	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/config"
	"github.com/petems/capture-inventory/internal/device"
	"github.com/petems/capture-inventory/internal/hotplug"
	"github.com/petems/capture-inventory/internal/inventory"
	"github.com/petems/capture-inventory/internal/permissions"
	"github.com/petems/capture-inventory/internal/probe"
	"github.com/petems/capture-inventory/internal/probe/platform"
)

// NewProber assembles the platform probers selected by cfg behind the
// capture-permission gate
func NewProber(cfg *config.Config, log zerolog.Logger) probe.Prober {
	var audio probe.Prober
	switch cfg.Probe.AudioBackend {
	case config.BackendMalgo:
		audio = platform.NewMalgo(log)
	default:
		audio = platform.NewPortAudio(log)
	}

	return &probe.Gated{
		Prober: probe.Multi{
			device.Audio:   audio,
			device.Video:   platform.NewMediaDevices(log),
			device.Display: platform.NewDisplays(log),
		},
		Permissions: permissions.System{},
		Log:         log,
	}
}

// ServiceConfig translates cfg into the inventory's dependencies. A hotplug
// hinter that cannot start is logged and left out; polling still runs.
func ServiceConfig(cfg *config.Config, log zerolog.Logger) inventory.Config {
	svcCfg := inventory.Config{
		Prober:    NewProber(cfg, log.With().Str("component", "probe").Logger()),
		Kinds:     cfg.DeviceKinds(),
		Interval:  cfg.Watcher.PollInterval.Std(),
		QueueSize: cfg.Watcher.QueueSize,
		Logger:    log,
	}

	if cfg.Hotplug.Enabled {
		h, err := hotplug.New(hotplug.Config{
			Paths:    cfg.Hotplug.Paths,
			Patterns: cfg.Hotplug.Patterns,
			Debounce: cfg.Hotplug.Debounce.Std(),
			Logger:   log.With().Str("component", "hotplug").Logger(),
		})
		if err != nil {
			log.Warn().Err(err).Msg("Hotplug hints unavailable, relying on polling")
		} else {
			svcCfg.Hints = h.Hints()
			svcCfg.Closer = h
		}
	}

	return svcCfg
}

// NewService wires a Service with real platform probers
func NewService(cfg *config.Config, log zerolog.Logger) *inventory.Service {
	if !permissions.Supported() {
		log.Warn().Msg("Device enumeration is not supported on this platform")
	}
	return inventory.New(ServiceConfig(cfg, log))
}
