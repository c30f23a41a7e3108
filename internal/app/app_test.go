package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/config"
	"github.com/petems/capture-inventory/internal/device"
	"github.com/petems/capture-inventory/internal/probe"
	"github.com/petems/capture-inventory/internal/probe/platform"
)

func gatedBackends(t *testing.T, p probe.Prober) probe.Multi {
	t.Helper()
	gated, ok := p.(*probe.Gated)
	if !ok {
		t.Fatalf("expected *probe.Gated, got %T", p)
	}
	multi, ok := gated.Prober.(probe.Multi)
	if !ok {
		t.Fatalf("expected probe.Multi behind the gate, got %T", gated.Prober)
	}
	return multi
}

func TestNewProberSelectsAudioBackend(t *testing.T) {
	tests := []struct {
		backend string
		want    probe.Prober
	}{
		{backend: config.BackendMalgo, want: &platform.Malgo{}},
		{backend: config.BackendPortAudio, want: &platform.PortAudio{}},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Probe.AudioBackend = tt.backend

			multi := gatedBackends(t, NewProber(cfg, zerolog.Nop()))
			if got, want := fmt.Sprintf("%T", multi[device.Audio]), fmt.Sprintf("%T", tt.want); got != want {
				t.Errorf("expected audio backend %s, got %s", want, got)
			}
			if _, ok := multi[device.Video].(*platform.MediaDevices); !ok {
				t.Errorf("unexpected video backend %T", multi[device.Video])
			}
			if _, ok := multi[device.Display].(*platform.Displays); !ok {
				t.Errorf("unexpected display backend %T", multi[device.Display])
			}
		})
	}
}

func TestServiceConfigWithoutHotplug(t *testing.T) {
	cfg := config.Default()
	cfg.Hotplug.Enabled = false
	cfg.Kinds = []string{"video"}
	cfg.Watcher.PollInterval = config.Duration(5 * time.Second)
	cfg.Watcher.QueueSize = 8

	svcCfg := ServiceConfig(cfg, zerolog.Nop())

	if svcCfg.Hints != nil {
		t.Error("expected no hints channel with hotplug disabled")
	}
	if svcCfg.Closer != nil {
		t.Error("expected no closer with hotplug disabled")
	}
	if len(svcCfg.Kinds) != 1 || svcCfg.Kinds[0] != device.Video {
		t.Errorf("expected [video], got %v", svcCfg.Kinds)
	}
	if svcCfg.Interval != 5*time.Second {
		t.Errorf("expected 5s interval, got %s", svcCfg.Interval)
	}
	if svcCfg.QueueSize != 8 {
		t.Errorf("expected queue size 8, got %d", svcCfg.QueueSize)
	}
	if _, ok := svcCfg.Prober.(*probe.Gated); !ok {
		t.Errorf("expected gated prober, got %T", svcCfg.Prober)
	}
}

func TestServiceConfigWithHotplug(t *testing.T) {
	cfg := config.Default()
	cfg.Hotplug.Enabled = true
	cfg.Hotplug.Paths = []string{t.TempDir()}

	svcCfg := ServiceConfig(cfg, zerolog.Nop())
	if svcCfg.Hints == nil || svcCfg.Closer == nil {
		t.Fatal("expected hotplug hinter to be wired")
	}
	if err := svcCfg.Closer.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}
