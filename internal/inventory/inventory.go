package inventory

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/broker"
	"github.com/petems/capture-inventory/internal/device"
	"github.com/petems/capture-inventory/internal/probe"
	"github.com/petems/capture-inventory/internal/registry"
	"github.com/petems/capture-inventory/internal/watcher"
)

type Config struct {
	Prober    probe.Prober
	Kinds     []device.Kind
	Interval  time.Duration
	QueueSize int
	Clock     watcher.Clock   // Optional
	Hints     <-chan struct{} // Optional
	Closer    io.Closer       // Optional - released on Shutdown (hotplug watcher)
	Logger    zerolog.Logger
}

// Service is the public face of the device inventory: current device lists,
// change subscriptions and lifecycle.
type Service struct {
	reg     *registry.Registry
	broker  *broker.Broker
	watcher *watcher.Watcher
	closer  io.Closer
	log     zerolog.Logger

	mu       sync.Mutex
	shutdown bool
}

func New(cfg Config) *Service {
	reg := registry.New(cfg.Logger.With().Str("component", "registry").Logger())
	b := broker.New(cfg.QueueSize, cfg.Logger.With().Str("component", "broker").Logger())
	w := watcher.New(watcher.Config{
		Prober:   cfg.Prober,
		Registry: reg,
		Broker:   b,
		Kinds:    cfg.Kinds,
		Interval: cfg.Interval,
		Clock:    cfg.Clock,
		Hints:    cfg.Hints,
		Logger:   cfg.Logger.With().Str("component", "watcher").Logger(),
	})

	return &Service{
		reg:     reg,
		broker:  b,
		watcher: w,
		closer:  cfg.Closer,
		log:     cfg.Logger,
	}
}

// Start performs the initial probe and begins watching for changes
func (s *Service) Start(ctx context.Context) error {
	return s.watcher.Start(ctx)
}

// ListDevices returns the devices of kind from the last successful probe.
// Before the watcher has completed any cycle an immediate probe is
// requested first. A kind that has no snapshot yet, or whose probes keep
// failing, yields an empty list without error and without re-probing.
func (s *Service) ListDevices(ctx context.Context, kind device.Kind) ([]device.Device, error) {
	if !s.reg.HasSnapshot(kind) && s.watcher.Cycles() == 0 {
		err := s.watcher.Refresh(ctx)
		switch {
		case err == nil, errors.Is(err, watcher.ErrNotRunning):
		case ctx.Err() != nil:
			return nil, err
		default:
			s.log.Debug().Err(err).Str("kind", kind.String()).Msg("On-demand probe failed")
		}
	}
	return s.reg.Current(kind).Devices(), nil
}

// Snapshot returns the stored snapshot for kind without triggering a probe
func (s *Service) Snapshot(kind device.Kind) device.Snapshot {
	return s.reg.Current(kind)
}

// Lookup finds a device by ID in the current inventory
func (s *Service) Lookup(id string) (device.Device, bool) {
	return s.reg.Find(id)
}

// Refresh forces a probe cycle and waits for it to finish
func (s *Service) Refresh(ctx context.Context) error {
	return s.watcher.Refresh(ctx)
}

// Subscribe registers a consumer for change and probe-failure notifications
func (s *Service) Subscribe() (*broker.Subscription, error) {
	return s.broker.Subscribe()
}

// Unsubscribe stops delivery to sub and releases its queue
func (s *Service) Unsubscribe(sub *broker.Subscription) {
	if sub == nil {
		return
	}
	s.broker.Unsubscribe(sub.ID())
}

// Kinds lists the kinds that have been probed successfully at least once
func (s *Service) Kinds() []device.Kind {
	return s.reg.Kinds()
}

func (s *Service) SubscriberCount() int {
	return s.broker.Count()
}

func (s *Service) State() watcher.State {
	return s.watcher.State()
}

// Shutdown stops the watcher, releases the hotplug watcher and closes every
// subscriber queue. Returns ctx.Err() if the in-flight cycle outlives ctx;
// the remaining teardown still happens once that cycle completes.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	s.log.Info().Msg("Shutting down device inventory")

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.watcher.Stop()
		if s.closer != nil {
			if err := s.closer.Close(); err != nil {
				s.log.Warn().Err(err).Msg("Failed to close hotplug watcher")
			}
		}
		s.broker.Close()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
