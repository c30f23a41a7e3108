package watcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/broker"
	"github.com/petems/capture-inventory/internal/device"
	"github.com/petems/capture-inventory/internal/probe"
	"github.com/petems/capture-inventory/internal/registry"
)

var (
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrNotRunning     = errors.New("watcher not running")
)

// DefaultInterval is the polling period used when none is configured
const DefaultInterval = 2 * time.Second

type State int32

const (
	Idle State = iota
	Probing
	Diffing
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Probing:
		return "probing"
	case Diffing:
		return "diffing"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Config struct {
	Prober   probe.Prober
	Registry *registry.Registry
	Broker   *broker.Broker
	Kinds    []device.Kind
	Interval time.Duration
	Clock    Clock           // Optional - defaults to RealClock
	Hints    <-chan struct{} // Optional - early re-probe triggers
	Logger   zerolog.Logger
}

// Watcher drives the probe → registry → broker cycle. Its loop goroutine is
// the only writer of the registry.
type Watcher struct {
	prober   probe.Prober
	reg      *registry.Registry
	broker   *broker.Broker
	kinds    []device.Kind
	interval time.Duration
	clock    Clock
	hints    <-chan struct{}
	log      zerolog.Logger

	state   atomic.Int32
	cycles  atomic.Uint64
	refresh chan chan struct{}
	stop    chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

func New(cfg Config) *Watcher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock()
	}
	kinds := cfg.Kinds
	if len(kinds) == 0 {
		kinds = device.AllKinds
	}

	return &Watcher{
		prober:   cfg.Prober,
		reg:      cfg.Registry,
		broker:   cfg.Broker,
		kinds:    kinds,
		interval: interval,
		clock:    clock,
		hints:    cfg.Hints,
		log:      cfg.Logger,
		refresh:  make(chan chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the initial probe cycle synchronously, then keeps polling in
// the background until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrNotRunning
	}
	if w.started {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.started = true
	w.mu.Unlock()

	w.log.Info().
		Dur("interval", w.interval).
		Int("kinds", len(w.kinds)).
		Msg("Starting device watcher")

	w.runCycle(ctx)
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	defer w.state.Store(int32(Stopped))

	for {
		if w.stopRequested() {
			return
		}

		var waiters []chan struct{}
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-w.clock.After(w.interval):
		case <-w.hints:
			w.log.Debug().Msg("Hotplug hint received")
		case ack := <-w.refresh:
			waiters = append(waiters, ack)
		}

		w.runCycle(ctx)
		for _, ack := range waiters {
			close(ack)
		}
	}
}

func (w *Watcher) stopRequested() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

// runCycle probes every configured kind once. Failures are published as
// ProbeFailed notifications and never touch the registry.
func (w *Watcher) runCycle(ctx context.Context) {
	defer w.cycles.Add(1)

	for _, kind := range w.kinds {
		w.setState(Probing)
		snap, err := w.prober.Probe(ctx, kind)
		if err != nil {
			w.log.Warn().Err(err).Str("kind", kind.String()).Msg("Probe failed")
			w.broker.Publish(broker.Notification{
				Type:      broker.ProbeFailed,
				Kind:      kind,
				Err:       err,
				Timestamp: w.clock.Now(),
			})
			continue
		}

		w.setState(Diffing)
		ev, err := w.reg.Update(snap)
		if err != nil {
			if errors.Is(err, registry.ErrStaleSnapshot) {
				w.log.Debug().Err(err).Msg("Skipping stale snapshot")
			} else {
				w.log.Error().Err(err).Msg("Registry update failed")
			}
			continue
		}
		if ev.Empty() {
			continue
		}

		w.log.Info().
			Str("kind", kind.String()).
			Strs("added", names(ev.Added)).
			Strs("removed", names(ev.Removed)).
			Msg("Devices changed")
		w.broker.Publish(broker.Notification{
			Type:      broker.Change,
			Kind:      kind,
			Change:    ev,
			Timestamp: ev.Timestamp,
		})
	}

	w.setState(Idle)
}

func (w *Watcher) setState(s State) {
	for {
		cur := w.state.Load()
		if State(cur) == Stopped {
			return
		}
		if w.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Refresh asks the loop to run a cycle now and waits for it to finish
func (w *Watcher) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	running := w.started && !w.stopped
	w.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	ack := make(chan struct{})
	select {
	case w.refresh <- ack:
	case <-w.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop requests shutdown and waits for the in-flight cycle to complete.
// Safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.waitDone()
		return
	}
	w.stopped = true
	started := w.started
	close(w.stop)
	w.mu.Unlock()

	if started {
		<-w.done
		w.log.Info().Uint64("cycles", w.cycles.Load()).Msg("Device watcher stopped")
		return
	}
	w.state.Store(int32(Stopped))
}

func (w *Watcher) waitDone() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return w.done
}

// State returns the current position in the watcher state machine
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Cycles returns how many probe cycles have completed
func (w *Watcher) Cycles() uint64 {
	return w.cycles.Load()
}

func names(devices []device.Device) []string {
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Name)
	}
	return out
}
