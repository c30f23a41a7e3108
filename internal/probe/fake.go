package probe

import (
	"context"
	"sync"
	"time"

	"github.com/petems/capture-inventory/internal/device"
)

// FakeResult is one scripted probe outcome
type FakeResult struct {
	Devices []device.Device
	Err     error
	// At overrides the snapshot timestamp; zero means the fake's clock
	At time.Time
}

// Fake is a scripted Prober for tests. Results are consumed in order per
// kind; once a kind's script is exhausted the last result repeats.
type Fake struct {
	mu      sync.Mutex
	scripts map[device.Kind][]FakeResult
	last    map[device.Kind]FakeResult
	calls   map[device.Kind]int
	clock   time.Time

	// Hook runs at the start of every probe, outside the lock
	Hook func(kind device.Kind)
}

// NewFake creates a fake prober whose clock starts at start and advances
// one millisecond per probe, so consecutive snapshots are strictly ordered
func NewFake(start time.Time) *Fake {
	return &Fake{
		scripts: make(map[device.Kind][]FakeResult),
		last:    make(map[device.Kind]FakeResult),
		calls:   make(map[device.Kind]int),
		clock:   start,
	}
}

// Push appends results to the script for kind
func (f *Fake) Push(kind device.Kind, results ...FakeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[kind] = append(f.scripts[kind], results...)
}

// Calls returns how many times kind has been probed
func (f *Fake) Calls(kind device.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *Fake) Probe(ctx context.Context, kind device.Kind) (device.Snapshot, error) {
	if f.Hook != nil {
		f.Hook(kind)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[kind]++
	f.clock = f.clock.Add(time.Millisecond)

	res, ok := f.last[kind]
	if script := f.scripts[kind]; len(script) > 0 {
		res, ok = script[0], true
		f.scripts[kind] = script[1:]
		f.last[kind] = res
	}
	if !ok {
		return device.NewSnapshot(kind, f.clock, nil), nil
	}
	if res.Err != nil {
		return device.Snapshot{}, res.Err
	}

	at := res.At
	if at.IsZero() {
		at = f.clock
	}
	return device.NewSnapshot(kind, at, res.Devices), nil
}
