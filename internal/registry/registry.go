package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/capture-inventory/internal/device"
)

// ErrStaleSnapshot is returned when a snapshot is not newer than the stored one
var ErrStaleSnapshot = errors.New("stale snapshot")

// Registry holds the last known snapshot per device kind.
// Update has a single writer (the watcher); reads may come from any goroutine.
type Registry struct {
	log zerolog.Logger

	mu        sync.RWMutex
	snapshots map[device.Kind]device.Snapshot
}

func New(log zerolog.Logger) *Registry {
	return &Registry{
		log:       log,
		snapshots: make(map[device.Kind]device.Snapshot),
	}
}

// Update stores snapshot as the current state for its kind and returns the
// delta against the previous snapshot. Snapshots must arrive with strictly
// increasing timestamps; anything else is rejected and leaves state untouched.
func (r *Registry) Update(snapshot device.Snapshot) (device.ChangeEvent, error) {
	kind := snapshot.Kind()

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.snapshots[kind]
	if !ok {
		prev = device.EmptySnapshot(kind)
	}

	if ok && !snapshot.TakenAt().After(prev.TakenAt()) {
		r.log.Debug().
			Str("kind", kind.String()).
			Time("stored", prev.TakenAt()).
			Time("received", snapshot.TakenAt()).
			Msg("Rejected stale snapshot")
		return device.ChangeEvent{}, fmt.Errorf("%s snapshot at %s: %w", kind, snapshot.TakenAt(), ErrStaleSnapshot)
	}

	r.snapshots[kind] = snapshot
	return device.Diff(prev, snapshot), nil
}

// Current returns the latest snapshot for kind, or an empty one if none
func (r *Registry) Current(kind device.Kind) device.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.snapshots[kind]; ok {
		return s
	}
	return device.EmptySnapshot(kind)
}

// HasSnapshot reports whether kind has been successfully probed at least once
func (r *Registry) HasSnapshot(kind device.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.snapshots[kind]
	return ok
}

// Kinds lists the kinds with a stored snapshot
func (r *Registry) Kinds() []device.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]device.Kind, 0, len(r.snapshots))
	for k := range r.snapshots {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Find looks a device up by ID across every kind
func (r *Registry) Find(id string) (device.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, kind := range device.AllKinds {
		if s, ok := r.snapshots[kind]; ok {
			if d, found := s.Lookup(id); found {
				return d, true
			}
		}
	}
	return device.Device{}, false
}
