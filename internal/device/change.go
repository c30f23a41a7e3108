package device

import (
	"time"

	"github.com/samber/lo"
)

// ChangeEvent is the added/removed delta between two consecutive snapshots
// of the same kind
type ChangeEvent struct {
	Kind      Kind
	Added     []Device
	Removed   []Device
	Timestamp time.Time
}

// Empty reports whether the event carries no delta
func (e ChangeEvent) Empty() bool {
	return len(e.Added) == 0 && len(e.Removed) == 0
}

// Diff computes the set difference between prev and next by device ID.
// The event is stamped with next's capture time. A device whose name
// changed but whose ID did not is neither added nor removed.
func Diff(prev, next Snapshot) ChangeEvent {
	added := lo.Filter(next.Devices(), func(d Device, _ int) bool {
		return !prev.Has(d.ID)
	})
	removed := lo.Filter(prev.Devices(), func(d Device, _ int) bool {
		return !next.Has(d.ID)
	})

	return ChangeEvent{
		Kind:      next.Kind(),
		Added:     added,
		Removed:   removed,
		Timestamp: next.TakenAt(),
	}
}
