package device

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Kind identifies the class of capture device
type Kind int

const (
	Audio Kind = iota
	Video
	// Display is a screen that can be captured
	Display
)

// AllKinds lists every kind the inventory knows how to track
var AllKinds = []Kind{Audio, Video, Display}

func (k Kind) String() string {
	switch k {
	case Audio:
		return "audio"
	case Video:
		return "video"
	case Display:
		return "display"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts "audio", "video" or "display" (any case) into a Kind
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "audio":
		return Audio, nil
	case "video":
		return Video, nil
	case "display":
		return Display, nil
	default:
		return 0, fmt.Errorf("unknown device kind: %q", s)
	}
}

// Device represents a capture device as reported by the platform
type Device struct {
	ID      string
	Name    string
	Kind    Kind
	Default bool

	// Geometry is only reported for displays
	Width  int
	Height int
	Scale  float64
}

// Snapshot is the full set of devices of one kind observed at a single probe.
// It is immutable once created.
type Snapshot struct {
	kind    Kind
	devices map[string]Device
	takenAt time.Time
}

// NewSnapshot builds a snapshot from a device list. Later entries win on
// duplicate IDs and every device is stamped with the snapshot's kind.
func NewSnapshot(kind Kind, takenAt time.Time, devices []Device) Snapshot {
	byID := lo.SliceToMap(devices, func(d Device) (string, Device) {
		d.Kind = kind
		return d.ID, d
	})
	return Snapshot{kind: kind, devices: byID, takenAt: takenAt}
}

// EmptySnapshot returns a snapshot with no devices and a zero timestamp
func EmptySnapshot(kind Kind) Snapshot {
	return Snapshot{kind: kind}
}

func (s Snapshot) Kind() Kind { return s.kind }

// TakenAt is the instant the probe that produced the snapshot completed
func (s Snapshot) TakenAt() time.Time { return s.takenAt }

func (s Snapshot) Len() int { return len(s.devices) }

// IsZero reports whether this is the empty snapshot that precedes any probe
func (s Snapshot) IsZero() bool {
	return s.takenAt.IsZero() && len(s.devices) == 0
}

func (s Snapshot) Has(id string) bool {
	_, ok := s.devices[id]
	return ok
}

// Lookup returns the device with the given ID
func (s Snapshot) Lookup(id string) (Device, bool) {
	d, ok := s.devices[id]
	return d, ok
}

// Devices returns a copy of the snapshot's devices sorted by ID
func (s Snapshot) Devices() []Device {
	return sortByID(lo.Values(s.devices))
}

func sortByID(devices []Device) []Device {
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices
}
