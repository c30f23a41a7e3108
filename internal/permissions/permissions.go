package permissions

import "github.com/petems/capture-inventory/internal/device"

// Status mirrors AVAuthorizationStatus
type Status int

const (
	NotDetermined Status = iota
	Restricted
	Denied
	Authorized
)

func (s Status) String() string {
	switch s {
	case NotDetermined:
		return "not-determined"
	case Restricted:
		return "restricted"
	case Denied:
		return "denied"
	case Authorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// Granted reports whether capture is allowed
func (s Status) Granted() bool {
	return s == Authorized
}

// screenStatus maps the yes/no screen-recording answer onto Status
func screenStatus(granted, requested bool) Status {
	switch {
	case granted:
		return Authorized
	case requested:
		return Denied
	default:
		return NotDetermined
	}
}

// System checks capture permissions against the host OS
type System struct{}

func (System) Check(kind device.Kind) Status { return Check(kind) }
func (System) Request(kind device.Kind) { Request(kind) }
