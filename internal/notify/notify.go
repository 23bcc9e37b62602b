package notify

import "go.uber.org/zap"

// Event names consumed by the hosting UI layer.
const (
	EventCEPStatus     = "cep-status"
	EventLicenseStatus = "license-status"
)

// Event is a named status message for the host UI.
type Event struct {
	Name    string
	Payload string
}

// Notifier is a fire-and-forget channel from the core to the host.
// Emit never blocks: if the host is not draining Events, new events
// are dropped. The host owns its own display throttling.
type Notifier struct {
	log *zap.SugaredLogger
	ch  chan Event
}

func New(log *zap.SugaredLogger, buffer int) *Notifier {
	if buffer <= 0 {
		buffer = 64
	}
	return &Notifier{
		log: log.Named("notify"),
		ch:  make(chan Event, buffer),
	}
}

// Events returns the channel the host consumes.
func (n *Notifier) Events() <-chan Event {
	return n.ch
}

// Emit sends an event without blocking. Dropped events are logged at
// debug level only; delivery is best-effort.
func (n *Notifier) Emit(name, payload string) {
	select {
	case n.ch <- Event{Name: name, Payload: payload}:
	default:
		n.log.Debugf("dropped %s event: %s", name, payload)
	}
}

// CEPStatus emits a human-readable connection/command status line.
func (n *Notifier) CEPStatus(status string) {
	n.Emit(EventCEPStatus, status)
}

// LicenseStatus emits the latest license validation result.
func (n *Notifier) LicenseStatus(status string) {
	n.Emit(EventLicenseStatus, status)
}
