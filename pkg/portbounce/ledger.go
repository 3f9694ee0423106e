package portbounce

import (
	"sort"
	"sync"
)

// FailureLedger collects verification failures per port for the whole run.
// Entries are only ever appended.
type FailureLedger struct {
	mu      sync.RWMutex
	entries map[PortID][]string
}

func NewFailureLedger() *FailureLedger {
	return &FailureLedger{
		entries: make(map[PortID][]string),
	}
}

// Record appends a failure message for the port.
func (l *FailureLedger) Record(port PortID, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[port] = append(l.entries[port], msg)
}

func (l *FailureLedger) Empty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries) == 0
}

// Len returns the total number of recorded failures.
func (l *FailureLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, msgs := range l.entries {
		n += len(msgs)
	}
	return n
}

// Snapshot returns a copy that is safe to read while the run goes on.
func (l *FailureLedger) Snapshot() map[PortID][]string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cp := make(map[PortID][]string, len(l.entries))
	for port, msgs := range l.entries {
		cp[port] = append([]string(nil), msgs...)
	}
	return cp
}

// Ports returns the ports with at least one failure, sorted.
func (l *FailureLedger) Ports() []PortID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ports := make([]PortID, 0, len(l.entries))
	for p := range l.entries {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool {
		return ports[i] < ports[j]
	})
	return ports
}
