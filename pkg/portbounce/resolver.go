package portbounce

import (
	"context"
	"fmt"
	"strings"

	"github.com/leptonai/portbounce/pkg/log"
)

// PortMapEntry ties one switch port to the local adapter cabled to it.
type PortMapEntry struct {
	Port    PortID     `json:"port"`
	Adapter AdapterRef `json:"adapter"`
	Host    string     `json:"host"`
	WWPN    string     `json:"wwpn"`
}

// PortMap is the port to adapter bijection built once at setup.
// It is never modified afterwards.
type PortMap struct {
	entries   []PortMapEntry
	byPort    map[PortID]int
	byAdapter map[AdapterRef]int
}

// NewPortMap fails if a port or an adapter appears twice.
func NewPortMap(entries []PortMapEntry) (*PortMap, error) {
	m := &PortMap{
		entries:   make([]PortMapEntry, 0, len(entries)),
		byPort:    make(map[PortID]int, len(entries)),
		byAdapter: make(map[AdapterRef]int, len(entries)),
	}
	for _, e := range entries {
		if i, ok := m.byAdapter[e.Adapter]; ok {
			return nil, fmt.Errorf("%w: %s (ports %s and %s)", ErrDuplicateAdapter, e.Adapter, m.entries[i].Port, e.Port)
		}
		if i, ok := m.byPort[e.Port]; ok {
			return nil, fmt.Errorf("%w: port %s (adapters %s and %s)", ErrDuplicatePort, e.Port, m.entries[i].Adapter, e.Adapter)
		}
		m.byPort[e.Port] = len(m.entries)
		m.byAdapter[e.Adapter] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return m, nil
}

func (m *PortMap) Len() int {
	return len(m.entries)
}

// Ports returns the ports in configuration order.
func (m *PortMap) Ports() []PortID {
	ports := make([]PortID, len(m.entries))
	for i, e := range m.entries {
		ports[i] = e.Port
	}
	return ports
}

func (m *PortMap) Entries() []PortMapEntry {
	return append([]PortMapEntry(nil), m.entries...)
}

func (m *PortMap) Entry(port PortID) (PortMapEntry, bool) {
	i, ok := m.byPort[port]
	if !ok {
		return PortMapEntry{}, false
	}
	return m.entries[i], true
}

func (m *PortMap) Adapter(port PortID) (AdapterRef, bool) {
	e, ok := m.Entry(port)
	return e.Adapter, ok
}

// Port returns the switch port cabled to the adapter.
func (m *PortMap) Port(adapter AdapterRef) (PortID, bool) {
	i, ok := m.byAdapter[adapter]
	if !ok {
		return "", false
	}
	return m.entries[i].Port, true
}

// Resolver maps adapters to switch ports through the adapter WWPN.
type Resolver struct {
	sw   Switch
	host HostReader
}

func NewResolver(sw Switch, host HostReader) *Resolver {
	return &Resolver{
		sw:   sw,
		host: host,
	}
}

// Resolve returns the switch port the adapter is logged in on.
// It reads the switch status every time it is called.
func (r *Resolver) Resolve(ctx context.Context, adapter AdapterRef) (PortID, error) {
	e, err := r.resolveEntry(ctx, adapter)
	if err != nil {
		return "", err
	}
	return e.Port, nil
}

func (r *Resolver) resolveEntry(ctx context.Context, adapter AdapterRef) (PortMapEntry, error) {
	host, err := r.host.FindHost(string(adapter))
	if err != nil {
		return PortMapEntry{}, &ResolutionError{Adapter: adapter, Err: err}
	}
	wwpn, err := r.host.WWPN(host)
	if err != nil {
		return PortMapEntry{}, &ResolutionError{Adapter: adapter, Host: host, Err: err}
	}
	port, err := r.sw.PortForWWPN(ctx, wwpn)
	if err != nil {
		return PortMapEntry{}, &ResolutionError{Adapter: adapter, Host: host, WWPN: wwpn, Err: err}
	}

	log.Logger.Infow("resolved switch port", "adapter", adapter, "host", host, "wwpn", wwpn, "port", port)
	return PortMapEntry{
		Port:    PortID(port),
		Adapter: adapter,
		Host:    host,
		WWPN:    wwpn,
	}, nil
}

// BuildPortMap resolves every adapter once. Any failure aborts setup.
func (r *Resolver) BuildPortMap(ctx context.Context, adapters []AdapterRef) (*PortMap, error) {
	if len(adapters) == 0 {
		return nil, &SetupError{Op: "resolve", Err: ErrNoPorts}
	}

	seen := make(map[string]struct{}, len(adapters))
	entries := make([]PortMapEntry, 0, len(adapters))
	for _, a := range adapters {
		key := strings.ToLower(strings.TrimSpace(string(a)))
		if _, ok := seen[key]; ok {
			return nil, &SetupError{Op: "resolve", Err: fmt.Errorf("%w: %s", ErrDuplicateAdapter, a)}
		}
		seen[key] = struct{}{}

		e, err := r.resolveEntry(ctx, a)
		if err != nil {
			return nil, &SetupError{Op: "resolve", Err: err}
		}
		entries = append(entries, e)
	}

	m, err := NewPortMap(entries)
	if err != nil {
		return nil, &SetupError{Op: "resolve", Err: err}
	}
	return m, nil
}
