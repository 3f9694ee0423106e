package portbounce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/leptonai/portbounce/pkg/fchost"
	"github.com/leptonai/portbounce/pkg/fcswitch"
	"github.com/leptonai/portbounce/pkg/fcswitch/session"
	"github.com/leptonai/portbounce/pkg/multipath"
)

// fakeFabric is a switch session that keeps port states and answers
// switchshow, portdisable and portenable the way Fabric OS does.
type fakeFabric struct {
	mu sync.Mutex

	order []string
	state map[string]string
	wwpn  map[string]string

	// ports that ignore disable and enable
	stuck map[string]bool
	// output printed for port commands, instead of nothing
	reject string
	// commands with this prefix fail the session
	failOn string

	commands []string
	closed   bool
}

var _ session.Channel = &fakeFabric{}

func newFakeFabric() *fakeFabric {
	return &fakeFabric{
		order: []string{"12", "13"},
		state: map[string]string{"12": "Online", "13": "Online"},
		wwpn: map[string]string{
			"12": "10:00:00:90:fa:1b:2c:3d",
			"13": "10:00:00:90:fa:1b:2c:3e",
		},
		stuck: map[string]bool{},
	}
}

func (f *fakeFabric) Run(ctx context.Context, command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return "", session.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.commands = append(f.commands, command)
	if f.failOn != "" && strings.HasPrefix(command, f.failOn) {
		return "", errors.New("connection reset by peer")
	}

	fields := strings.Fields(command)
	switch fields[0] {
	case "switchshow":
		return f.switchshow(), nil
	case "portdisable", "portenable":
		to := "Online"
		if fields[0] == "portdisable" {
			to = "Disabled"
		}
		for _, p := range fields[1:] {
			if _, ok := f.state[p]; !ok || f.stuck[p] {
				continue
			}
			f.state[p] = to
		}
		return f.reject, nil
	default:
		return "rbash: " + fields[0] + ": command not found", nil
	}
}

func (f *fakeFabric) switchshow() string {
	var b strings.Builder
	b.WriteString("switchName:     sw0\nswitchState:    Online\n\n")
	b.WriteString("Index Port Address Media Speed State     Proto\n")
	b.WriteString("==================================================\n")
	for i, p := range f.order {
		fmt.Fprintf(&b, "%3d %3s   01%02x00   id    N8   %-10s  FC  F-Port  %s\n", 20+i, p, 0xa0+i, f.state[p], f.wwpn[p])
	}
	return b.String()
}

func (f *fakeFabric) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFabric) setState(port string, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[port] = state
}

func (f *fakeFabric) portState(port string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[port]
}

func (f *fakeFabric) sent(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, c := range f.commands {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// fakeHost follows the fabric: a disabled switch port means a Linkdown
// fc_host, unless a state is forced.
type fakeHost struct {
	mu sync.Mutex

	fabric *fakeFabric
	hosts  map[string]string // bus address to host
	wwpns  map[string]string // host to wwpn
	ports  map[string]string // host to switch port
	forced map[string]string
}

var _ HostReader = &fakeHost{}

func newFakeHost(fabric *fakeFabric) *fakeHost {
	return &fakeHost{
		fabric: fabric,
		hosts: map[string]string{
			"0000:01:00.0": "host7",
			"0000:01:00.1": "host8",
		},
		wwpns: map[string]string{
			"host7": "10:00:00:90:fa:1b:2c:3d",
			"host8": "10:00:00:90:fa:1b:2c:3e",
		},
		ports: map[string]string{
			"host7": "12",
			"host8": "13",
		},
		forced: map[string]string{},
	}
}

func (h *fakeHost) FindHost(busAddress string) (string, error) {
	host, ok := h.hosts[busAddress]
	if !ok {
		return "", fmt.Errorf("%w %q", fchost.ErrHostNotFound, busAddress)
	}
	return host, nil
}

func (h *fakeHost) WWPN(host string) (string, error) {
	return h.wwpns[host], nil
}

func (h *fakeHost) PortState(host string) (string, error) {
	h.mu.Lock()
	forced, ok := h.forced[host]
	h.mu.Unlock()
	if ok {
		return forced, nil
	}
	if h.fabric.portState(h.ports[host]) == "Disabled" {
		return fchost.StateLinkdown, nil
	}
	return fchost.StateOnline, nil
}

func (h *fakeHost) force(host string, state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forced[host] = state
}

// fakePaths derives every path state from the switch port it sits behind.
type fakePaths struct {
	mu sync.Mutex

	fabric  *fakeFabric
	devices map[string]string // device to switch port
	forced  map[string]multipath.PathStatus
	err     error
	calls   int
}

var _ PathReader = &fakePaths{}

func newFakePaths(fabric *fakeFabric) *fakePaths {
	return &fakePaths{
		fabric: fabric,
		devices: map[string]string{
			"sdb": "12",
			"sdc": "12",
			"sdd": "13",
		},
		forced: map[string]multipath.PathStatus{},
	}
}

func (p *fakePaths) PathStatuses(_ context.Context, devices []string) (map[string]multipath.PathStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	out := make(map[string]multipath.PathStatus, len(devices))
	for _, d := range devices {
		if st, ok := p.forced[d]; ok {
			out[d] = st
			continue
		}
		st := multipath.PathStatus{Device: d, Map: "mpatha", DMState: multipath.DMStateActive, DevState: "running", CheckerState: multipath.CheckerReady}
		if p.fabric.portState(p.devices[d]) == "Disabled" {
			st.DMState = multipath.DMStateFailed
			st.CheckerState = multipath.CheckerFaulty
		}
		out[d] = st
	}
	return out, nil
}

func fakeDisks(adapter AdapterRef) ([]string, error) {
	switch adapter {
	case "0000:01:00.0":
		return []string{"sdb", "sdc"}, nil
	case "0000:01:00.1":
		return []string{"sdd"}, nil
	}
	return nil, nil
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

type fabricFixture struct {
	fabric  *fakeFabric
	host    *fakeHost
	paths   *fakePaths
	sw      *fcswitch.Switch
	portMap *PortMap
}

func newFabricFixture() *fabricFixture {
	fabric := newFakeFabric()
	pm, err := NewPortMap([]PortMapEntry{
		{Port: "12", Adapter: "0000:01:00.0", Host: "host7", WWPN: "10:00:00:90:fa:1b:2c:3d"},
		{Port: "13", Adapter: "0000:01:00.1", Host: "host8", WWPN: "10:00:00:90:fa:1b:2c:3e"},
	})
	if err != nil {
		panic(err)
	}
	return &fabricFixture{
		fabric:  fabric,
		host:    newFakeHost(fabric),
		paths:   newFakePaths(fabric),
		sw:      fcswitch.New(fabric, &fcswitch.Brocade{}),
		portMap: pm,
	}
}

func (f *fabricFixture) bouncer(opts ...OpOption) *Bouncer {
	opts = append([]OpOption{
		WithSleepFunc(noSleep),
		WithDiskLister(fakeDisks),
	}, opts...)
	return NewBouncer(f.sw, f.host, f.paths, f.portMap, opts...)
}
