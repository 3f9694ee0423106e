// Package portbounce implements the FC switch port-bounce resilience test:
// it disables and re-enables switch ports and verifies that the host's
// FC link and multipath state follow.
package portbounce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leptonai/portbounce/pkg/fcswitch"
	"github.com/leptonai/portbounce/pkg/multipath"
)

// PortID is the switch-side slot token of a port (e.g., "12" or "1/12").
type PortID string

// AdapterRef is the PCI bus address of a local FC adapter (e.g., "0000:01:00.0").
type AdapterRef string

// BounceTarget is the ordered, non-empty set of ports bounced together.
type BounceTarget []PortID

func (t BounceTarget) Strings() []string {
	ss := make([]string, len(t))
	for i, p := range t {
		ss[i] = string(p)
	}
	return ss
}

func (t BounceTarget) String() string {
	return strings.Join(t.Strings(), " ")
}

// Switch is the switch-side port driver.
type Switch interface {
	PortStates(ctx context.Context, ports []string, state fcswitch.PortState) (map[string]bool, error)
	Disable(ctx context.Context, ports []string) error
	Enable(ctx context.Context, ports []string) error
	PortForWWPN(ctx context.Context, wwpn string) (string, error)
}

var _ Switch = &fcswitch.Switch{}

// HostReader reads the local fc_host link state.
type HostReader interface {
	FindHost(busAddress string) (string, error)
	WWPN(host string) (string, error)
	PortState(host string) (string, error)
}

// PathReader reads the multipath per-path state.
type PathReader interface {
	PathStatuses(ctx context.Context, devices []string) (map[string]multipath.PathStatus, error)
}

// DiskLister returns the kernel block devices behind an adapter.
type DiskLister func(adapter AdapterRef) ([]string, error)

// SleepFunc blocks for the duration or until the context is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DwellKind names which configured dwell time a step uses.
type DwellKind string

const (
	DwellShort DwellKind = "short"
	DwellLong  DwellKind = "long"
	DwellFull  DwellKind = "full"
)

// Step is one bounce cycle of the test plan.
type Step struct {
	Target    BounceTarget  `json:"target"`
	DwellKind DwellKind     `json:"dwell_kind"`
	Dwell     time.Duration `json:"dwell"`
	// Group steps bounce every port at once and are followed by the
	// group interval.
	Group bool `json:"group"`
}

func (s Step) String() string {
	kind := "single"
	if s.Group {
		kind = "group"
	}
	return fmt.Sprintf("%s bounce of [%s] with %s dwell (%s)", kind, s.Target, s.DwellKind, s.Dwell)
}
