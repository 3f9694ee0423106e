package portbounce

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leptonai/portbounce/pkg/config"
	"github.com/leptonai/portbounce/pkg/multipath"
)

var (
	ErrDuplicateAdapter = errors.New("adapter listed more than once")
	ErrDuplicatePort    = errors.New("adapters resolve to the same switch port")
	ErrNoPorts          = errors.New("no ports to bounce")
	ErrUnknownPort      = errors.New("port is not in the port map")
)

// SetupError aborts the run before any port is touched.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed: %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// ResolutionError means an adapter could not be mapped to a switch port.
type ResolutionError struct {
	Adapter AdapterRef
	// empty if the fc_host lookup itself failed
	Host string
	WWPN string
	Err  error
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "failed to resolve switch port for adapter %s", e.Adapter)
	if e.Host != "" {
		fmt.Fprintf(&b, " (%s", e.Host)
		if e.WWPN != "" {
			fmt.Fprintf(&b, ", wwpn %s", e.WWPN)
		}
		b.WriteString(")")
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// SwitchStateError is a port the switch status dump does not show in the
// expected state.
type SwitchStateError struct {
	Port     PortID
	Expected string
}

func (e *SwitchStateError) Error() string {
	return fmt.Sprintf("port %s failed to reach state %s", e.Port, e.Expected)
}

// HostStateError is a host fc_host link state that did not follow the switch.
type HostStateError struct {
	Port     PortID
	Adapter  AdapterRef
	Host     string
	Expected string
	Actual   string
	// set when the state could not be read at all
	Err error
}

func (e *HostStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("port %s: failed to read %s state for adapter %s: %v", e.Port, e.Host, e.Adapter, e.Err)
	}
	return fmt.Sprintf("port %s: host %s (adapter %s) state not changed, expected state %q, actual state %q",
		e.Port, e.Host, e.Adapter, e.Expected, e.Actual)
}

func (e *HostStateError) Unwrap() error {
	return e.Err
}

// PathFailure is one storage path in an unexpected multipath state.
type PathFailure struct {
	Port    PortID
	Adapter AdapterRef
	Status  multipath.PathStatus
}

// PathStateError lists every offending path of one verification step,
// across all the ports of the target.
type PathStateError struct {
	ExpectedDMState      string
	ExpectedCheckerState string
	Paths                []PathFailure
	// set when multipathd could not be queried
	Err error
}

func (e *PathStateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to read multipath state: %v", e.Err)
	}
	paths := make([]string, 0, len(e.Paths))
	for _, p := range e.Paths {
		paths = append(paths, fmt.Sprintf("%s on port %s", p.Status, p.Port))
	}
	return fmt.Sprintf("following paths not %s/%s: %s", e.ExpectedDMState, e.ExpectedCheckerState, strings.Join(paths, ", "))
}

func (e *PathStateError) Unwrap() error {
	return e.Err
}

// Severity decides what a verification mismatch does to the run.
type Severity string

const (
	// SeverityRecord appends the mismatch to the failure ledger and continues.
	SeverityRecord Severity = config.SeverityRecord
	// SeverityReport logs the mismatch at error level and continues.
	// A run with reported errors but an empty ledger ends as ERROR.
	SeverityReport Severity = config.SeverityReport
	// SeverityFatal aborts the run.
	SeverityFatal Severity = config.SeverityFatal
)

// Policy names the severity of each kind of verification mismatch.
type Policy struct {
	Switch Severity
	Host   Severity
	Path   Severity
}

// DefaultPolicy records switch mismatches, aborts on host mismatches
// and reports path mismatches.
func DefaultPolicy() Policy {
	return Policy{
		Switch: SeverityRecord,
		Host:   SeverityFatal,
		Path:   SeverityReport,
	}
}

// PolicyFromConfig converts the validated configuration.
func PolicyFromConfig(fp config.FailurePolicy) Policy {
	return Policy{
		Switch: Severity(fp.Switch),
		Host:   Severity(fp.Host),
		Path:   Severity(fp.Path),
	}
}
