package portbounce

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/leptonai/portbounce/pkg/config"
	"github.com/leptonai/portbounce/pkg/fchost"
	"github.com/leptonai/portbounce/pkg/fcswitch"
	"github.com/leptonai/portbounce/pkg/log"
	"github.com/leptonai/portbounce/pkg/multipath"
	"github.com/leptonai/portbounce/pkg/portbounce/metrics"
)

// Bouncer runs bounce cycles over one switch session. It is not safe
// for concurrent use; the test is strictly sequential.
type Bouncer struct {
	sw      Switch
	host    HostReader
	paths   PathReader
	disks   DiskLister
	portMap *PortMap

	policy        Policy
	settle        time.Duration
	groupInterval time.Duration
	sleep         SleepFunc

	tracker *Tracker
	ledger  *FailureLedger
}

func NewBouncer(sw Switch, host HostReader, paths PathReader, portMap *PortMap, opts ...OpOption) *Bouncer {
	op := &Op{}
	op.applyOpts(opts)

	disks := op.disks
	if disks == nil {
		disks = func(adapter AdapterRef) ([]string, error) {
			return multipath.Disks(config.DefaultDiskByPathDir, string(adapter))
		}
	}

	return &Bouncer{
		sw:            sw,
		host:          host,
		paths:         paths,
		disks:         disks,
		portMap:       portMap,
		policy:        *op.policy,
		settle:        op.settleInterval,
		groupInterval: op.groupInterval,
		sleep:         op.sleep,
		tracker:       op.tracker,
		ledger:        op.tracker.Ledger(),
	}
}

func (b *Bouncer) Ledger() *FailureLedger {
	return b.ledger
}

func (b *Bouncer) Tracker() *Tracker {
	return b.tracker
}

// Execute runs the plan in order and stops at the first fatal error.
func (b *Bouncer) Execute(ctx context.Context, plan []Step) error {
	b.tracker.SetPlan(len(plan))
	b.tracker.SetPhase(PhaseBounce)

	for i, step := range plan {
		log.Logger.Infow("starting bounce cycle", "step", i+1, "steps", len(plan), "target", step.Target.String(), "dwell", step.Dwell, "group", step.Group)
		if err := b.Cycle(ctx, step); err != nil {
			return err
		}
		if step.Group {
			if err := b.sleep(ctx, b.groupInterval); err != nil {
				return err
			}
		}
	}
	return nil
}

// Cycle takes the target through one disable, verify, dwell, enable and
// verify sequence. A non-nil error is fatal for the run; soft failures
// go to the ledger or the tracker according to the policy.
func (b *Bouncer) Cycle(ctx context.Context, step Step) error {
	target := step.Target
	if len(target) == 0 {
		return ErrNoPorts
	}
	for _, p := range target {
		if _, ok := b.portMap.Entry(p); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPort, p)
		}
	}

	start := time.Now()
	b.tracker.StartStep(step)
	metrics.SetCycleState(int(StateEnabled))

	if err := b.mutate(ctx, fcswitch.PortDisabled, target); err != nil {
		return err
	}
	if err := b.sleep(ctx, b.settle); err != nil {
		return err
	}
	if err := b.verifySwitch(ctx, target, fcswitch.PortDisabled); err != nil {
		return err
	}
	b.enter(StateDisabledSwitchVerified)

	if err := b.verifyHost(target, fchost.StateLinkdown); err != nil {
		return err
	}
	b.enter(StateDisabledHostVerified)

	if err := b.verifyPaths(ctx, target, multipath.DMStateFailed, multipath.CheckerFaulty); err != nil {
		return err
	}
	b.enter(StateDisabledPathVerified)

	b.enter(StateDwelling)
	if err := b.sleep(ctx, step.Dwell); err != nil {
		return err
	}

	if err := b.mutate(ctx, fcswitch.PortOnline, target); err != nil {
		return err
	}
	if err := b.sleep(ctx, b.settle); err != nil {
		return err
	}
	if err := b.verifySwitch(ctx, target, fcswitch.PortOnline); err != nil {
		return err
	}
	b.enter(StateEnabledSwitchVerified)

	if err := b.verifyHost(target, fchost.StateOnline); err != nil {
		return err
	}
	b.enter(StateEnabledHostVerified)

	// paths recover after the link, give the checker another interval
	b.enter(StateSettling)
	if err := b.sleep(ctx, b.settle); err != nil {
		return err
	}
	if err := b.verifyPaths(ctx, target, multipath.DMStateActive, multipath.CheckerReady); err != nil {
		return err
	}
	b.enter(StateEnabledPathVerified)

	b.tracker.FinishStep()
	kind := "single"
	if step.Group {
		kind = "group"
	}
	metrics.ObserveCycle(kind, string(step.DwellKind), time.Since(start))
	log.Logger.Infow("bounce cycle completed", "target", target.String(), "took", time.Since(start).Round(time.Second))
	return nil
}

func (b *Bouncer) enter(s State) {
	b.tracker.SetState(s)
	metrics.SetCycleState(int(s))
}

// mutate sends the one disable or enable command for the target.
// A rejected command is logged and verification goes on, it will catch
// the port in the wrong state. A session failure is fatal.
func (b *Bouncer) mutate(ctx context.Context, to fcswitch.PortState, target BounceTarget) error {
	ports := target.Strings()

	var err error
	var command string
	if to == fcswitch.PortDisabled {
		command = "disable"
		b.enter(StateDisableRequested)
		err = b.sw.Disable(ctx, ports)
	} else {
		command = "enable"
		b.enter(StateEnableRequested)
		err = b.sw.Enable(ctx, ports)
	}
	if err == nil {
		log.Logger.Infow("port command sent", "command", command, "ports", ports)
		return nil
	}

	var cerr *fcswitch.CommandError
	if errors.As(err, &cerr) {
		metrics.IncSwitchCommandError(command)
		log.Logger.Infow("port command failed, continuing with verification", "command", command, "ports", ports, "error", cerr)
		return nil
	}
	return fmt.Errorf("failed to %s ports %s: %w", command, target, err)
}

func (b *Bouncer) verifySwitch(ctx context.Context, target BounceTarget, state fcswitch.PortState) error {
	found, err := b.sw.PortStates(ctx, target.Strings(), state)
	if err != nil {
		return fmt.Errorf("failed to read switch port states: %w", err)
	}

	var failures []portFailure
	for _, p := range target {
		if found[string(p)] {
			log.Logger.Infow("switch port verified", "port", p, "state", state)
			continue
		}
		metrics.IncVerificationFailure("switch", string(p))
		failures = append(failures, portFailure{
			port: p,
			err:  &SwitchStateError{Port: p, Expected: state.String()},
		})
	}
	return b.apply(b.policy.Switch, "switch", failures)
}

func (b *Bouncer) verifyHost(target BounceTarget, expected string) error {
	var failures []portFailure
	for _, p := range target {
		e, _ := b.portMap.Entry(p)

		actual, err := b.host.PortState(e.Host)
		if err == nil && actual == expected {
			log.Logger.Infow("host port state verified", "port", p, "adapter", e.Adapter, "host", e.Host, "state", actual)
			continue
		}
		metrics.IncVerificationFailure("host", string(p))
		failures = append(failures, portFailure{
			port: p,
			err: &HostStateError{
				Port:     p,
				Adapter:  e.Adapter,
				Host:     e.Host,
				Expected: expected,
				Actual:   actual,
				Err:      err,
			},
		})
	}
	return b.apply(b.policy.Host, "host", failures)
}

// verifyPaths checks every storage path under every port of the target
// with one multipathd query, and reports all offending paths together.
func (b *Bouncer) verifyPaths(ctx context.Context, target BounceTarget, dmState string, checkerState string) error {
	perr := &PathStateError{
		ExpectedDMState:      dmState,
		ExpectedCheckerState: checkerState,
	}

	owners := make(map[string]PortMapEntry)
	var devices []string
	for _, p := range target {
		e, _ := b.portMap.Entry(p)
		devs, err := b.disks(e.Adapter)
		if err != nil {
			perr.Err = fmt.Errorf("failed to list storage paths of adapter %s: %w", e.Adapter, err)
			return b.apply(b.policy.Path, "path", []portFailure{{port: p, err: perr}})
		}
		if len(devs) == 0 {
			log.Logger.Warnw("no storage paths behind adapter", "port", p, "adapter", e.Adapter)
		}
		for _, d := range devs {
			owners[d] = e
			devices = append(devices, d)
		}
	}
	if len(devices) == 0 {
		return nil
	}

	statuses, err := b.paths.PathStatuses(ctx, devices)
	if err != nil {
		perr.Err = err
		return b.apply(b.policy.Path, "path", []portFailure{{port: target[0], err: perr}})
	}

	for _, d := range devices {
		st := statuses[d]
		if st.Device == "" {
			st.Device = d
		}
		if st.Matches(dmState, checkerState) {
			continue
		}
		e := owners[d]
		metrics.IncVerificationFailure("path", string(e.Port))
		perr.Paths = append(perr.Paths, PathFailure{Port: e.Port, Adapter: e.Adapter, Status: st})
	}
	if len(perr.Paths) == 0 {
		log.Logger.Infow("path verification succeeded", "target", target.String(), "dm_st", dmState, "chk_st", checkerState, "paths", len(devices))
		return nil
	}

	// one ledger entry per affected port if the policy records
	if b.policy.Path == SeverityRecord {
		byPort := make(map[PortID][]string)
		for _, pf := range perr.Paths {
			byPort[pf.Port] = append(byPort[pf.Port], pf.Status.String())
		}
		ports := make([]PortID, 0, len(byPort))
		for p := range byPort {
			ports = append(ports, p)
		}
		sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })

		failures := make([]portFailure, 0, len(ports))
		for _, p := range ports {
			failures = append(failures, portFailure{
				port: p,
				err:  fmt.Errorf("port %s: paths not %s/%s: %s", p, dmState, checkerState, strings.Join(byPort[p], ", ")),
			})
		}
		return b.apply(SeverityRecord, "path", failures)
	}
	return b.apply(b.policy.Path, "path", []portFailure{{port: target[0], err: perr}})
}

type portFailure struct {
	port PortID
	err  error
}

// apply handles the failures of one verification step by severity.
// Only SeverityFatal returns an error.
func (b *Bouncer) apply(sev Severity, check string, failures []portFailure) error {
	if len(failures) == 0 {
		return nil
	}

	switch sev {
	case SeverityRecord:
		for _, f := range failures {
			log.Logger.Warnw("verification failed, recorded", "check", check, "port", f.port, "error", f.err)
			b.ledger.Record(f.port, f.err.Error())
		}
		return nil

	case SeverityReport:
		for _, f := range failures {
			log.Logger.Errorw("verification failed", "check", check, "port", f.port, "error", f.err)
			b.tracker.Report(f.err.Error())
		}
		return nil

	default:
		errs := make([]error, 0, len(failures))
		for _, f := range failures {
			log.Logger.Errorw("verification failed, aborting", "check", check, "port", f.port, "error", f.err)
			errs = append(errs, f.err)
		}
		if len(errs) == 1 {
			return errs[0]
		}
		return errors.Join(errs...)
	}
}
