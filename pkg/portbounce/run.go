package portbounce

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/leptonai/portbounce/pkg/config"
	"github.com/leptonai/portbounce/pkg/fchost"
	"github.com/leptonai/portbounce/pkg/fcswitch"
	"github.com/leptonai/portbounce/pkg/fcswitch/session"
	"github.com/leptonai/portbounce/pkg/kmsg"
	"github.com/leptonai/portbounce/pkg/log"
	"github.com/leptonai/portbounce/pkg/multipath"
	"github.com/leptonai/portbounce/pkg/process"
)

// RunOptions carries the collaborators of a run.
// Nil fields are built from the configuration.
type RunOptions struct {
	Channel session.Channel
	Host    HostReader
	Paths   PathReader
	Disks   DiskLister
	Runner  process.Runner
	Sleep   SleepFunc
	Tracker *Tracker

	// Plan builds the steps from the resolved ports.
	// Defaults to the full test plan.
	Plan func(ports []PortID) ([]Step, error)

	// KernelLog captures kernel messages logged since the time.
	// Defaults to the kernel log device with a dmesg fallback.
	KernelLog func(ctx context.Context, since time.Time) ([]kmsg.Message, error)
}

// NewRunID returns a random run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Run logs in to the switch, resolves the port map, runs the plan and
// always restores the ports before it returns. The error is non-nil
// only if setup failed, before any port was touched; every other
// failure is in the result.
func Run(ctx context.Context, cfg *config.Config, opts RunOptions) (*Result, error) {
	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewTracker(NewRunID(), NewFailureLedger())
	}
	started := time.Now().UTC()
	logger := log.Logger.With("run_id", tracker.Status().RunID)
	tracker.SetPhase(PhaseSetup)

	ch := opts.Channel
	if ch == nil {
		var err error
		ch, err = session.Login(ctx, cfg.Switch)
		if err != nil {
			return nil, &SetupError{Op: "login", Err: err}
		}
	}
	defer func() {
		_ = ch.Close()
	}()

	dialect, err := fcswitch.NewDialect(cfg.Switch.Dialect)
	if err != nil {
		return nil, &SetupError{Op: "dialect", Err: err}
	}
	var swOpts []fcswitch.OpOption
	if cfg.AuditLogFile != "" {
		swOpts = append(swOpts, fcswitch.WithAuditLogger(log.NewAuditLogger(cfg.AuditLogFile,
			log.WithRunID(tracker.Status().RunID),
			log.WithSwitch(cfg.Switch.Address),
		)))
	}
	sw := fcswitch.New(ch, dialect, swOpts...)

	host := opts.Host
	if host == nil {
		r, err := fchost.New(cfg.Host.FCHostClassDir)
		if err != nil {
			return nil, &SetupError{Op: "fc_host", Err: err}
		}
		host = r
	}
	runner := opts.Runner
	if runner == nil {
		runner = process.NewExclusiveRunner()
	}
	paths := opts.Paths
	if paths == nil {
		paths = multipath.New(runner, cfg.Host.MultipathdCommand)
	}
	disks := opts.Disks
	if disks == nil {
		byPath := cfg.Host.DiskByPathDir
		disks = func(adapter AdapterRef) ([]string, error) {
			return multipath.Disks(byPath, string(adapter))
		}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	adapters := make([]AdapterRef, 0, len(cfg.Adapters))
	for _, a := range cfg.Adapters {
		adapters = append(adapters, AdapterRef(a))
	}
	portMap, err := NewResolver(sw, host).BuildPortMap(ctx, adapters)
	if err != nil {
		return nil, err
	}
	tracker.SetPortMap(portMap)

	var plan []Step
	if opts.Plan != nil {
		plan, err = opts.Plan(portMap.Ports())
		if err != nil {
			return nil, &SetupError{Op: "plan", Err: err}
		}
	} else {
		plan = BuildPlan(portMap.Ports(), PlanConfigFromConfig(cfg))
	}

	bouncer := NewBouncer(sw, host, paths, portMap,
		WithSettleInterval(cfg.SettleInterval.Duration),
		WithGroupInterval(cfg.GroupInterval.Duration),
		WithPolicy(PolicyFromConfig(cfg.FailurePolicy)),
		WithSleepFunc(sleep),
		WithDiskLister(disks),
		WithTracker(tracker),
	)

	est := EstimateDuration(plan, cfg.SettleInterval.Duration, cfg.GroupInterval.Duration)
	logger.Infow("starting port bounce test",
		"ports", BounceTarget(portMap.Ports()).String(),
		"steps", len(plan),
		"estimated_finish", humanize.Time(time.Now().Add(est)),
	)

	fatal := bouncer.Execute(ctx, plan)
	if fatal != nil {
		logger.Errorw("port bounce test aborted", "error", fatal)
	}
	// a fatal host mismatch is still a failed port
	for _, herr := range HostStateErrors(fatal) {
		bouncer.Ledger().Record(herr.Port, herr.Error())
	}

	// the run context may be cancelled, the restore must still happen
	tctx, tcancel := context.WithTimeout(context.Background(), cfg.SettleInterval.Duration+2*cfg.Switch.CommandTimeout.Duration)
	teardown := bouncer.Teardown(tctx)
	tcancel()

	res := &Result{
		RunID:     tracker.Status().RunID,
		StartedAt: started,
		PortMap:   portMap.Entries(),
		Teardown:  teardown,
	}

	kernelLog := opts.KernelLog
	if kernelLog == nil {
		kernelLog = func(ctx context.Context, since time.Time) ([]kmsg.Message, error) {
			return kmsg.Capture(ctx, kmsg.WithSince(since), kmsg.WithRunner(runner))
		}
	}
	kctx, kcancel := context.WithTimeout(context.Background(), time.Minute)
	msgs, kerr := kernelLog(kctx, started)
	kcancel()
	if kerr != nil {
		logger.Warnw("failed to capture kernel messages", "error", kerr)
		res.KernelError = kerr.Error()
	} else {
		logger.Debugw("kernel messages", "count", len(msgs))
		res.KernelMessages = msgs
	}

	st := tracker.Status()
	res.StepsTotal = st.StepsTotal
	res.StepsDone = st.StepsDone
	res.Failures = st.Failures
	res.Reported = st.Reported
	if fatal != nil {
		res.Fatal = fatal.Error()
	}
	res.Outcome = Decide(bouncer.Ledger().Empty(), len(res.Reported), fatal)
	res.FinishedAt = time.Now().UTC()

	tracker.SetOutcome(res.Outcome)
	tracker.SetPhase(PhaseDone)
	logger.Infow("port bounce test finished", "outcome", res.Outcome, "failures", bouncer.Ledger().Len(), "reported", len(res.Reported))
	return res, nil
}
