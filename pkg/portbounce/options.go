package portbounce

import (
	"time"

	"github.com/leptonai/portbounce/pkg/config"
)

type Op struct {
	settleInterval time.Duration
	groupInterval  time.Duration
	policy         *Policy
	sleep          SleepFunc
	disks          DiskLister
	tracker        *Tracker
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) {
	op.settleInterval = -1
	op.groupInterval = -1
	for _, opt := range opts {
		opt(op)
	}

	if op.settleInterval < 0 {
		op.settleInterval = config.DefaultSettleInterval.Duration
	}
	if op.groupInterval < 0 {
		op.groupInterval = config.DefaultGroupInterval.Duration
	}
	if op.policy == nil {
		p := DefaultPolicy()
		op.policy = &p
	}
	if op.sleep == nil {
		op.sleep = Sleep
	}
	if op.tracker == nil {
		op.tracker = NewTracker("", NewFailureLedger())
	}
}

// Specifies the wait after each switch mutation before verification.
func WithSettleInterval(d time.Duration) OpOption {
	return func(op *Op) {
		op.settleInterval = d
	}
}

// Specifies the wait after each group bounce.
func WithGroupInterval(d time.Duration) OpOption {
	return func(op *Op) {
		op.groupInterval = d
	}
}

func WithPolicy(p Policy) OpOption {
	return func(op *Op) {
		op.policy = &p
	}
}

// Specifies how waits are performed, for tests.
func WithSleepFunc(f SleepFunc) OpOption {
	return func(op *Op) {
		op.sleep = f
	}
}

// Specifies how the storage paths behind an adapter are listed.
func WithDiskLister(f DiskLister) OpOption {
	return func(op *Op) {
		op.disks = f
	}
}

// Specifies the tracker that receives progress and owns the failure ledger.
func WithTracker(t *Tracker) OpOption {
	return func(op *Op) {
		op.tracker = t
	}
}
