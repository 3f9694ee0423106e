package portbounce

import (
	"context"
	"errors"

	"github.com/leptonai/portbounce/pkg/fcswitch"
	"github.com/leptonai/portbounce/pkg/log"
)

// TeardownResult is what the final restore of the ports found.
// It never counts toward the outcome.
type TeardownResult struct {
	Ports []PortID `json:"ports"`
	// the switch rejected the enable command
	CommandError string `json:"command_error,omitempty"`
	// the session failed, nothing could be verified
	SessionError string `json:"session_error,omitempty"`
	// ports not shown as online after the restore
	NotOnline []PortID `json:"not_online,omitempty"`
}

func (t TeardownResult) OK() bool {
	return t.CommandError == "" && t.SessionError == "" && len(t.NotOnline) == 0
}

// Teardown enables every port of the port map with one command, waits
// the settle interval, and checks that the switch shows them online.
// Run it with a context that is not already cancelled.
func (b *Bouncer) Teardown(ctx context.Context) TeardownResult {
	b.tracker.SetPhase(PhaseTeardown)

	ports := b.portMap.Ports()
	res := TeardownResult{Ports: ports}
	if len(ports) == 0 {
		return res
	}
	target := BounceTarget(ports)

	log.Logger.Infow("restoring ports", "ports", target.String())
	if err := b.sw.Enable(ctx, target.Strings()); err != nil {
		var cerr *fcswitch.CommandError
		if !errors.As(err, &cerr) {
			log.Logger.Errorw("failed to restore ports", "ports", target.String(), "error", err)
			res.SessionError = err.Error()
			return res
		}
		log.Logger.Warnw("switch rejected the restore command", "ports", target.String(), "error", cerr)
		res.CommandError = cerr.Error()
	}

	if err := b.sleep(ctx, b.settle); err != nil {
		res.SessionError = err.Error()
		return res
	}

	found, err := b.sw.PortStates(ctx, target.Strings(), fcswitch.PortOnline)
	if err != nil {
		log.Logger.Errorw("failed to verify restored ports", "error", err)
		res.SessionError = err.Error()
		return res
	}
	for _, p := range ports {
		if !found[string(p)] {
			log.Logger.Warnw("port not online after restore", "port", p)
			res.NotOnline = append(res.NotOnline, p)
		}
	}
	return res
}
