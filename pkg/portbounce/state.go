package portbounce

import "fmt"

// State is the position of a bounce cycle. A cycle walks the states in
// order and never goes back. A "verified" state means the check ran,
// not that it passed.
type State int

const (
	StateEnabled State = iota
	StateDisableRequested
	StateDisabledSwitchVerified
	StateDisabledHostVerified
	StateDisabledPathVerified
	StateDwelling
	StateEnableRequested
	StateEnabledSwitchVerified
	StateEnabledHostVerified
	StateSettling
	StateEnabledPathVerified
)

var stateNames = map[State]string{
	StateEnabled:                "Enabled",
	StateDisableRequested:       "DisableRequested",
	StateDisabledSwitchVerified: "Disabled(switch-verified)",
	StateDisabledHostVerified:   "Disabled(host-verified)",
	StateDisabledPathVerified:   "Disabled(path-verified)",
	StateDwelling:               "Dwelling",
	StateEnableRequested:        "EnableRequested",
	StateEnabledSwitchVerified:  "Enabled(switch-verified)",
	StateEnabledHostVerified:    "Enabled(host-verified)",
	StateSettling:               "Settling",
	StateEnabledPathVerified:    "Enabled(path-verified)",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Phase is the position of the whole run.
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhaseBounce   Phase = "bounce"
	PhaseTeardown Phase = "teardown"
	PhaseDone     Phase = "done"
)
