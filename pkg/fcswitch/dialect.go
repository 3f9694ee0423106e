// Package fcswitch drives FC switch ports through a remote CLI session.
package fcswitch

import (
	"fmt"

	"github.com/leptonai/portbounce/pkg/config"
)

// PortState is the switch-side port state that a bounce step expects.
type PortState int

const (
	PortDisabled PortState = iota
	PortOnline
)

func (s PortState) String() string {
	switch s {
	case PortDisabled:
		return "Disabled"
	case PortOnline:
		return "Online"
	default:
		return fmt.Sprintf("PortState(%d)", int(s))
	}
}

// Dialect isolates everything vendor specific about the switch CLI:
// the command strings and how their output is read.
type Dialect interface {
	Name() string

	// StatusCommand returns the command that dumps the state of every port.
	StatusCommand() string
	// DisableCommand and EnableCommand return one command for all the
	// given ports.
	DisableCommand(ports []string) string
	EnableCommand(ports []string) string

	// StateToken returns the text the status dump shows for the state.
	StateToken(state PortState) string

	// Parse reports whether the status dump shows the port in the state
	// named by the token.
	Parse(raw string, port string, stateToken string) bool
	// PortForWWPN finds the row that carries the WWPN and returns the
	// port token from it.
	PortForWWPN(raw string, wwpn string) (string, bool)
	// Rows parses the status dump into per-port rows.
	Rows(raw string) []PortRow

	// CheckOutput returns a *CommandError if the output of a mutation
	// command carries a failure marker.
	CheckOutput(command string, output string) error
}

// PortRow is one port line of the status dump.
type PortRow struct {
	Index   string `json:"index"`
	Port    string `json:"port"`
	Address string `json:"address,omitempty"`
	Speed   string `json:"speed,omitempty"`
	State   string `json:"state"`
	Proto   string `json:"proto,omitempty"`
	WWPN    string `json:"wwpn,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// NewDialect returns the dialect registered under the name.
func NewDialect(name string) (Dialect, error) {
	switch name {
	case config.DialectBrocade, "":
		return &Brocade{}, nil
	default:
		return nil, fmt.Errorf("unknown switch dialect %q", name)
	}
}
