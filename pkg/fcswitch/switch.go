package fcswitch

import (
	"context"
	"errors"
	"fmt"

	"github.com/leptonai/portbounce/pkg/fcswitch/session"
	"github.com/leptonai/portbounce/pkg/log"
)

var ErrWWPNNotFound = errors.New("wwpn not found in switch port table")

// CommandError is a mutation command the switch rejected. The session
// itself is still usable.
type CommandError struct {
	Command string
	Output  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("switch command %q failed: %s", e.Command, e.Output)
}

// Switch issues port commands over one session in one dialect.
type Switch struct {
	ch      session.Channel
	dialect Dialect
	audit   log.AuditLogger
}

func New(ch session.Channel, dialect Dialect, opts ...OpOption) *Switch {
	op := &Op{}
	op.applyOpts(opts)

	return &Switch{
		ch:      ch,
		dialect: dialect,
		audit:   op.auditLogger,
	}
}

func (s *Switch) Dialect() Dialect {
	return s.dialect
}

// Status runs the status dump. It is never cached.
func (s *Switch) Status(ctx context.Context) (string, error) {
	return s.ch.Run(ctx, s.dialect.StatusCommand())
}

// PortStates reads the status dump once and reports, for each port,
// whether the switch shows it in the state.
// The error is reserved for session failures.
func (s *Switch) PortStates(ctx context.Context, ports []string, state PortState) (map[string]bool, error) {
	raw, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}

	token := s.dialect.StateToken(state)
	found := make(map[string]bool, len(ports))
	for _, port := range ports {
		found[port] = s.dialect.Parse(raw, port, token)
	}
	log.Logger.Debugw("switch port states", "expected", token, "found", found, "status", raw)
	return found, nil
}

// Disable sends one disable command for all the ports.
// A *CommandError means the switch rejected it.
func (s *Switch) Disable(ctx context.Context, ports []string) error {
	return s.mutate(ctx, "disable", ports, s.dialect.DisableCommand(ports))
}

// Enable sends one enable command for all the ports.
// A *CommandError means the switch rejected it.
func (s *Switch) Enable(ctx context.Context, ports []string) error {
	return s.mutate(ctx, "enable", ports, s.dialect.EnableCommand(ports))
}

func (s *Switch) mutate(ctx context.Context, verb string, ports []string, command string) error {
	s.audit.Log(log.WithStage(log.AuditStageSent), log.WithVerb(verb), log.WithCommand(command), log.WithData(ports))

	out, err := s.ch.Run(ctx, command)
	if err != nil {
		s.audit.Log(log.WithStage(log.AuditStageFailed), log.WithVerb(verb), log.WithCommand(command), log.WithData(err.Error()))
		return err
	}
	if err := s.dialect.CheckOutput(command, out); err != nil {
		s.audit.Log(log.WithStage(log.AuditStageRejected), log.WithVerb(verb), log.WithCommand(command), log.WithData(out))
		return err
	}

	s.audit.Log(log.WithStage(log.AuditStageCompleted), log.WithVerb(verb), log.WithCommand(command))
	return nil
}

// PortForWWPN returns the port logged in with the WWPN.
func (s *Switch) PortForWWPN(ctx context.Context, wwpn string) (string, error) {
	raw, err := s.Status(ctx)
	if err != nil {
		return "", err
	}
	port, ok := s.dialect.PortForWWPN(raw, wwpn)
	if !ok {
		log.Logger.Debugw("wwpn not in status dump", "wwpn", wwpn, "status", raw)
		return "", fmt.Errorf("%w: %s", ErrWWPNNotFound, wwpn)
	}
	return port, nil
}

// Rows returns the parsed port table.
func (s *Switch) Rows(ctx context.Context) ([]PortRow, error) {
	raw, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	return s.dialect.Rows(raw), nil
}
