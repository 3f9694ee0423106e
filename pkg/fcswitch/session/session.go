// Package session implements the persistent remote command-line session
// to an FC switch, over telnet or ssh.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leptonai/portbounce/pkg/config"
	"github.com/leptonai/portbounce/pkg/log"
)

var (
	// ErrClosed is returned when a command is sent on a closed session.
	ErrClosed = errors.New("switch session closed")
	// ErrTimeout is returned when the switch does not print the expected
	// text within the command timeout.
	ErrTimeout = errors.New("timed out waiting for switch output")
)

// Channel is one authenticated, stateful session to the switch CLI.
// Commands are strictly request/response and never interleave.
type Channel interface {
	// Run sends one command and returns its cleaned response:
	// without the echoed command line and the trailing prompt line.
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// Login opens the session described by the switch configuration.
func Login(ctx context.Context, cfg config.Switch) (Channel, error) {
	opts := []OpOption{
		WithPrompt(cfg.Prompt),
		WithCommandTimeout(cfg.CommandTimeout.Duration),
		WithKnownHostsFile(cfg.KnownHostsFile),
	}

	addr := net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.PortOrDefault()))
	switch cfg.Transport {
	case config.TransportSSH:
		return LoginSSH(ctx, addr, cfg.User, cfg.Password, opts...)

	case config.TransportTelnet, "":
		return LoginTelnet(ctx, addr, cfg.User, cfg.Password, opts...)

	default:
		return nil, fmt.Errorf("unknown switch transport %q", cfg.Transport)
	}
}

var _ Channel = &channel{}

type channel struct {
	mu sync.Mutex

	exp     *expecter
	prompt  string
	timeout time.Duration
	closer  func() error

	// set when a read was interrupted before the prompt came back,
	// the stale response must be consumed before the next command
	desynced bool
	closed   bool
}

func (c *channel) Run(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}

	if c.desynced {
		stale, err := c.exp.readUntil(ctx, c.prompt, c.timeout)
		if err != nil {
			return "", fmt.Errorf("failed to resync session before %q: %w", command, err)
		}
		log.Logger.Debugw("discarded stale switch output", "bytes", len(stale))
		c.desynced = false
	}

	if _, err := io.WriteString(c.exp.w, command+"\n"); err != nil {
		return "", fmt.Errorf("failed to send %q: %w", command, err)
	}

	raw, err := c.exp.readUntil(ctx, c.prompt, c.timeout)
	if err != nil {
		c.desynced = true
		return "", fmt.Errorf("failed to read response to %q: %w", command, err)
	}

	out := cleanResponse(raw, command)
	log.Logger.Debugw("switch command completed", "command", command, "output", out)
	return out, nil
}

func (c *channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.exp.stop()

	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// login walks the interactive telnet login sequence.
func (c *channel) login(ctx context.Context, user string, password string) error {
	if _, err := c.exp.readUntil(ctx, "login:", c.timeout); err != nil {
		return fmt.Errorf("failed to read login prompt: %w", err)
	}
	if _, err := io.WriteString(c.exp.w, user+"\n"); err != nil {
		return err
	}
	if _, err := c.exp.readUntil(ctx, "assword:", c.timeout); err != nil {
		return fmt.Errorf("failed to read password prompt: %w", err)
	}
	if _, err := io.WriteString(c.exp.w, password+"\n"); err != nil {
		return err
	}
	if _, err := c.exp.readUntil(ctx, c.prompt, c.timeout); err != nil {
		return fmt.Errorf("failed to read command prompt after login: %w", err)
	}
	return nil
}

// cleanResponse drops the echoed command (if echoed) and the trailing
// prompt line, then left-trims every line and trims the whole response.
func cleanResponse(raw string, command string) string {
	raw = strings.ReplaceAll(raw, "\r", "")
	lines := strings.Split(raw, "\n")

	if len(lines) > 0 && command != "" && strings.Contains(lines[0], command) {
		lines = lines[1:]
	}
	if len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}

	for i := range lines {
		lines[i] = strings.TrimLeft(lines[i], " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
