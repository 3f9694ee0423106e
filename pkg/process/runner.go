package process

import (
	"context"
	"errors"
	"sync"

	"github.com/leptonai/portbounce/pkg/log"
)

var ErrProcessAlreadyRunning = errors.New("process already running")

// Runner runs a host command until it exits.
type Runner interface {
	// RunUntilCompletion starts the command, blocks until it finishes,
	// and returns the combined output and the exit code.
	RunUntilCompletion(ctx context.Context, args ...string) ([]byte, int32, error)
}

var _ Runner = &exclusiveRunner{}

// NewExclusiveRunner returns a runner that refuses to start a command
// while another one is still running.
func NewExclusiveRunner() Runner {
	return &exclusiveRunner{}
}

type exclusiveRunner struct {
	mu      sync.Mutex
	running Process
}

func (er *exclusiveRunner) RunUntilCompletion(ctx context.Context, args ...string) ([]byte, int32, error) {
	p, err := New(WithCommand(args...))
	if err != nil {
		return nil, 0, err
	}

	er.mu.Lock()
	if er.running != nil {
		er.mu.Unlock()
		return nil, 0, ErrProcessAlreadyRunning
	}
	er.running = p
	er.mu.Unlock()

	defer func() {
		er.mu.Lock()
		er.running = nil
		er.mu.Unlock()
	}()

	out, err := p.StartAndWaitForCombinedOutput(ctx)
	if err != nil {
		log.Logger.Debugw("command failed", "command", args, "pid", p.PID(), "exitCode", p.ExitCode(), "error", err)
		return out, p.ExitCode(), err
	}
	log.Logger.Debugw("command exited", "command", args, "pid", p.PID())
	return out, p.ExitCode(), nil
}
