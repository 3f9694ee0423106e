// Package process runs short-lived host commands and collects their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync/atomic"
	"syscall"

	"github.com/leptonai/portbounce/pkg/log"
)

var ErrProcessAlreadyStarted = errors.New("process already started")

type Process interface {
	// StartAndWaitForCombinedOutput starts the process, blocks until it exits,
	// and returns the combined stdout and stderr.
	// The partial output is returned even if the command fails.
	StartAndWaitForCombinedOutput(ctx context.Context) ([]byte, error)

	// Returns the pid of the process, or 0 if not started.
	PID() int32

	// Returns the exit code of the process.
	// Returns 0 if the process is not started yet.
	ExitCode() int32
}

type process struct {
	started  atomic.Bool
	pid      int32
	exitCode int32

	commandArgs []string
	envs        []string
}

func New(opts ...OpOption) (Process, error) {
	op := &Op{}
	if err := op.applyOpts(opts); err != nil {
		return nil, err
	}
	return &process{
		commandArgs: op.commandArgs,
		envs:        op.envs,
	}, nil
}

func (p *process) StartAndWaitForCombinedOutput(ctx context.Context) ([]byte, error) {
	if !p.started.CompareAndSwap(false, true) {
		return nil, ErrProcessAlreadyStarted
	}

	log.Logger.Debugw("starting command", "command", p.commandArgs)
	cmd := exec.CommandContext(ctx, p.commandArgs[0], p.commandArgs[1:]...)
	if len(p.envs) > 0 {
		cmd.Env = append(cmd.Environ(), p.envs...)
	}

	// run in its own process group so that cancellation
	// also reaps anything the command forked
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		// ESRCH is expected if the group already exited
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
			return err
		}
		return nil
	}

	b := bytes.NewBuffer(nil)
	cmd.Stdout = b
	cmd.Stderr = b
	if err := cmd.Start(); err != nil {
		return b.Bytes(), fmt.Errorf("failed to start command: %w", err)
	}
	atomic.StoreInt32(&p.pid, int32(cmd.Process.Pid))

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			atomic.StoreInt32(&p.exitCode, int32(exitErr.ExitCode()))
		}
		return b.Bytes(), fmt.Errorf("command exited with error: %w", err)
	}
	return b.Bytes(), nil
}

func (p *process) PID() int32 {
	return atomic.LoadInt32(&p.pid)
}

func (p *process) ExitCode() int32 {
	return atomic.LoadInt32(&p.exitCode)
}
