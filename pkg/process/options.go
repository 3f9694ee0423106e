package process

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	ErrNoCommand       = errors.New("no command provided")
	ErrCommandNotFound = errors.New("command not found")
)

type OpOption func(*Op)

type Op struct {
	commandArgs []string
	envs        []string
}

func (op *Op) applyOpts(opts []OpOption) error {
	for _, opt := range opts {
		opt(op)
	}

	if len(op.commandArgs) == 0 || op.commandArgs[0] == "" {
		return ErrNoCommand
	}
	if !commandExists(op.commandArgs[0]) {
		return fmt.Errorf("%w: %q", ErrCommandNotFound, op.commandArgs[0])
	}

	seen := make(map[string]struct{})
	for _, env := range op.envs {
		k, _, ok := strings.Cut(env, "=")
		if !ok {
			return fmt.Errorf("invalid environment variable format: %s", env)
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate environment variable: %s", k)
		}
		seen[k] = struct{}{}
	}

	return nil
}

// WithCommand sets the command and its arguments.
// A single string with spaces is split on whitespace.
func WithCommand(args ...string) OpOption {
	return func(op *Op) {
		if len(args) == 1 {
			args = strings.Fields(args[0])
		}
		op.commandArgs = args
	}
}

// WithEnvs adds environment variables in the format of `KEY=VALUE`.
func WithEnvs(envs ...string) OpOption {
	return func(op *Op) {
		op.envs = append(op.envs, envs...)
	}
}

func commandExists(name string) bool {
	p, err := exec.LookPath(name)
	if err != nil {
		return false
	}
	return p != ""
}

// LocateExecutable returns the absolute path of the named executable.
func LocateExecutable(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrCommandNotFound, name)
	}
	return p, nil
}
