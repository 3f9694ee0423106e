package session

import (
	"time"

	"github.com/leptonai/portbounce/pkg/config"
)

type Op struct {
	prompt         string
	commandTimeout time.Duration
	knownHostsFile string
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) {
	for _, opt := range opts {
		opt(op)
	}

	if op.prompt == "" {
		op.prompt = config.DefaultPrompt
	}
	if op.commandTimeout <= 0 {
		op.commandTimeout = config.DefaultCommandTimeout.Duration
	}
}

// Specifies the prompt terminator that ends every switch response.
func WithPrompt(prompt string) OpOption {
	return func(op *Op) {
		op.prompt = prompt
	}
}

// Specifies how long to wait for a response before failing the session.
func WithCommandTimeout(d time.Duration) OpOption {
	return func(op *Op) {
		op.commandTimeout = d
	}
}

// Specifies the known_hosts file used to verify the ssh host key.
func WithKnownHostsFile(p string) OpOption {
	return func(op *Op) {
		op.knownHostsFile = p
	}
}
