package fcswitch

import "github.com/leptonai/portbounce/pkg/log"

type Op struct {
	auditLogger log.AuditLogger
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) {
	for _, opt := range opts {
		opt(op)
	}

	if op.auditLogger == nil {
		op.auditLogger = log.NewNopAuditLogger()
	}
}

// Specifies the audit trail every port mutation is written to.
func WithAuditLogger(l log.AuditLogger) OpOption {
	return func(op *Op) {
		op.auditLogger = l
	}
}
