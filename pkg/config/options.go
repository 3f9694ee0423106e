package config

type Op struct {
	fcHostClassDir string
	diskByPathDir  string
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) {
	for _, opt := range opts {
		opt(op)
	}

	if op.fcHostClassDir == "" {
		op.fcHostClassDir = DefaultFCHostClassDir
	}
	if op.diskByPathDir == "" {
		op.diskByPathDir = DefaultDiskByPathDir
	}
}

// Specifies the root directory of the fc_host class.
func WithFCHostClassDir(p string) OpOption {
	return func(op *Op) {
		op.fcHostClassDir = p
	}
}

// Specifies the directory of the by-path disk links.
func WithDiskByPathDir(p string) OpOption {
	return func(op *Op) {
		op.diskByPathDir = p
	}
}
