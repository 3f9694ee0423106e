package config

import (
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	DefaultAPIVersion = "v1"

	DefaultTelnetPort = 23
	DefaultSSHPort    = 22

	// Brocade FOS prompts end with ">" (e.g., "sw0:admin> ").
	DefaultPrompt = ">"

	DefaultCount = 2

	DefaultFCHostClassDir    = "/sys/class/fc_host"
	DefaultDiskByPathDir     = "/dev/disk/by-path"
	DefaultMultipathdCommand = "multipathd"

	DefaultStatusPort = 15140
)

var (
	DefaultShortDwell      = metav1.Duration{Duration: 10 * time.Second}
	DefaultLongDwell       = metav1.Duration{Duration: 250 * time.Second}
	DefaultFullBounceDwell = metav1.Duration{Duration: 300 * time.Second}

	// the switch gives no acknowledgment that a port changed state,
	// so every mutation is followed by a fixed wait before verification
	DefaultSettleInterval = metav1.Duration{Duration: 20 * time.Second}
	DefaultGroupInterval  = metav1.Duration{Duration: 20 * time.Second}

	DefaultCommandTimeout = metav1.Duration{Duration: 300 * time.Second}
)

func DefaultConfig(opts ...OpOption) *Config {
	op := &Op{}
	op.applyOpts(opts)

	return &Config{
		APIVersion: DefaultAPIVersion,
		Switch: Switch{
			Transport:      TransportTelnet,
			Dialect:        DialectBrocade,
			Prompt:         DefaultPrompt,
			CommandTimeout: DefaultCommandTimeout,
		},
		ShortDwell:      DefaultShortDwell,
		LongDwell:       DefaultLongDwell,
		FullBounceDwell: DefaultFullBounceDwell,
		Count:           DefaultCount,
		SettleInterval:  DefaultSettleInterval,
		GroupInterval:   DefaultGroupInterval,
		FailurePolicy: FailurePolicy{
			Switch: SeverityRecord,
			Host:   SeverityFatal,
			Path:   SeverityReport,
		},
		Host: Host{
			FCHostClassDir:    op.fcHostClassDir,
			DiskByPathDir:     op.diskByPathDir,
			MultipathdCommand: DefaultMultipathdCommand,
		},
	}
}

// DefaultConfigFile returns "~/.portbounce.yaml" with the home directory expanded.
func DefaultConfigFile() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".portbounce.yaml"), nil
}
