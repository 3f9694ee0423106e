// Package config provides the portbounce run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// Config provides the portbounce configuration for one test run.
type Config struct {
	APIVersion string `json:"api_version"`

	Switch Switch `json:"switch"`

	// PCI bus addresses of the local FC adapters under test
	// (e.g., "0000:01:00.0"). Each must be cabled to a distinct switch port.
	Adapters []string `json:"adapters"`

	// Dwell times a port is held disabled before it is re-enabled.
	ShortDwell      metav1.Duration `json:"short_dwell"`
	LongDwell       metav1.Duration `json:"long_dwell"`
	FullBounceDwell metav1.Duration `json:"full_bounce_dwell"`

	// Number of bounce cycles per port, per dwell time.
	Count int `json:"count"`

	// Time to wait after a switch mutation before verifying its effect.
	SettleInterval metav1.Duration `json:"settle_interval"`
	// Time to wait between consecutive full-group bounces.
	GroupInterval metav1.Duration `json:"group_interval"`

	FailurePolicy FailurePolicy `json:"failure_policy"`

	Host Host `json:"host"`

	// Address for the optional status server (e.g., "127.0.0.1:15140").
	// Leave empty to disable.
	StatusAddress string `json:"status_address"`

	// File every switch port command is recorded to, one JSON line per
	// command stage. Leave empty to disable.
	AuditLogFile string `json:"audit_log_file"`
}

// Switch describes how to reach the FC switch command line.
type Switch struct {
	Address  string `json:"address"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`

	// "telnet" or "ssh".
	Transport string `json:"transport"`
	// Vendor CLI dialect, currently only "brocade".
	Dialect string `json:"dialect"`
	// Prompt terminator that marks the end of every response.
	Prompt string `json:"prompt"`

	CommandTimeout metav1.Duration `json:"command_timeout"`

	// known_hosts file for the ssh transport.
	// If empty, the host key is not verified.
	KnownHostsFile string `json:"known_hosts_file"`
}

// Host holds the host-side paths and tools used for verification.
type Host struct {
	FCHostClassDir    string `json:"fc_host_class_dir"`
	DiskByPathDir     string `json:"disk_by_path_dir"`
	MultipathdCommand string `json:"multipathd_command"`
}

// FailurePolicy names the severity of each verification mismatch.
// Each value is one of "record", "report" or "fatal".
type FailurePolicy struct {
	Switch string `json:"switch"`
	Host   string `json:"host"`
	Path   string `json:"path"`
}

const (
	TransportTelnet = "telnet"
	TransportSSH    = "ssh"

	DialectBrocade = "brocade"

	SeverityRecord = "record"
	SeverityReport = "report"
	SeverityFatal  = "fatal"
)

var (
	ErrSwitchAddressRequired = errors.New("switch address is required")
	ErrSwitchUserRequired    = errors.New("switch user is required")
	ErrNoAdapters            = errors.New("at least one adapter is required")
	ErrInvalidCount          = errors.New("count must be at least 1")
)

func (config *Config) Validate() error {
	if config.Switch.Address == "" {
		return ErrSwitchAddressRequired
	}
	if config.Switch.User == "" {
		return ErrSwitchUserRequired
	}
	switch config.Switch.Transport {
	case TransportTelnet, TransportSSH:
	default:
		return fmt.Errorf("unknown switch transport %q", config.Switch.Transport)
	}
	if config.Switch.Dialect != DialectBrocade {
		return fmt.Errorf("unknown switch dialect %q", config.Switch.Dialect)
	}
	if config.Switch.Prompt == "" {
		return errors.New("switch prompt is required")
	}
	if config.Switch.Port < 0 || config.Switch.Port > 65535 {
		return fmt.Errorf("invalid switch port %d", config.Switch.Port)
	}
	if config.Switch.CommandTimeout.Duration <= 0 {
		return fmt.Errorf("command_timeout must be positive, got %s", config.Switch.CommandTimeout.Duration)
	}

	if len(config.Adapters) == 0 {
		return ErrNoAdapters
	}
	seen := make(map[string]struct{}, len(config.Adapters))
	for _, a := range config.Adapters {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			return errors.New("adapter bus address cannot be empty")
		}
		if _, ok := seen[a]; ok {
			return fmt.Errorf("duplicate adapter %q", a)
		}
		seen[a] = struct{}{}
	}

	for name, d := range map[string]metav1.Duration{
		"short_dwell":       config.ShortDwell,
		"long_dwell":        config.LongDwell,
		"full_bounce_dwell": config.FullBounceDwell,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d.Duration)
		}
	}
	if config.SettleInterval.Duration < 0 || config.GroupInterval.Duration < 0 {
		return errors.New("settle_interval and group_interval cannot be negative")
	}
	if config.Count < 1 {
		return ErrInvalidCount
	}

	for name, sev := range map[string]string{
		"switch": config.FailurePolicy.Switch,
		"host":   config.FailurePolicy.Host,
		"path":   config.FailurePolicy.Path,
	} {
		switch sev {
		case SeverityRecord, SeverityReport, SeverityFatal:
		default:
			return fmt.Errorf("invalid failure_policy.%s %q", name, sev)
		}
	}

	if config.Host.FCHostClassDir == "" || config.Host.DiskByPathDir == "" {
		return errors.New("host fc_host_class_dir and disk_by_path_dir are required")
	}
	if config.Host.MultipathdCommand == "" {
		return errors.New("host multipathd_command is required")
	}
	return nil
}

// PortOrDefault returns the configured port, or the transport default.
func (s Switch) PortOrDefault() int {
	if s.Port > 0 {
		return s.Port
	}
	if s.Transport == TransportSSH {
		return DefaultSSHPort
	}
	return DefaultTelnetPort
}

// LoadConfig reads the YAML file at the given path on top of the defaults.
// A leading "~" in the path is expanded to the home directory.
func LoadConfig(path string, opts ...OpOption) (*Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig(opts...)
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", expanded, err)
	}
	return cfg, nil
}
