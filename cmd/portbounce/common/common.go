// Package common holds the flags and helpers shared by the portbounce commands.
package common

import (
	"errors"
	"os"
	"strings"

	"github.com/urfave/cli"

	"github.com/leptonai/portbounce/pkg/config"
	"github.com/leptonai/portbounce/pkg/log"
)

const (
	CheckMark   = "\033[32m✔\033[0m"
	WarningSign = "\033[31m✘\033[0m"
)

const EnvSwitchPassword = "PORTBOUNCE_SWITCH_PASSWORD"

// ParseList splits a comma-separated flag value, dropping empty items.
func ParseList(raw string) []string {
	items := make([]string, 0)
	for _, split := range strings.Split(raw, ",") {
		split = strings.TrimSpace(split)
		if split != "" {
			items = append(items, split)
		}
	}
	return items
}

// SetupLogger replaces the process logger from the log flags.
func SetupLogger(cliContext *cli.Context) error {
	zapLvl, err := log.ParseLogLevel(cliContext.String("log-level"))
	if err != nil {
		return err
	}
	log.SetLogger(log.CreateLogger(zapLvl, cliContext.String("log-file")))
	return nil
}

// LoadConfig reads the configuration file, if any, and applies the
// flags that were set on top. The result is not validated.
func LoadConfig(cliContext *cli.Context) (*config.Config, error) {
	var opts []config.OpOption
	if p := cliContext.String("fc-host-class-dir"); p != "" {
		opts = append(opts, config.WithFCHostClassDir(p))
	}
	if p := cliContext.String("disk-by-path-dir"); p != "" {
		opts = append(opts, config.WithDiskByPathDir(p))
	}

	path := cliContext.String("config")
	if path == "" {
		p, err := config.DefaultConfigFile()
		if err == nil {
			if _, serr := os.Stat(p); serr == nil {
				path = p
			}
		}
	}

	cfg := config.DefaultConfig(opts...)
	if path != "" {
		var err error
		cfg, err = config.LoadConfig(path, opts...)
		if err != nil {
			return nil, err
		}
		log.Logger.Debugw("loaded config", "path", path)
	}

	applyFlags(cliContext, cfg)
	return cfg, nil
}

func applyFlags(cliContext *cli.Context, cfg *config.Config) {
	if cliContext.IsSet("switch-address") {
		cfg.Switch.Address = cliContext.String("switch-address")
	}
	if cliContext.IsSet("switch-port") {
		cfg.Switch.Port = cliContext.Int("switch-port")
	}
	if cliContext.IsSet("switch-user") {
		cfg.Switch.User = cliContext.String("switch-user")
	}
	// also set from the environment
	if pw := cliContext.String("switch-password"); pw != "" {
		cfg.Switch.Password = pw
	}
	if cliContext.IsSet("transport") {
		cfg.Switch.Transport = cliContext.String("transport")
	}
	if cliContext.IsSet("prompt") {
		cfg.Switch.Prompt = cliContext.String("prompt")
	}
	if cliContext.IsSet("command-timeout") {
		cfg.Switch.CommandTimeout.Duration = cliContext.Duration("command-timeout")
	}
	if cliContext.IsSet("known-hosts-file") {
		cfg.Switch.KnownHostsFile = cliContext.String("known-hosts-file")
	}
	if cliContext.IsSet("adapters") {
		cfg.Adapters = ParseList(cliContext.String("adapters"))
	}
	if cliContext.IsSet("fc-host-class-dir") {
		cfg.Host.FCHostClassDir = cliContext.String("fc-host-class-dir")
	}
	if cliContext.IsSet("disk-by-path-dir") {
		cfg.Host.DiskByPathDir = cliContext.String("disk-by-path-dir")
	}
	if cliContext.IsSet("multipathd-command") {
		cfg.Host.MultipathdCommand = cliContext.String("multipathd-command")
	}
}

var ErrNoSwitchPassword = errors.New("switch password is empty (set --switch-password or " + EnvSwitchPassword + ")")

// SwitchFlags are the flags every command that logs in to the switch takes.
var SwitchFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config,c",
		Usage: "set the config file path (default: ~/.portbounce.yaml if it exists)",
	},
	cli.StringFlag{
		Name:  "switch-address",
		Usage: "set the FC switch management address",
	},
	cli.IntFlag{
		Name:  "switch-port",
		Usage: "set the switch CLI port (default: 23 for telnet, 22 for ssh)",
	},
	cli.StringFlag{
		Name:  "switch-user",
		Usage: "set the switch login user",
	},
	cli.StringFlag{
		Name:   "switch-password",
		Usage:  "set the switch login password",
		EnvVar: EnvSwitchPassword,
	},
	cli.StringFlag{
		Name:  "transport",
		Usage: "set the switch transport [telnet, ssh]",
	},
	cli.StringFlag{
		Name:  "prompt",
		Usage: "set the switch prompt terminator",
	},
	cli.DurationFlag{
		Name:  "command-timeout",
		Usage: "set the time to wait for the prompt after each switch command",
	},
	cli.StringFlag{
		Name:  "known-hosts-file",
		Usage: "set the known_hosts file to verify the switch ssh host key",
	},
	cli.StringFlag{
		Name:  "adapters",
		Usage: "set the comma-separated PCI bus addresses of the FC adapters under test (e.g., 0000:01:00.0,0000:01:00.1)",
	},
}

// HostFlags override where the host-side state is read from.
var HostFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "fc-host-class-dir",
		Usage: "set the fc_host class directory",
		Value: config.DefaultFCHostClassDir,
	},
	cli.StringFlag{
		Name:  "disk-by-path-dir",
		Usage: "set the by-path disk link directory",
		Value: config.DefaultDiskByPathDir,
	},
	cli.StringFlag{
		Name:  "multipathd-command",
		Usage: "set the multipathd executable",
	},
}

var LogFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "log-level,l",
		Usage: "set the logging level [debug, info, warn, error, fatal, panic, dpanic]",
	},
	cli.StringFlag{
		Name:  "log-file",
		Usage: "set the log file path (set empty to stdout/stderr)",
	},
}

// Flags joins flag groups.
func Flags(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}

// ValidateForLogin validates the configuration and requires a password.
func ValidateForLogin(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Switch.Password == "" {
		return ErrNoSwitchPassword
	}
	return nil
}
