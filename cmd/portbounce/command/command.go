// Package command implements the portbounce commands.
package command

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/leptonai/portbounce/cmd/portbounce/common"
	"github.com/leptonai/portbounce/pkg/config"
	"github.com/leptonai/portbounce/version"
)

const usage = `
# to check which switch port each adapter is cabled to
portbounce resolve --switch-address 10.0.0.10 --switch-user admin --adapters 0000:01:00.0,0000:01:00.1

# to run the full port-bounce test (the password may also be set in PORTBOUNCE_SWITCH_PASSWORD)
sudo portbounce run --config ~/.portbounce.yaml
`

func App() *cli.App {
	app := cli.NewApp()

	app.Name = "portbounce"
	app.Version = version.Version
	app.Usage = usage
	app.Description = "FC switch port-bounce resilience tester"

	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "run the full port-bounce test: every port alone with the short and the long dwell, then all ports together",
			UsageText: `# to run with the settings in ~/.portbounce.yaml
sudo portbounce run

# to serve the progress while the test runs
sudo portbounce run --status-address 127.0.0.1:15140
curl -s localhost:15140/v1/status
`,
			Action: cmdRun,
			Flags:  common.Flags(common.SwitchFlags, common.HostFlags, common.LogFlags, runFlags, outputFlags),
		},
		{
			Name:  "bounce",
			Usage: "bounce selected ports with one dwell time, alone or together",
			UsageText: `# to bounce port 12 three times, holding it down for 30 seconds
sudo portbounce bounce --ports 12 --dwell 30s --count 3

# to bounce every resolved port at once
sudo portbounce bounce --group --dwell 5m
`,
			Action: cmdBounce,
			Flags: common.Flags(common.SwitchFlags, common.HostFlags, common.LogFlags, runFlags, outputFlags, []cli.Flag{
				cli.StringFlag{
					Name:  "ports",
					Usage: "set the comma-separated switch ports to bounce (default: every resolved port)",
				},
				cli.DurationFlag{
					Name:  "dwell",
					Usage: "set how long the ports are held disabled",
					Value: config.DefaultShortDwell.Duration,
				},
				cli.BoolFlag{
					Name:  "group",
					Usage: "bounce the ports together with one command instead of one after another",
				},
			}),
		},
		{
			Name:   "resolve",
			Usage:  "resolve the switch port of each adapter without touching any port",
			Action: cmdResolve,
			Flags: common.Flags(common.SwitchFlags, common.HostFlags, common.LogFlags, []cli.Flag{
				cli.BoolFlag{
					Name:  "show-ports",
					Usage: "also print the switch port table",
				},
			}),
		},
		{
			Name:   "hosts",
			Usage:  "list the local fc_host ports and, for the configured adapters, their storage paths",
			Action: cmdHosts,
			Flags: common.Flags(common.HostFlags, common.LogFlags, []cli.Flag{
				cli.StringFlag{
					Name:  "config,c",
					Usage: "set the config file path (default: ~/.portbounce.yaml if it exists)",
				},
				cli.StringFlag{
					Name:  "adapters",
					Usage: "set the comma-separated PCI bus addresses of the adapters to show paths for",
				},
			}),
		},
		{
			Name:   "kmsg",
			Usage:  "print the recent kernel warnings and errors",
			Action: cmdKmsg,
			Flags: common.Flags(common.LogFlags, []cli.Flag{
				cli.DurationFlag{
					Name:  "since",
					Usage: "set how far back to read",
					Value: defaultKmsgSince,
				},
			}),
		},
		{
			Name:  "version",
			Usage: "print the version",
			Action: func(*cli.Context) error {
				fmt.Println(version.String())
				return nil
			},
		},
	}

	return app
}

var runFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "count",
		Usage: "set the number of bounce cycles per port and dwell time",
	},
	cli.DurationFlag{
		Name:  "short-dwell",
		Usage: "set the short dwell time",
	},
	cli.DurationFlag{
		Name:  "long-dwell",
		Usage: "set the long dwell time",
	},
	cli.DurationFlag{
		Name:  "full-bounce-dwell",
		Usage: "set the dwell time of the all-ports bounce",
	},
	cli.DurationFlag{
		Name:  "settle-interval",
		Usage: "set the wait after each switch command before verifying",
	},
	cli.DurationFlag{
		Name:  "group-interval",
		Usage: "set the wait between all-ports bounces",
	},
	cli.StringFlag{
		Name:  "switch-failure",
		Usage: "set what a switch state mismatch does [record, report, fatal]",
	},
	cli.StringFlag{
		Name:  "host-failure",
		Usage: "set what a host link state mismatch does [record, report, fatal]",
	},
	cli.StringFlag{
		Name:  "path-failure",
		Usage: "set what a multipath state mismatch does [record, report, fatal]",
	},
	cli.StringFlag{
		Name:  "status-address",
		Usage: fmt.Sprintf("set the address to serve the run status on (e.g., 127.0.0.1:%d, empty to disable)", config.DefaultStatusPort),
	},
	cli.StringFlag{
		Name:  "audit-log-file",
		Usage: "set the file every switch port command is recorded to (empty to disable)",
	},
}

var outputFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "output,o",
		Usage: "set the result output format [plain, json]",
		Value: common.OutputFormatPlain,
	},
}
