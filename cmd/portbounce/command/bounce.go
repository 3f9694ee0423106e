package command

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/leptonai/portbounce/cmd/portbounce/common"
	"github.com/leptonai/portbounce/pkg/portbounce"
)

func cmdBounce(cliContext *cli.Context) error {
	cfg, output, err := loadRunConfig(cliContext)
	if err != nil {
		return err
	}

	selected := common.ParseList(cliContext.String("ports"))
	dwell := cliContext.Duration("dwell")
	group := cliContext.Bool("group")
	count := cfg.Count

	return runTest(cfg, output, os.Stdout, func(ports []portbounce.PortID) ([]portbounce.Step, error) {
		return bouncePlan(selected, ports, dwell, count, group)
	})
}

// bouncePlan returns count bounces of the selected ports (every resolved
// port if none is selected), one port after another or all together.
func bouncePlan(selected []string, resolved []portbounce.PortID, dwell time.Duration, count int, group bool) ([]portbounce.Step, error) {
	if dwell <= 0 {
		return nil, fmt.Errorf("invalid dwell %s", dwell)
	}
	if count <= 0 {
		return nil, fmt.Errorf("invalid count %d", count)
	}

	known := make(map[portbounce.PortID]struct{}, len(resolved))
	for _, p := range resolved {
		known[p] = struct{}{}
	}

	ports := resolved
	if len(selected) > 0 {
		ports = make([]portbounce.PortID, 0, len(selected))
		seen := make(map[portbounce.PortID]struct{}, len(selected))
		for _, s := range selected {
			p := portbounce.PortID(s)
			if _, ok := known[p]; !ok {
				return nil, fmt.Errorf("%w: %s", portbounce.ErrUnknownPort, s)
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			ports = append(ports, p)
		}
	}
	if len(ports) == 0 {
		return nil, portbounce.ErrNoPorts
	}

	var plan []portbounce.Step
	if group {
		target := append(portbounce.BounceTarget(nil), ports...)
		for i := 0; i < count; i++ {
			plan = append(plan, portbounce.Step{
				Target:    target,
				DwellKind: portbounce.DwellFull,
				Dwell:     dwell,
				Group:     true,
			})
		}
		return plan, nil
	}

	for _, p := range ports {
		for i := 0; i < count; i++ {
			plan = append(plan, portbounce.Step{
				Target:    portbounce.BounceTarget{p},
				DwellKind: portbounce.DwellShort,
				Dwell:     dwell,
			})
		}
	}
	return plan, nil
}
