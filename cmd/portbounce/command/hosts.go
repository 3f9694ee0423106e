package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/leptonai/portbounce/cmd/portbounce/common"
	"github.com/leptonai/portbounce/pkg/fchost"
	"github.com/leptonai/portbounce/pkg/log"
	"github.com/leptonai/portbounce/pkg/multipath"
	"github.com/leptonai/portbounce/pkg/process"
)

func cmdHosts(cliContext *cli.Context) error {
	if err := common.SetupLogger(cliContext); err != nil {
		return err
	}
	cfg, err := common.LoadConfig(cliContext)
	if err != nil {
		return err
	}

	reader, err := fchost.New(cfg.Host.FCHostClassDir)
	if err != nil {
		return err
	}
	hosts, err := reader.Hosts()
	if err != nil {
		return err
	}
	attrs := make([]fchost.Attributes, 0, len(hosts))
	for _, h := range hosts {
		a, err := reader.Describe(h.Name)
		if err != nil {
			log.Logger.Warnw("failed to describe fc_host", "host", h.Name, "error", err)
			a = fchost.Attributes{Host: h.Name}
		}
		attrs = append(attrs, a)
	}
	renderHosts(os.Stdout, attrs)

	if len(cfg.Adapters) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	paths := multipath.New(process.NewExclusiveRunner(), cfg.Host.MultipathdCommand)
	for _, adapter := range cfg.Adapters {
		devs, err := multipath.Disks(cfg.Host.DiskByPathDir, adapter)
		if err != nil {
			return err
		}
		fmt.Printf("\nadapter %s: %d path(s)\n", adapter, len(devs))
		if len(devs) == 0 {
			continue
		}

		statuses, err := paths.PathStatuses(ctx, devs)
		if err != nil {
			return err
		}
		renderPaths(os.Stdout, statuses)
	}
	return nil
}

func renderHosts(wr io.Writer, attrs []fchost.Attributes) {
	table := tablewriter.NewWriter(wr)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"FC Host", "WWPN", "State", "Speed", "Fabric"})
	for _, a := range attrs {
		table.Append([]string{a.Host, a.WWPN, a.PortState, a.Speed, a.FabricName})
	}
	table.Render()
}

func renderPaths(wr io.Writer, statuses map[string]multipath.PathStatus) {
	table := tablewriter.NewWriter(wr)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Device", "Map", "DM State", "Dev State", "Checker"})
	for _, dev := range multipath.SortedDevices(statuses) {
		st := statuses[dev]
		table.Append([]string{dev, st.Map, orDash(st.DMState), orDash(st.DevState), orDash(st.CheckerState)})
	}
	table.Render()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
