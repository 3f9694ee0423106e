package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/leptonai/portbounce/cmd/portbounce/common"
	"github.com/leptonai/portbounce/pkg/fchost"
	"github.com/leptonai/portbounce/pkg/fcswitch"
	"github.com/leptonai/portbounce/pkg/fcswitch/session"
	"github.com/leptonai/portbounce/pkg/log"
	"github.com/leptonai/portbounce/pkg/portbounce"
)

func cmdResolve(cliContext *cli.Context) error {
	if err := common.SetupLogger(cliContext); err != nil {
		return err
	}
	cfg, err := common.LoadConfig(cliContext)
	if err != nil {
		return err
	}
	if err := common.ValidateForLogin(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Switch.CommandTimeout.Duration*time.Duration(len(cfg.Adapters)+3))
	defer cancel()

	ch, err := session.Login(ctx, cfg.Switch)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ch.Close(); cerr != nil {
			log.Logger.Debugw("failed to close switch session", "error", cerr)
		}
	}()

	dialect, err := fcswitch.NewDialect(cfg.Switch.Dialect)
	if err != nil {
		return err
	}
	sw := fcswitch.New(ch, dialect)

	host, err := fchost.New(cfg.Host.FCHostClassDir)
	if err != nil {
		return err
	}

	adapters := make([]portbounce.AdapterRef, 0, len(cfg.Adapters))
	for _, a := range cfg.Adapters {
		adapters = append(adapters, portbounce.AdapterRef(a))
	}
	portMap, err := portbounce.NewResolver(sw, host).BuildPortMap(ctx, adapters)
	if err != nil {
		return err
	}

	portbounce.RenderPortMap(os.Stdout, portMap.Entries())

	if cliContext.Bool("show-ports") {
		rows, err := sw.Rows(ctx)
		if err != nil {
			return err
		}
		fmt.Println()
		renderPortRows(os.Stdout, rows)
	}

	fmt.Printf("%s resolved %d adapter(s) on %s\n", common.CheckMark, portMap.Len(), cfg.Switch.Address)
	return nil
}

func renderPortRows(wr io.Writer, rows []fcswitch.PortRow) {
	table := tablewriter.NewWriter(wr)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Index", "Port", "Address", "Speed", "State", "Proto", "WWPN"})
	for _, r := range rows {
		table.Append([]string{r.Index, r.Port, r.Address, r.Speed, r.State, r.Proto, r.WWPN})
	}
	table.Render()
}
