package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/leptonai/portbounce/cmd/portbounce/common"
	"github.com/leptonai/portbounce/pkg/kmsg"
	"github.com/leptonai/portbounce/pkg/process"
)

const defaultKmsgSince = time.Hour

func cmdKmsg(cliContext *cli.Context) error {
	if err := common.SetupLogger(cliContext); err != nil {
		return err
	}

	since := time.Now().Add(-cliContext.Duration("since"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	msgs, err := kmsg.Capture(ctx, kmsg.WithSince(since), kmsg.WithRunner(process.NewExclusiveRunner()))
	if err != nil {
		return err
	}

	if len(msgs) == 0 {
		fmt.Printf("%s no kernel warnings since %s\n", common.CheckMark, humanize.Time(since))
		return nil
	}
	renderKernelMessages(os.Stdout, msgs)
	return nil
}

func renderKernelMessages(wr io.Writer, msgs []kmsg.Message) {
	table := tablewriter.NewWriter(wr)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Time", "Level", "Message"})
	for _, m := range msgs {
		ts := ""
		if !m.Timestamp.IsZero() {
			ts = humanize.Time(m.Timestamp.Time)
		}
		table.Append([]string{ts, m.LevelName(), m.Message})
	}
	table.Render()
}
