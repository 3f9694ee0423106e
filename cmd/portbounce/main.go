package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/leptonai/portbounce/cmd/portbounce/command"
	"github.com/leptonai/portbounce/cmd/portbounce/common"
)

func main() {
	app := command.App()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", common.WarningSign, err)

		var exitErr *common.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitStatus())
		}
		os.Exit(1)
	}
}
