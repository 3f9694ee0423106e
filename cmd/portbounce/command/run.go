package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/leptonai/portbounce/cmd/portbounce/common"
	"github.com/leptonai/portbounce/pkg/config"
	"github.com/leptonai/portbounce/pkg/log"
	"github.com/leptonai/portbounce/pkg/portbounce"
	"github.com/leptonai/portbounce/pkg/portbounce/metrics"
	"github.com/leptonai/portbounce/pkg/server"
	"github.com/leptonai/portbounce/pkg/systemd"
	"github.com/leptonai/portbounce/version"
)

const (
	exitCodeFail  = 1
	exitCodeError = 2
)

func cmdRun(cliContext *cli.Context) error {
	cfg, output, err := loadRunConfig(cliContext)
	if err != nil {
		return err
	}
	return runTest(cfg, output, os.Stdout, nil)
}

// loadRunConfig sets up logging and returns the validated configuration
// with the run flags applied, and the output format.
func loadRunConfig(cliContext *cli.Context) (*config.Config, string, error) {
	if err := common.SetupLogger(cliContext); err != nil {
		return nil, "", err
	}
	output, err := common.ParseOutputFormat(cliContext.String("output"))
	if err != nil {
		return nil, "", err
	}

	cfg, err := common.LoadConfig(cliContext)
	if err != nil {
		return nil, "", err
	}
	applyRunFlags(cliContext, cfg)
	if err := common.ValidateForLogin(cfg); err != nil {
		return nil, "", err
	}
	return cfg, output, nil
}

func applyRunFlags(cliContext *cli.Context, cfg *config.Config) {
	if cliContext.IsSet("count") {
		cfg.Count = cliContext.Int("count")
	}
	for flag, dst := range map[string]*time.Duration{
		"short-dwell":       &cfg.ShortDwell.Duration,
		"long-dwell":        &cfg.LongDwell.Duration,
		"full-bounce-dwell": &cfg.FullBounceDwell.Duration,
		"settle-interval":   &cfg.SettleInterval.Duration,
		"group-interval":    &cfg.GroupInterval.Duration,
	} {
		if cliContext.IsSet(flag) {
			*dst = cliContext.Duration(flag)
		}
	}
	if cliContext.IsSet("switch-failure") {
		cfg.FailurePolicy.Switch = cliContext.String("switch-failure")
	}
	if cliContext.IsSet("host-failure") {
		cfg.FailurePolicy.Host = cliContext.String("host-failure")
	}
	if cliContext.IsSet("path-failure") {
		cfg.FailurePolicy.Path = cliContext.String("path-failure")
	}
	if cliContext.IsSet("status-address") {
		cfg.StatusAddress = cliContext.String("status-address")
	}
	if cliContext.IsSet("audit-log-file") {
		cfg.AuditLogFile = cliContext.String("audit-log-file")
	}
}

// runTest runs the plan (the full test plan if nil) and writes the result.
// A test that did not pass returns an *common.ExitError.
func runTest(cfg *config.Config, output string, wr io.Writer, plan func([]portbounce.PortID) ([]portbounce.Step, error)) error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("portbounce on %q not supported", runtime.GOOS)
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// start the signal handler as soon as we can to make sure that
	// a Ctrl-C during setup still cancels cleanly
	signals := make(chan os.Signal, 2048)
	done := handleSignals(rootCtx, rootCancel, signals, systemd.NotifyStopping, resetInterruptSignals)
	signal.Notify(signals, handledSignals...)
	defer signal.Stop(signals)

	log.Logger.Infow("starting portbounce", "version", version.Version, "switch", cfg.Switch.Address, "adapters", cfg.Adapters)
	checkMultipathd(rootCtx)

	tracker := portbounce.NewTracker(portbounce.NewRunID(), portbounce.NewFailureLedger())
	if cfg.StatusAddress != "" {
		if log.Logger.Desugar().Core().Enabled(zap.DebugLevel) {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}

		reg := prometheus.NewRegistry()
		if err := metrics.Register(reg); err != nil {
			return err
		}
		srv, err := server.New(cfg.StatusAddress, tracker, reg)
		if err != nil {
			return err
		}
		defer srv.Stop()
	}

	if err := systemd.NotifyReady(rootCtx); err != nil {
		log.Logger.Warnw("notify ready failed", "error", err)
	}

	res, err := portbounce.Run(rootCtx, cfg, portbounce.RunOptions{
		Tracker: tracker,
		Plan:    plan,
	})
	rootCancel()
	<-done
	if err != nil {
		return err
	}

	if err := writeResult(wr, output, res); err != nil {
		return err
	}

	switch res.Outcome {
	case portbounce.OutcomeFail:
		return common.NewExitError(res.Summary(), exitCodeFail)
	case portbounce.OutcomeError:
		return common.NewExitError(res.Summary(), exitCodeError)
	}
	fmt.Fprintf(wr, "%s %s\n", common.CheckMark, res.Summary())
	return nil
}

func writeResult(wr io.Writer, output string, res *portbounce.Result) error {
	if output == common.OutputFormatJSON {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(wr, string(b))
		return err
	}
	res.RenderTable(wr)
	return nil
}

// checkMultipathd warns if multipathd is not running, since every path
// verification will then fail.
func checkMultipathd(ctx context.Context) {
	active, err := systemd.UnitActive(ctx, "multipathd")
	if err != nil {
		log.Logger.Debugw("failed to check multipathd unit", "error", err)
		return
	}
	if !active {
		log.Logger.Warnw("multipathd.service is not active, path verification will fail")
	}
}
