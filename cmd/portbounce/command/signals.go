package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/leptonai/portbounce/pkg/log"
)

var handledSignals = []os.Signal{
	unix.SIGTERM,
	unix.SIGINT,
	unix.SIGUSR1,
	unix.SIGPIPE,
}

// handleSignals cancels the run on the first SIGINT or SIGTERM. The run
// then restores the ports before it returns, so the process is not
// stopped here. resetInterrupts is called right after, so that a second
// SIGINT or SIGTERM terminates the process without the restore.
// SIGUSR1 dumps the goroutine stacks.
func handleSignals(ctx context.Context, cancel context.CancelFunc, signals chan os.Signal, notifyStopping func(ctx context.Context) error, resetInterrupts func()) chan struct{} {
	done := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				close(done)
				return

			case s := <-signals:
				// Do not print message when deailing with SIGPIPE, which may cause
				// nested signals and consume lots of cpu bandwidth.
				if s == unix.SIGPIPE {
					continue
				}

				switch s {
				case unix.SIGUSR1:
					dumpStacks(filepath.Join(os.TempDir(), fmt.Sprintf("portbounce.%d.stacks.log", os.Getpid())))

				default:
					log.Logger.Warnw("received signal, stopping the test and restoring ports (signal again to exit without restoring)", "signal", s)
					cancel()
					resetInterrupts()

					if err := notifyStopping(ctx); err != nil {
						log.Logger.Debugw("notify stopping failed", "error", err)
					}

					close(done)
					return
				}
			}
		}
	}()
	return done
}

func resetInterruptSignals() {
	signal.Reset(unix.SIGINT, unix.SIGTERM)
}

func dumpStacks(file string) {
	var (
		buf       []byte
		stackSize int
	)
	bufferLen := 16384
	for stackSize == len(buf) {
		buf = make([]byte, bufferLen)
		stackSize = runtime.Stack(buf, true)
		bufferLen *= 2
	}
	buf = buf[:stackSize]
	log.Logger.Debugf("=== BEGIN goroutine stack dump ===\n%s\n=== END goroutine stack dump ===", buf)

	f, err := os.Create(file)
	if err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Logger.Errorw("failed to close stack trace file", "error", cerr)
		}
	}()

	if _, err := f.Write(buf); err != nil {
		log.Logger.Errorw("failed to write stack trace to file", "error", err)
	} else {
		log.Logger.Debugw("goroutine stack dump written to file", "file", file)
	}
}
