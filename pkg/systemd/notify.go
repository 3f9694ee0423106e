package systemd

import (
	"context"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"github.com/leptonai/portbounce/pkg/log"
)

// NotifyReady tells systemd the test run has started.
// It is a no-op outside a notify-type unit.
func NotifyReady(_ context.Context) error {
	return sdNotify(sd.SdNotifyReady)
}

// NotifyStopping tells systemd the test run is shutting down.
func NotifyStopping(_ context.Context) error {
	return sdNotify(sd.SdNotifyStopping)
}

func sdNotify(state string) error {
	notified, err := sd.SdNotify(false, state)
	log.Logger.Debugw("sd notification", "state", state, "notified", notified, "error", err)
	return err
}
