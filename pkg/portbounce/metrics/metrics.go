// Package metrics implements the port-bounce run metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const SubSystem = "portbounce"

var (
	lastUpdateUnixSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "",
			Subsystem: SubSystem,
			Name:      "last_update_unix_seconds",
			Help:      "tracks the last update time in unix seconds",
		},
	)

	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "",
			Subsystem: SubSystem,
			Name:      "cycles_total",
			Help:      "tracks the number of completed bounce cycles",
		},
		[]string{"kind", "dwell"}, // kind is "single" or "group"
	)

	cycleDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "",
			Subsystem: SubSystem,
			Name:      "cycle_duration_seconds",
			Help:      "tracks the wall time of one bounce cycle",
			Buckets:   []float64{30, 60, 120, 300, 600, 900},
		},
		[]string{"kind", "dwell"},
	)

	verificationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "",
			Subsystem: SubSystem,
			Name:      "verification_failures_total",
			Help:      "tracks the number of verification mismatches",
		},
		[]string{"check", "port"}, // check is "switch", "host" or "path"
	)

	switchCommandErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "",
			Subsystem: SubSystem,
			Name:      "switch_command_errors_total",
			Help:      "tracks the number of port commands the switch rejected",
		},
		[]string{"command"}, // "disable" or "enable"
	)

	cycleState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "",
			Subsystem: SubSystem,
			Name:      "cycle_state",
			Help:      "tracks the state of the current bounce cycle (0 is enabled)",
		},
	)
)

func SetLastUpdateUnixSeconds(unixSeconds float64) {
	lastUpdateUnixSeconds.Set(unixSeconds)
}

func ObserveCycle(kind string, dwell string, took time.Duration) {
	cyclesTotal.WithLabelValues(kind, dwell).Inc()
	cycleDurationSeconds.WithLabelValues(kind, dwell).Observe(took.Seconds())
	SetLastUpdateUnixSeconds(float64(time.Now().Unix()))
}

func IncVerificationFailure(check string, port string) {
	verificationFailuresTotal.WithLabelValues(check, port).Inc()
}

func IncSwitchCommandError(command string) {
	switchCommandErrorsTotal.WithLabelValues(command).Inc()
}

func SetCycleState(state int) {
	cycleState.Set(float64(state))
	SetLastUpdateUnixSeconds(float64(time.Now().Unix()))
}

func Register(reg *prometheus.Registry) error {
	for _, c := range []prometheus.Collector{
		lastUpdateUnixSeconds,
		cyclesTotal,
		cycleDurationSeconds,
		verificationFailuresTotal,
		switchCommandErrorsTotal,
		cycleState,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
