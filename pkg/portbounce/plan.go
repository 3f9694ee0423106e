package portbounce

import (
	"time"

	"github.com/leptonai/portbounce/pkg/config"
)

// PlanConfig holds the dwell times and repetition count of a test plan.
type PlanConfig struct {
	ShortDwell      time.Duration
	LongDwell       time.Duration
	FullBounceDwell time.Duration
	Count           int
}

func PlanConfigFromConfig(cfg *config.Config) PlanConfig {
	return PlanConfig{
		ShortDwell:      cfg.ShortDwell.Duration,
		LongDwell:       cfg.LongDwell.Duration,
		FullBounceDwell: cfg.FullBounceDwell.Duration,
		Count:           cfg.Count,
	}
}

// BuildPlan returns the full test plan: for the short and then the long
// dwell, every port alone count times; then all ports together count
// times with the full-bounce dwell.
func BuildPlan(ports []PortID, pc PlanConfig) []Step {
	if len(ports) == 0 || pc.Count <= 0 {
		return nil
	}

	var plan []Step
	for _, dwell := range []struct {
		kind DwellKind
		d    time.Duration
	}{
		{kind: DwellShort, d: pc.ShortDwell},
		{kind: DwellLong, d: pc.LongDwell},
	} {
		for _, p := range ports {
			for i := 0; i < pc.Count; i++ {
				plan = append(plan, Step{
					Target:    BounceTarget{p},
					DwellKind: dwell.kind,
					Dwell:     dwell.d,
				})
			}
		}
	}

	all := append(BounceTarget(nil), ports...)
	for i := 0; i < pc.Count; i++ {
		plan = append(plan, Step{
			Target:    all,
			DwellKind: DwellFull,
			Dwell:     pc.FullBounceDwell,
			Group:     true,
		})
	}
	return plan
}

// EstimateDuration returns the minimum wall time of the plan, counting
// only the fixed waits.
func EstimateDuration(plan []Step, settle time.Duration, groupInterval time.Duration) time.Duration {
	var total time.Duration
	for _, s := range plan {
		// disable settle, dwell, enable settle, path settle
		total += 3*settle + s.Dwell
		if s.Group {
			total += groupInterval
		}
	}
	return total
}
