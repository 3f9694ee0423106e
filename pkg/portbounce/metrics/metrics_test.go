package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	// registering the same collectors twice fails
	assert.Error(t, Register(reg))
}

func TestCollectors(t *testing.T) {
	before := testutil.ToFloat64(cyclesTotal.WithLabelValues("group", "full"))
	ObserveCycle("group", "full", 90*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(cyclesTotal.WithLabelValues("group", "full")))
	assert.Greater(t, testutil.ToFloat64(lastUpdateUnixSeconds), float64(0))

	before = testutil.ToFloat64(verificationFailuresTotal.WithLabelValues("switch", "12"))
	IncVerificationFailure("switch", "12")
	assert.Equal(t, before+1, testutil.ToFloat64(verificationFailuresTotal.WithLabelValues("switch", "12")))

	before = testutil.ToFloat64(switchCommandErrorsTotal.WithLabelValues("enable"))
	IncSwitchCommandError("enable")
	assert.Equal(t, before+1, testutil.ToFloat64(switchCommandErrorsTotal.WithLabelValues("enable")))

	SetCycleState(5)
	assert.Equal(t, float64(5), testutil.ToFloat64(cycleState))
}
