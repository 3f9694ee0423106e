package portbounce

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/leptonai/portbounce/pkg/kmsg"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		ledgerEmpty bool
		reported    int
		fatal       error
		want        Outcome
	}{
		{name: "clean", ledgerEmpty: true, want: OutcomePass},
		{name: "ledger entries", ledgerEmpty: false, want: OutcomeFail},
		{name: "ledger wins over reported", ledgerEmpty: false, reported: 2, want: OutcomeFail},
		{name: "ledger wins over fatal", ledgerEmpty: false, fatal: errors.New("x"), want: OutcomeFail},
		{name: "reported only", ledgerEmpty: true, reported: 1, want: OutcomeError},
		{name: "fatal only", ledgerEmpty: true, fatal: errors.New("session closed"), want: OutcomeError},
		{name: "cancelled", ledgerEmpty: true, fatal: context.Canceled, want: OutcomeError},
		{
			name:        "fatal host mismatch",
			ledgerEmpty: true,
			fatal:       &HostStateError{Port: "12", Host: "host7", Expected: "Linkdown", Actual: "Online"},
			want:        OutcomeFail,
		},
		{
			name:        "fatal host mismatch joined",
			ledgerEmpty: true,
			fatal: errors.Join(
				&HostStateError{Port: "12", Host: "host7", Expected: "Linkdown", Actual: "Online"},
				&HostStateError{Port: "13", Host: "host8", Expected: "Linkdown", Actual: "Online"},
			),
			want: OutcomeFail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.ledgerEmpty, tt.reported, tt.fatal))
		})
	}
}

func TestHostStateErrors(t *testing.T) {
	assert.Empty(t, HostStateErrors(nil))
	assert.Empty(t, HostStateErrors(errors.New("x")))

	h12 := &HostStateError{Port: "12", Host: "host7"}
	h13 := &HostStateError{Port: "13", Host: "host8", Err: errors.New("no such file")}
	herrs := HostStateErrors(fmt.Errorf("step 1: %w", h12))
	require.Len(t, herrs, 1)
	assert.Equal(t, PortID("12"), herrs[0].Port)

	herrs = HostStateErrors(errors.Join(h12, errors.New("other"), h13))
	require.Len(t, herrs, 2)
	assert.Equal(t, PortID("13"), herrs[1].Port)
}

func TestResultSummary(t *testing.T) {
	r := &Result{Outcome: OutcomePass}
	assert.Equal(t, "PASS", r.Summary())

	r = &Result{
		Outcome: OutcomeFail,
		Failures: map[PortID][]string{
			"13": {"port 13 failed to reach state Online"},
			"12": {"port 12 failed to reach state Disabled"},
		},
	}
	assert.Equal(t, "FAIL: failed ports 12, 13", r.Summary())

	r = &Result{Outcome: OutcomeError, Fatal: "port 12: host host7 state not changed"}
	assert.Equal(t, "ERROR: port 12: host host7 state not changed", r.Summary())

	r = &Result{Outcome: OutcomeError, Reported: []string{"a", "b"}}
	assert.Equal(t, "ERROR: 2 verification error(s) reported", r.Summary())
}

func TestResultRenderTable(t *testing.T) {
	now := time.Now().UTC()
	r := &Result{
		RunID:      "8d6c1f6e",
		StartedAt:  now.Add(-time.Hour),
		FinishedAt: now,
		Outcome:    OutcomeFail,
		PortMap: []PortMapEntry{
			{Port: "12", Adapter: "0000:01:00.0", Host: "host7", WWPN: "10:00:00:90:fa:1b:2c:3d"},
		},
		StepsTotal: 5,
		StepsDone:  5,
		Failures: map[PortID][]string{
			"12": {"port 12 failed to reach state Disabled"},
		},
		Reported: []string{"following paths not failed/faulty: sdb (active/ready) on port 12"},
		Teardown: TeardownResult{Ports: []PortID{"12"}, NotOnline: []PortID{"12"}},
		KernelMessages: []kmsg.Message{
			{Priority: 3, Timestamp: metav1.NewTime(now), Message: "lpfc 0000:01:00.0: Link Down Event"},
		},
	}

	var buf bytes.Buffer
	r.RenderTable(&buf)
	out := buf.String()

	assert.Contains(t, out, "8d6c1f6e")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "5 / 5")
	assert.Contains(t, out, "10:00:00:90:fa:1b:2c:3d")
	assert.Contains(t, out, "port 12 failed to reach state Disabled")
	assert.Contains(t, out, "sdb (active/ready)")
	assert.Contains(t, out, "incomplete")
	assert.Contains(t, out, "Link Down Event")

	buf.Reset()
	var nilResult *Result
	nilResult.RenderTable(&buf)
	assert.Empty(t, buf.String())
}

func TestRenderKernelError(t *testing.T) {
	r := &Result{Outcome: OutcomePass, KernelError: "permission denied"}

	var buf bytes.Buffer
	r.RenderTable(&buf)
	assert.Contains(t, buf.String(), "failed to read kernel messages: permission denied")
	assert.Contains(t, buf.String(), "ok")
}
