package portbounce

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/leptonai/portbounce/pkg/kmsg"
)

// Outcome is the verdict of a run.
type Outcome string

const (
	// OutcomePass means every check held.
	OutcomePass Outcome = "PASS"
	// OutcomeFail means the failure ledger is not empty, or the run was
	// aborted because a host link state did not follow the switch.
	OutcomeFail Outcome = "FAIL"
	// OutcomeError means the ledger is empty but errors were reported
	// or the run was aborted for any other reason.
	OutcomeError Outcome = "ERROR"
)

// Decide returns the outcome from the end-of-run findings.
func Decide(ledgerEmpty bool, reported int, fatal error) Outcome {
	switch {
	case !ledgerEmpty:
		return OutcomeFail
	case len(HostStateErrors(fatal)) > 0:
		return OutcomeFail
	case reported > 0 || fatal != nil:
		return OutcomeError
	default:
		return OutcomePass
	}
}

// HostStateErrors returns every *HostStateError in the error tree.
func HostStateErrors(err error) []*HostStateError {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var herrs []*HostStateError
		for _, e := range joined.Unwrap() {
			herrs = append(herrs, HostStateErrors(e)...)
		}
		return herrs
	}
	var herr *HostStateError
	if errors.As(err, &herr) {
		return []*HostStateError{herr}
	}
	return nil
}

// Result is the complete record of one run.
type Result struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Outcome Outcome `json:"outcome"`

	PortMap    []PortMapEntry      `json:"port_map"`
	StepsTotal int                 `json:"steps_total"`
	StepsDone  int                 `json:"steps_done"`
	Failures   map[PortID][]string `json:"failures"`
	Reported   []string            `json:"reported,omitempty"`
	Fatal      string              `json:"fatal,omitempty"`

	Teardown TeardownResult `json:"teardown"`

	KernelMessages []kmsg.Message `json:"kernel_messages,omitempty"`
	// set when kernel messages could not be captured
	KernelError string `json:"kernel_error,omitempty"`
}

// Summary returns the one-line verdict, including the failed ports
// the same way the ledger holds them.
func (r *Result) Summary() string {
	switch r.Outcome {
	case OutcomeFail:
		ports := make([]string, 0, len(r.Failures))
		for p := range r.Failures {
			ports = append(ports, string(p))
		}
		sort.Strings(ports)
		return fmt.Sprintf("FAIL: failed ports %s", strings.Join(ports, ", "))
	case OutcomeError:
		if r.Fatal != "" {
			return "ERROR: " + r.Fatal
		}
		return fmt.Sprintf("ERROR: %d verification error(s) reported", len(r.Reported))
	default:
		return "PASS"
	}
}

func (r *Result) RenderTable(wr io.Writer) {
	if r == nil {
		return
	}

	table := tablewriter.NewWriter(wr)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.Append([]string{"Run ID", r.RunID})
	table.Append([]string{"Outcome", string(r.Outcome)})
	table.Append([]string{"Started", fmt.Sprintf("%s (%s)", r.StartedAt.Format(time.RFC3339), humanize.Time(r.StartedAt))})
	table.Append([]string{"Took", humanize.RelTime(r.StartedAt, r.FinishedAt, "", "")})
	table.Append([]string{"Cycles", fmt.Sprintf("%d / %d", r.StepsDone, r.StepsTotal)})
	if r.Fatal != "" {
		table.Append([]string{"Aborted", r.Fatal})
	}
	table.Render()

	if len(r.PortMap) > 0 {
		fmt.Fprintln(wr)
		RenderPortMap(wr, r.PortMap)
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(wr)
		table = tablewriter.NewWriter(wr)
		table.SetAutoWrapText(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeader([]string{"Port", "Failure"})
		ports := make([]string, 0, len(r.Failures))
		for p := range r.Failures {
			ports = append(ports, string(p))
		}
		sort.Strings(ports)
		for _, p := range ports {
			for _, msg := range r.Failures[PortID(p)] {
				table.Append([]string{p, msg})
			}
		}
		table.Render()
	}

	if len(r.Reported) > 0 {
		fmt.Fprintln(wr)
		table = tablewriter.NewWriter(wr)
		table.SetAutoWrapText(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeader([]string{"Reported error"})
		for _, msg := range r.Reported {
			table.Append([]string{msg})
		}
		table.Render()
	}

	fmt.Fprintln(wr)
	table = tablewriter.NewWriter(wr)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Teardown", "Result"})
	restored := "ok"
	if !r.Teardown.OK() {
		restored = "incomplete"
	}
	table.Append([]string{"Ports restored", restored})
	if r.Teardown.CommandError != "" {
		table.Append([]string{"Command error", r.Teardown.CommandError})
	}
	if r.Teardown.SessionError != "" {
		table.Append([]string{"Session error", r.Teardown.SessionError})
	}
	if len(r.Teardown.NotOnline) > 0 {
		table.Append([]string{"Not online", BounceTarget(r.Teardown.NotOnline).String()})
	}
	table.Render()

	if len(r.KernelMessages) > 0 || r.KernelError != "" {
		fmt.Fprintln(wr)
		table = tablewriter.NewWriter(wr)
		table.SetAutoWrapText(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeader([]string{"Time", "Level", "Kernel message"})
		if r.KernelError != "" {
			table.Append([]string{"", "", "failed to read kernel messages: " + r.KernelError})
		}
		for _, m := range r.KernelMessages {
			ts := ""
			if !m.Timestamp.IsZero() {
				ts = m.Timestamp.UTC().Format(time.RFC3339)
			}
			table.Append([]string{ts, m.LevelName(), m.Message})
		}
		table.Render()
	}
}

// RenderPortMap prints the resolved port map.
func RenderPortMap(wr io.Writer, entries []PortMapEntry) {
	table := tablewriter.NewWriter(wr)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetHeader([]string{"Switch Port", "Adapter", "FC Host", "WWPN"})
	for _, e := range entries {
		table.Append([]string{string(e.Port), string(e.Adapter), e.Host, e.WWPN})
	}
	table.Render()
}
