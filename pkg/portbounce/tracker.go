package portbounce

import (
	"sync"
	"time"
)

// Status is a point-in-time view of a run, safe to serve while the run
// goes on.
type Status struct {
	RunID     string    `json:"run_id"`
	Phase     Phase     `json:"phase"`
	StartedAt time.Time `json:"started_at"`

	StepsTotal  int    `json:"steps_total"`
	StepsDone   int    `json:"steps_done"`
	CurrentStep *Step  `json:"current_step,omitempty"`
	State       string `json:"state,omitempty"`

	PortMap  []PortMapEntry      `json:"port_map,omitempty"`
	Failures map[PortID][]string `json:"failures"`
	Reported []string            `json:"reported,omitempty"`

	Outcome Outcome `json:"outcome,omitempty"`
}

// Tracker follows the progress of one run for readers on other goroutines.
type Tracker struct {
	mu sync.RWMutex

	runID     string
	phase     Phase
	startedAt time.Time

	stepsTotal int
	stepsDone  int
	current    *Step
	state      State
	inCycle    bool

	portMap  []PortMapEntry
	reported []string
	outcome  Outcome

	ledger *FailureLedger
}

func NewTracker(runID string, ledger *FailureLedger) *Tracker {
	return &Tracker{
		runID:     runID,
		phase:     PhaseSetup,
		startedAt: time.Now().UTC(),
		ledger:    ledger,
	}
}

func (t *Tracker) Ledger() *FailureLedger {
	return t.ledger
}

func (t *Tracker) SetPhase(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = p
	if p != PhaseBounce {
		t.current = nil
		t.inCycle = false
	}
}

func (t *Tracker) SetPortMap(m *PortMap) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.portMap = m.Entries()
}

func (t *Tracker) SetPlan(steps int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stepsTotal = steps
	t.stepsDone = 0
}

func (t *Tracker) StartStep(s Step) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := s
	t.current = &cp
	t.state = StateEnabled
	t.inCycle = true
}

func (t *Tracker) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

func (t *Tracker) FinishStep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stepsDone++
	t.current = nil
	t.inCycle = false
}

// Report keeps an error-level finding that is not a ledger entry.
func (t *Tracker) Report(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reported = append(t.reported, msg)
}

func (t *Tracker) Reported() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.reported...)
}

func (t *Tracker) SetOutcome(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outcome = o
}

func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st := Status{
		RunID:      t.runID,
		Phase:      t.phase,
		StartedAt:  t.startedAt,
		StepsTotal: t.stepsTotal,
		StepsDone:  t.stepsDone,
		PortMap:    append([]PortMapEntry(nil), t.portMap...),
		Reported:   append([]string(nil), t.reported...),
		Outcome:    t.outcome,
	}
	if t.current != nil {
		cp := *t.current
		st.CurrentStep = &cp
	}
	if t.inCycle {
		st.State = t.state.String()
	}
	if t.ledger != nil {
		st.Failures = t.ledger.Snapshot()
	}
	return st
}
