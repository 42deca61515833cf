package paxos

import (
	"sync"
	"time"
)

// Phase is the proposer-side phase of an Instance (spec.md §4.4).
type Phase int

const (
	Idle Phase = iota
	Phase1
	Phase2
	Decided
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "IDLE"
	case Phase1:
		return "PHASE_1"
	case Phase2:
		return "PHASE_2"
	case Decided:
		return "DECIDED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// proposerState is the proposer-role bundle of spec.md §3. StartPhase1
// replaces it and Reset clears it; reaching DECIDED or FAILED leaves it in
// place, and the proposer transitions reject calls outside Phase1/Phase2.
type proposerState struct {
	currentNumber ProposalNumber
	currentValue  string
	promiseSet    map[string]bool
	acceptSet     map[string]bool
	adoptedPrior  *AcceptedProposal
}

func newProposerState() proposerState {
	return proposerState{
		promiseSet: make(map[string]bool),
		acceptSet:  make(map[string]bool),
	}
}

// acceptorState is the acceptor-role bundle of spec.md §3. It persists for
// the life of the peer process and is never reset by round change.
type acceptorState struct {
	highestPromised ProposalNumber
	highestAccepted ProposalNumber
	acceptedValue   string
	hasAcceptedValue bool
}

// learnerState is the learner-role bundle of spec.md §3. It persists for
// the life of the peer process.
type learnerState struct {
	decidedNumber ProposalNumber
	decidedValue  string
	decided       bool
	acceptedBy    map[string]*acceptedEntry // keyed by ProposalNumber.String()
}

type acceptedEntry struct {
	value     string
	acceptors map[string]bool
}

func newLearnerState() learnerState {
	return learnerState{acceptedBy: make(map[string]*acceptedEntry)}
}

// Instance owns the proposer, acceptor, and learner bundles for a single
// Paxos decree, guarded by one lock (spec.md §4.4, §5, §9's "Multi-role
// cohabitation" design note). Grounded on dyv-paxos/paxos_instance.go's
// PaxosInstance (embedded mutex, per-round bookkeeping) re-derived for
// spec.md's single-decree phase machine.
type Instance struct {
	mu sync.Mutex

	phase    Phase
	proposer proposerState
	acceptor acceptorState
	learner  learnerState

	lastActivity time.Time

	timeoutTimer *time.Timer
	timeoutGen   int // invalidates stale timers after reset/retry
}

// NewInstance returns a fresh, IDLE instance.
func NewInstance() *Instance {
	return &Instance{
		phase:        Idle,
		proposer:     newProposerState(),
		acceptor:     acceptorState{},
		learner:      newLearnerState(),
		lastActivity: time.Now(),
	}
}

// Phase returns the current proposer-side phase.
func (inst *Instance) Phase() Phase {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.phase
}

// ---- Proposer transitions (spec.md §4.4) ----

// StartPhase1 begins a new proposal attempt. Valid only from IDLE or
// FAILED; onTimeout is invoked with the attempt's generation once
// PhaseTimeout elapses, unless Reset or a later StartPhase1 stops the timer
// first. The timer is not stopped on decision; ExpireTimeout leaves a
// DECIDED instance as it is.
func (inst *Instance) StartPhase1(number ProposalNumber, value string, onTimeout func(gen int)) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.phase != Idle && inst.phase != Failed {
		return ErrInvariant
	}
	inst.proposer = newProposerState()
	inst.proposer.currentNumber = number
	inst.proposer.currentValue = value
	inst.phase = Phase1
	inst.lastActivity = time.Now()
	inst.timeoutGen++
	gen := inst.timeoutGen
	if inst.timeoutTimer != nil {
		inst.timeoutTimer.Stop()
	}
	if onTimeout != nil {
		inst.timeoutTimer = time.AfterFunc(PhaseTimeout, func() { onTimeout(gen) })
	}
	return nil
}

// ExpireTimeout moves the instance to FAILED if it is still mid-attempt and
// gen matches the attempt that armed the timer (stale timers from a prior
// attempt are ignored).
func (inst *Instance) ExpireTimeout(gen int) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if gen != inst.timeoutGen {
		return
	}
	if inst.phase == Phase1 || inst.phase == Phase2 {
		inst.phase = Failed
		inst.lastActivity = time.Now()
	}
}

// PromiseResult reports what on_promise produced, per spec.md §4.4.
type PromiseResult struct {
	ReadyForPhase2 bool
	Number         ProposalNumber
	Value          string
}

// OnPromise handles a PROMISE response in Phase1: adds sender to the
// promise set, adopts the highest prior acceptance seen so far (spec.md
// §9's Open Question: by number, never by arrival order), and transitions
// to Phase2 once a quorum of promises has been collected.
func (inst *Instance) OnPromise(sender string, priorNumber ProposalNumber, priorValue string, hasPrior bool, quorum int) (PromiseResult, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.phase != Phase1 {
		return PromiseResult{}, ErrInvariant
	}
	inst.proposer.promiseSet[sender] = true
	inst.lastActivity = time.Now()
	if hasPrior {
		if inst.proposer.adoptedPrior == nil || priorNumber.GreaterThan(inst.proposer.adoptedPrior.Number) {
			inst.proposer.adoptedPrior = &AcceptedProposal{Number: priorNumber, Value: priorValue}
		}
	}
	if len(inst.proposer.promiseSet) < quorum {
		return PromiseResult{}, nil
	}
	if inst.proposer.adoptedPrior != nil {
		inst.proposer.currentValue = inst.proposer.adoptedPrior.Value
	}
	inst.phase = Phase2
	return PromiseResult{ReadyForPhase2: true, Number: inst.proposer.currentNumber, Value: inst.proposer.currentValue}, nil
}

// AcceptedResult reports what on_accepted produced, per spec.md §4.4.
type AcceptedResult struct {
	Decided bool
	Number  ProposalNumber
	Value   string
}

// OnAccepted handles an ACCEPTED response in Phase2: adds sender to the
// accept set and transitions to DECIDED once a quorum has accepted.
func (inst *Instance) OnAccepted(sender string, quorum int) (AcceptedResult, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.phase != Phase2 {
		return AcceptedResult{}, ErrInvariant
	}
	inst.proposer.acceptSet[sender] = true
	inst.lastActivity = time.Now()
	if len(inst.proposer.acceptSet) < quorum {
		return AcceptedResult{}, nil
	}
	inst.phase = Decided
	number, value := inst.proposer.currentNumber, inst.proposer.currentValue
	inst.recordDecisionLocked(number, value)
	return AcceptedResult{Decided: true, Number: number, Value: value}, nil
}

// ---- Acceptor transitions (spec.md §4.4) — independent of proposer phase ----

// PrepareResult reports the acceptor's answer to a PREPARE.
type PrepareResult struct {
	Granted    bool
	Prior      *AcceptedProposal
}

// OnPrepare implements the acceptor's response to PREPARE(n): promise if n
// is higher than anything previously promised, attaching the prior
// acceptance (if any) so the proposer can adopt it; otherwise reject
// silently.
func (inst *Instance) OnPrepare(n ProposalNumber) PrepareResult {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.acceptor.highestPromised.HasValue() && !n.GreaterThan(inst.acceptor.highestPromised) {
		return PrepareResult{Granted: false}
	}
	inst.acceptor.highestPromised = n
	inst.lastActivity = time.Now()
	var prior *AcceptedProposal
	if inst.acceptor.hasAcceptedValue {
		prior = &AcceptedProposal{Number: inst.acceptor.highestAccepted, Value: inst.acceptor.acceptedValue}
	}
	return PrepareResult{Granted: true, Prior: prior}
}

// OnAcceptRequest implements the acceptor's response to
// ACCEPT_REQUEST(n, v): accept if n is at least as high as anything
// promised, else reject silently.
func (inst *Instance) OnAcceptRequest(n ProposalNumber, v string) bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.acceptor.highestPromised.HasValue() && n.LessThan(inst.acceptor.highestPromised) {
		return false
	}
	inst.acceptor.highestPromised = n
	inst.acceptor.highestAccepted = n
	inst.acceptor.acceptedValue = v
	inst.acceptor.hasAcceptedValue = true
	inst.lastActivity = time.Now()
	return true
}

// ---- Learner transitions (spec.md §4.4) ----

// OnAcceptedObserved records that acceptor accepted (n, v), verifying the
// value matches any previously recorded value for n, and decides once a
// quorum of acceptors is reached for some number.
func (inst *Instance) OnAcceptedObserved(n ProposalNumber, v string, acceptor string, quorum int) (bool, error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	key := n.String()
	entry, ok := inst.learner.acceptedBy[key]
	if !ok {
		entry = &acceptedEntry{value: v, acceptors: make(map[string]bool)}
		inst.learner.acceptedBy[key] = entry
	} else if entry.value != v {
		return false, ErrInvariant
	}
	entry.acceptors[acceptor] = true
	inst.lastActivity = time.Now()
	if len(entry.acceptors) >= quorum && !inst.learner.decided {
		inst.recordDecisionLocked(n, v)
		return true, nil
	}
	return false, nil
}

// OnLearn force-learns (n, v) unconditionally if nothing has been learned
// yet (spec.md §4.4's LEARN semantics).
func (inst *Instance) OnLearn(n ProposalNumber, v string) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if !inst.learner.decided {
		inst.recordDecisionLocked(n, v)
	}
}

// recordDecisionLocked sets the learner's decided number/value exactly
// once; callers must hold mu. Once set, decidedValue never changes
// (spec.md §8's agreement invariant).
func (inst *Instance) recordDecisionLocked(n ProposalNumber, v string) {
	if inst.learner.decided {
		return
	}
	inst.learner.decided = true
	inst.learner.decidedNumber = n
	inst.learner.decidedValue = v
	if inst.phase != Decided {
		inst.phase = Decided
	}
}

// HasLearned reports whether a value has been decided.
func (inst *Instance) HasLearned() bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.learner.decided
}

// LearnedValue returns the decided value and whether one exists.
func (inst *Instance) LearnedValue() (string, bool) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.learner.decidedValue, inst.learner.decided
}

// AcceptorSnapshot is a read-only view of the acceptor bundle, for tests
// and diagnostics.
type AcceptorSnapshot struct {
	HighestPromised ProposalNumber
	HighestAccepted ProposalNumber
	AcceptedValue   string
	HasAcceptedValue bool
}

// Acceptor returns a snapshot of the acceptor state.
func (inst *Instance) Acceptor() AcceptorSnapshot {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return AcceptorSnapshot{
		HighestPromised:  inst.acceptor.highestPromised,
		HighestAccepted:  inst.acceptor.highestAccepted,
		AcceptedValue:    inst.acceptor.acceptedValue,
		HasAcceptedValue: inst.acceptor.hasAcceptedValue,
	}
}

// Reset clears proposer state and moves phase to IDLE, unless the instance
// has already reached DECIDED (spec.md §4.4's reset semantics). Acceptor
// and learner state are preserved.
func (inst *Instance) Reset() {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.phase == Decided {
		return
	}
	if inst.timeoutTimer != nil {
		inst.timeoutTimer.Stop()
	}
	inst.timeoutGen++
	inst.proposer = newProposerState()
	inst.phase = Idle
}

// LastActivity returns the timestamp of the most recent state transition,
// used by BeginNewRound's LRU eviction.
func (inst *Instance) LastActivity() time.Time {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.lastActivity
}
