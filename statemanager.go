package paxos

import (
	"sync"
)

// StateManager owns one active Instance and an archive of prior decided
// instances for the "begin new round" hook spec.md §4.4 requires be
// callable even though single-decree semantics never invoke it. Grounded
// on dyv-paxos/agent.go's instances []*PaxosInstance slice, collapsed to a
// single active instance plus a capped history map since this repository
// covers one decree at a time.
type StateManager struct {
	mu      sync.Mutex
	current *Instance
	history map[string]*Instance // keyed by decidedNumber.String()
	order   []string             // insertion order, for LRU eviction
}

// NewStateManager returns a StateManager with a fresh IDLE instance.
func NewStateManager() *StateManager {
	return &StateManager{
		current: NewInstance(),
		history: make(map[string]*Instance),
	}
}

// Current returns the active instance.
func (sm *StateManager) Current() *Instance {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

// BeginNewRound archives the current decided instance into the capped
// history map (LRU by last-activity eviction, spec.md §4.4) and installs a
// fresh Instance. Unused by any single-decree operation in this
// repository; kept callable for the multi-decree façade spec.md names as
// an out-of-scope hook.
func (sm *StateManager) BeginNewRound() *Instance {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	prev := sm.current
	if n, ok := decidedNumberOf(prev); ok {
		sm.archiveLocked(n.String(), prev)
	}
	sm.current = NewInstance()
	return sm.current
}

func decidedNumberOf(inst *Instance) (ProposalNumber, bool) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if !inst.learner.decided {
		return ProposalNumber{}, false
	}
	return inst.learner.decidedNumber, true
}

// archiveLocked inserts inst into the history map, evicting the
// least-recently-active entry if the cap is exceeded. Callers must hold
// sm.mu.
func (sm *StateManager) archiveLocked(key string, inst *Instance) {
	if _, exists := sm.history[key]; exists {
		return
	}
	sm.history[key] = inst
	sm.order = append(sm.order, key)
	if len(sm.order) <= MaxHistorySize {
		return
	}
	oldestIdx := 0
	oldestTime := sm.history[sm.order[0]].LastActivity()
	for i, k := range sm.order {
		t := sm.history[k].LastActivity()
		if t.Before(oldestTime) {
			oldestTime = t
			oldestIdx = i
		}
	}
	evictKey := sm.order[oldestIdx]
	delete(sm.history, evictKey)
	sm.order = append(sm.order[:oldestIdx], sm.order[oldestIdx+1:]...)
}

// History returns the archived instance for a decided proposal number, if
// any.
func (sm *StateManager) History(number ProposalNumber) (*Instance, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	inst, ok := sm.history[number.String()]
	return inst, ok
}

// HistorySize returns the number of archived instances.
func (sm *StateManager) HistorySize() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.order)
}
