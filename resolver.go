package paxos

import (
	"math/rand"
	"sync"
	"time"
)

// ConflictAction is the verdict a conflict-resolution strategy returns,
// grounded on original_source/consensus/ConflictResolver.java's
// ConflictAction enum.
type ConflictAction int

const (
	Continue ConflictAction = iota
	Backoff
	Abort
	Yield
)

// attempt records one observed proposal attempt (own or foreign, inferred
// from PREPARE/ACCEPT_REQUEST traffic), grounded on
// original_source/consensus/ConflictResolver.java's ProposalAttempt.
type attempt struct {
	number    ProposalNumber
	memberID  string
	startedAt time.Time
}

// ConflictResolver maintains a sliding window of recently observed
// proposal attempts and decides, for each new attempt, whether to
// continue, back off, abort, or yield (spec.md §4.5). Grounded on
// original_source/consensus/ConflictResolver.java; no Go example in the
// retrieval pack implements an equivalent, so this is carried from the
// Java original into the teacher's idiom (struct + mutex, not a
// strategy-object queue).
type ConflictResolver struct {
	selfID string
	rng    *rand.Rand
	rngMu  sync.Mutex

	mu              sync.Mutex
	window          []attempt
	currentBackoff  time.Duration
}

// NewConflictResolver builds a resolver for selfID, seeded with seed for
// deterministic tests.
func NewConflictResolver(selfID string, seed int64) *ConflictResolver {
	return &ConflictResolver{
		selfID:         selfID,
		rng:            rand.New(rand.NewSource(seed)),
		currentBackoff: MinBackoff,
	}
}

// Observe records a proposal attempt (our own, or a foreign one inferred
// from an inbound PREPARE/ACCEPT_REQUEST) into the sliding window, pruning
// entries older than ConflictWindow.
func (r *ConflictResolver) Observe(number ProposalNumber, memberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(time.Now())
	r.window = append(r.window, attempt{number: number, memberID: memberID, startedAt: time.Now()})
}

func (r *ConflictResolver) pruneLocked(now time.Time) {
	cutoff := now.Add(-ConflictWindow)
	kept := r.window[:0]
	for _, a := range r.window {
		if a.startedAt.After(cutoff) {
			kept = append(kept, a)
		}
	}
	r.window = kept
}

// Evaluate runs spec.md §4.5's ordered strategy list against my, the
// attempt under consideration, and returns the first non-CONTINUE verdict,
// or CONTINUE if every strategy abstains.
func (r *ConflictResolver) Evaluate(my ProposalNumber) ConflictAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.pruneLocked(now)

	var conflicting []attempt
	for _, a := range r.window {
		if a.memberID == r.selfID && a.number.Equal(my) {
			continue
		}
		conflicting = append(conflicting, a)
	}

	// Strategy 1: any conflicting number strictly greater than mine -> YIELD.
	for _, a := range conflicting {
		if a.number.GreaterThan(my) {
			return Yield
		}
	}
	// Strategy 2: same number, lower peer_ordinal (defensive; unreachable
	// under a correct ordinal tiebreak) -> BACKOFF.
	myOrdinal := my.Ordinal
	for _, a := range conflicting {
		if a.number.Equal(my) && a.number.Ordinal < myOrdinal {
			return Backoff
		}
	}
	// Strategy 3: 3 or more concurrent conflicts -> BACKOFF.
	if len(conflicting) >= 3 {
		return Backoff
	}
	// Strategy 4: any conflict started at least 1s before mine -> BACKOFF.
	var mine *attempt
	for i := range r.window {
		if r.window[i].memberID == r.selfID && r.window[i].number.Equal(my) {
			mine = &r.window[i]
			break
		}
	}
	if mine != nil {
		for _, a := range conflicting {
			if mine.startedAt.Sub(a.startedAt) >= time.Second {
				return Backoff
			}
		}
	}
	return Continue
}

// NextBackoff returns the delay to wait before retrying after a BACKOFF
// verdict, and advances the exponential-with-jitter schedule (spec.md
// §4.5): delay = current + U[0, current/2], then current *= 1.5 capped at
// MaxBackoff.
func (r *ConflictResolver) NextBackoff() time.Duration {
	r.mu.Lock()
	current := r.currentBackoff
	next := time.Duration(float64(current) * BackoffMultiplier)
	if next > MaxBackoff {
		next = MaxBackoff
	}
	r.currentBackoff = next
	r.mu.Unlock()

	r.rngMu.Lock()
	jitter := time.Duration(r.rng.Int63n(int64(current/2) + 1))
	r.rngMu.Unlock()
	return current + jitter
}

// ResetBackoff restores the backoff schedule to MinBackoff, called on a
// successful decision (spec.md §4.5).
func (r *ConflictResolver) ResetBackoff() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentBackoff = MinBackoff
}

// ConflictCount returns the number of distinct foreign members with
// attempts currently in the sliding window, used by the proposal-number
// generator's conflict-aware counter bump (spec.md §4.5).
func (r *ConflictResolver) ConflictCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(time.Now())
	seen := make(map[string]bool)
	for _, a := range r.window {
		if a.memberID != r.selfID {
			seen[a.memberID] = true
		}
	}
	return len(seen)
}

// JitterCounterBump draws U[1,10] for the conflict-aware counter bump
// spec.md §4.5 specifies ("if recent_conflicts>0 then counter +=
// U[1,10]").
func (r *ConflictResolver) JitterCounterBump() int64 {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return 1 + r.rng.Int63n(10)
}
