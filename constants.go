package paxos

import "time"

// Tunables collected in one place, grounded on
// original_source/core/PaxosConstants.java. spec.md names each of these
// individually; this file is the single source of truth so implementation
// files don't scatter magic numbers.
const (
	// BasePort is the port offset of the BasePort + ordinal numbering
	// convention. Nothing in this module derives a port from it: every
	// listen port comes from the membership directory.
	BasePort = 9000

	// PhaseTimeout bounds a single Phase-1+Phase-2 attempt (spec.md §4.4,
	// §4.5): if the proposer has not reached DECIDED within this budget
	// from start_phase_1, the instance moves to FAILED.
	PhaseTimeout = 5 * time.Second

	// ConflictWindow is the sliding window the conflict resolver keeps
	// recently observed proposal attempts in (spec.md §4.5).
	ConflictWindow = 10 * time.Second

	// MinBackoff, MaxBackoff, and BackoffMultiplier parameterize the
	// exponential-backoff-with-jitter schedule (spec.md §4.5).
	MinBackoff       = 100 * time.Millisecond
	MaxBackoff       = 5000 * time.Millisecond
	BackoffMultiplier = 1.5

	// MaxHistorySize caps the archived-instance map BeginNewRound appends
	// to (spec.md §4.4).
	MaxHistorySize = 100

	// EventBufferCap and EventBufferAge cap the network-behavior model's
	// event ring buffer, whichever limit is reached first (spec.md §4.3).
	EventBufferCap = 100
	EventBufferAge = 60 * time.Second

	// StopGrace is how long Stop waits for a cooperating goroutine to
	// observe its shutdown signal before force-continuing (spec.md §5).
	StopGrace = 3 * time.Second

	// ConditionTick is the period of the scheduled tick that drives
	// spontaneous condition transitions for LATENT/FAILURE profiles
	// (spec.md §4.3).
	ConditionTick = 500 * time.Millisecond

	// ConsensusPrefix and CouncilPresidentSuffix are the human-readable
	// announcement strings a member logs on reaching a decision, grounded
	// on original_source/core/PaxosConstants.java's CONSENSUS_PREFIX and
	// COUNCIL_PRESIDENT_SUFFIX.
	ConsensusPrefix        = "CONSENSUS: "
	CouncilPresidentSuffix = " has been elected Council President!"
)
