package paxos

import "errors"

// Sentinel error kinds per spec.md §7. Wrap these with fmt.Errorf("%w: ...")
// so errors.Is still resolves to the kind while carrying detail.
var (
	// ErrFraming marks a malformed wire line or unknown message kind. The
	// caller logs and drops the line; the connection is not torn down.
	ErrFraming = errors.New("paxos: framing error")

	// ErrTransport marks a send failure or refused connection. Non-fatal:
	// Paxos relies on majorities, not per-send success.
	ErrTransport = errors.New("paxos: transport error")

	// ErrInvariant marks a state transition requested in an illegal phase.
	// Should be unreachable; logged at warn and the event is dropped.
	ErrInvariant = errors.New("paxos: invariant violation")

	// ErrTimeout marks a phase budget exceeded. Mutates phase to FAILED;
	// does not interrupt the caller of Propose.
	ErrTimeout = errors.New("paxos: phase timeout")

	// ErrConfig marks a malformed membership file. Fatal on startup.
	ErrConfig = errors.New("paxos: configuration error")

	// ErrAlreadyDecided is returned by Propose when the instance has
	// already reached a decision.
	ErrAlreadyDecided = errors.New("paxos: instance already decided")

	// ErrProposalInProgress is returned by Propose when this member
	// already has an active proposal attempt.
	ErrProposalInProgress = errors.New("paxos: proposal already in progress")

	// ErrYielded is returned by Propose when the conflict resolver
	// determined a higher-priority proposer is active.
	ErrYielded = errors.New("paxos: yielded to higher priority proposer")

	// ErrBackingOff is returned by Propose when the conflict resolver
	// scheduled a delayed retry instead of proposing immediately.
	ErrBackingOff = errors.New("paxos: backing off before retry")

	// ErrAborted is returned by Propose when the conflict resolver
	// determined the attempt should not proceed at all.
	ErrAborted = errors.New("paxos: proposal aborted")

	// ErrStopped is returned by operations invoked after Stop.
	ErrStopped = errors.New("paxos: member stopped")
)
