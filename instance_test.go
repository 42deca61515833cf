package paxos

import "testing"

func TestInstanceFullRoundNoConflict(t *testing.T) {
	inst := NewInstance()
	number := NewProposalNumber(1, 1)
	value := "M7"

	if err := inst.StartPhase1(number, value, nil); err != nil {
		t.Fatalf("StartPhase1: %v", err)
	}
	if got := inst.Phase(); got != Phase1 {
		t.Fatalf("Phase() = %v, want PHASE_1", got)
	}

	quorum := 2
	if _, err := inst.OnPromise("M2", ProposalNumber{}, "", false, quorum); err != nil {
		t.Fatalf("OnPromise(M2): %v", err)
	}
	result, err := inst.OnPromise("M3", ProposalNumber{}, "", false, quorum)
	if err != nil {
		t.Fatalf("OnPromise(M3): %v", err)
	}
	if !result.ReadyForPhase2 {
		t.Fatalf("expected phase 2 readiness at quorum")
	}
	if got := inst.Phase(); got != Phase2 {
		t.Fatalf("Phase() = %v, want PHASE_2", got)
	}

	if _, err := inst.OnAccepted("M2", quorum); err != nil {
		t.Fatalf("OnAccepted(M2): %v", err)
	}
	accepted, err := inst.OnAccepted("M3", quorum)
	if err != nil {
		t.Fatalf("OnAccepted(M3): %v", err)
	}
	if !accepted.Decided {
		t.Fatalf("expected decision at quorum")
	}
	learned, ok := inst.LearnedValue()
	if !ok || learned != value {
		t.Fatalf("LearnedValue() = (%q, %v), want (%q, true)", learned, ok, value)
	}
}

func TestInstanceAdoptsHighestPromisedPrior(t *testing.T) {
	inst := NewInstance()
	number := NewProposalNumber(5, 1)
	if err := inst.StartPhase1(number, "fallback", nil); err != nil {
		t.Fatalf("StartPhase1: %v", err)
	}

	lowPrior := NewProposalNumber(2, 1)
	highPrior := NewProposalNumber(3, 1)
	if _, err := inst.OnPromise("M2", highPrior, "high-value", true, 3); err != nil {
		t.Fatalf("OnPromise(M2): %v", err)
	}
	if _, err := inst.OnPromise("M3", ProposalNumber{}, "", false, 3); err != nil {
		t.Fatalf("OnPromise(M3): %v", err)
	}
	result, err := inst.OnPromise("M4", lowPrior, "low-value", true, 3)
	if err != nil {
		t.Fatalf("OnPromise(M4): %v", err)
	}
	if !result.ReadyForPhase2 {
		t.Fatalf("expected phase 2 readiness at quorum")
	}
	if result.Value != "high-value" {
		t.Errorf("adopted value = %q, want %q (must adopt the highest-numbered prior, not arrival order)", result.Value, "high-value")
	}
}

func TestInstanceAcceptorRejectsLowerPrepare(t *testing.T) {
	inst := NewInstance()
	high := NewProposalNumber(5, 1)
	low := NewProposalNumber(3, 1)

	if result := inst.OnPrepare(high); !result.Granted {
		t.Fatalf("OnPrepare(high) should be granted")
	}
	if result := inst.OnPrepare(low); result.Granted {
		t.Fatalf("OnPrepare(low) should be rejected after a higher promise")
	}
}

func TestInstanceAcceptRequestCarriesPriorToNextPrepare(t *testing.T) {
	inst := NewInstance()
	n1 := NewProposalNumber(1, 1)
	if !inst.OnAcceptRequest(n1, "M9") {
		t.Fatalf("OnAcceptRequest(n1) should be accepted")
	}
	n2 := NewProposalNumber(2, 1)
	result := inst.OnPrepare(n2)
	if !result.Granted {
		t.Fatalf("OnPrepare(n2) should be granted")
	}
	if result.Prior == nil || result.Prior.Value != "M9" {
		t.Fatalf("OnPrepare should carry prior acceptance, got %+v", result.Prior)
	}
}

func TestInstanceLearnerRejectsValueMismatch(t *testing.T) {
	inst := NewInstance()
	n := NewProposalNumber(1, 1)
	if _, err := inst.OnAcceptedObserved(n, "M7", "M1", 3); err != nil {
		t.Fatalf("first OnAcceptedObserved: %v", err)
	}
	if _, err := inst.OnAcceptedObserved(n, "M9", "M2", 3); err == nil {
		t.Fatalf("expected ErrInvariant for mismatched value at the same proposal number")
	}
}

func TestInstanceResetPreservesAcceptorAndLearner(t *testing.T) {
	inst := NewInstance()
	n := NewProposalNumber(1, 1)
	inst.OnAcceptRequest(n, "M7")
	if _, err := inst.OnAcceptedObserved(n, "M7", "M2", 2); err != nil {
		t.Fatalf("OnAcceptedObserved(M2): %v", err)
	}
	if err := inst.StartPhase1(n, "M7", nil); err != nil {
		t.Fatalf("StartPhase1: %v", err)
	}
	inst.Reset()
	if got := inst.Phase(); got != Idle {
		t.Fatalf("Phase() after Reset = %v, want IDLE", got)
	}
	snapshot := inst.Acceptor()
	if !snapshot.HasAcceptedValue || snapshot.AcceptedValue != "M7" {
		t.Fatalf("Reset should preserve acceptor state, got %+v", snapshot)
	}
	decided, err := inst.OnAcceptedObserved(n, "M7", "M3", 2)
	if err != nil || !decided {
		t.Fatalf("Reset should preserve learner state: second acceptance gave (%v, %v), want (true, nil)", decided, err)
	}
}

func TestInstanceResetNoOpAfterDecided(t *testing.T) {
	inst := NewInstance()
	n := NewProposalNumber(1, 1)
	inst.OnLearn(n, "M7")
	inst.Reset()
	if got := inst.Phase(); got != Decided {
		t.Fatalf("Phase() after Reset on a decided instance = %v, want DECIDED", got)
	}
}
