package paxos

import "testing"

func TestConflictResolverYieldsToHigherNumber(t *testing.T) {
	r := NewConflictResolver("M1", 1)
	mine := NewProposalNumber(1, 1)
	higher := NewProposalNumber(2, 2)
	r.Observe(mine, "M1")
	r.Observe(higher, "M2")
	if got := r.Evaluate(mine); got != Yield {
		t.Errorf("Evaluate() = %v, want Yield", got)
	}
}

func TestConflictResolverContinuesAlone(t *testing.T) {
	r := NewConflictResolver("M1", 1)
	mine := NewProposalNumber(1, 1)
	r.Observe(mine, "M1")
	if got := r.Evaluate(mine); got != Continue {
		t.Errorf("Evaluate() = %v, want Continue", got)
	}
}

func TestConflictResolverBacksOffOnManyConcurrent(t *testing.T) {
	r := NewConflictResolver("M1", 1)
	mine := NewProposalNumber(5, 1)
	r.Observe(mine, "M1")
	r.Observe(NewProposalNumber(4, 2), "M2")
	r.Observe(NewProposalNumber(3, 3), "M3")
	r.Observe(NewProposalNumber(2, 4), "M4")
	if got := r.Evaluate(mine); got != Backoff {
		t.Errorf("Evaluate() = %v, want Backoff with 3+ concurrent conflicts", got)
	}
}

func TestConflictResolverBackoffSchedule(t *testing.T) {
	r := NewConflictResolver("M1", 1)
	first := r.NextBackoff()
	if first < MinBackoff {
		t.Errorf("NextBackoff() = %v, want >= MinBackoff (%v)", first, MinBackoff)
	}
	second := r.NextBackoff()
	if second < first {
		t.Errorf("backoff should not shrink between calls without a reset: %v then %v", first, second)
	}
	r.ResetBackoff()
	third := r.NextBackoff()
	if third > second {
		t.Errorf("backoff should shrink back toward MinBackoff after ResetBackoff, got %v after %v", third, second)
	}
}

func TestConflictResolverConflictCountExcludesSelf(t *testing.T) {
	r := NewConflictResolver("M1", 1)
	r.Observe(NewProposalNumber(1, 1), "M1")
	r.Observe(NewProposalNumber(1, 2), "M2")
	r.Observe(NewProposalNumber(1, 3), "M3")
	if got := r.ConflictCount(); got != 2 {
		t.Errorf("ConflictCount() = %d, want 2 (excluding self)", got)
	}
}

func TestJitterCounterBumpInRange(t *testing.T) {
	r := NewConflictResolver("M1", 1)
	for i := 0; i < 50; i++ {
		bump := r.JitterCounterBump()
		if bump < 1 || bump > 10 {
			t.Fatalf("JitterCounterBump() = %d, want in [1,10]", bump)
		}
	}
}
