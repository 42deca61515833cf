package paxos

import (
	"fmt"
	"strconv"
	"strings"
)

// ProposalNumber totally orders proposals across the whole cluster. Counter
// is a monotonically increasing integer local to the peer that issued the
// number; Ordinal is the numeric suffix of that peer's identifier and breaks
// ties between two peers that raced to the same counter.
//
// The zero value is "no proposal number" and compares less than every real
// ProposalNumber; use HasValue to distinguish it from Counter==0.
type ProposalNumber struct {
	Counter int64
	Ordinal int64
	valid   bool
}

// NewProposalNumber builds a ProposalNumber from its two components.
func NewProposalNumber(counter, ordinal int64) ProposalNumber {
	return ProposalNumber{Counter: counter, Ordinal: ordinal, valid: true}
}

// HasValue reports whether n is a real proposal number, as opposed to the
// "None" zero value.
func (n ProposalNumber) HasValue() bool {
	return n.valid
}

// String renders n in wire form: "counter.ordinal". The zero value renders
// as the empty string.
func (n ProposalNumber) String() string {
	if !n.valid {
		return ""
	}
	return fmt.Sprintf("%d.%d", n.Counter, n.Ordinal)
}

// ParseProposalNumber parses the wire form produced by String. The empty
// string parses to the zero value with no error.
func ParseProposalNumber(s string) (ProposalNumber, error) {
	if s == "" {
		return ProposalNumber{}, nil
	}
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return ProposalNumber{}, fmt.Errorf("%w: proposal number %q", ErrFraming, s)
	}
	counter, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ProposalNumber{}, fmt.Errorf("%w: proposal number %q: %v", ErrFraming, s, err)
	}
	ordinal, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ProposalNumber{}, fmt.Errorf("%w: proposal number %q: %v", ErrFraming, s, err)
	}
	return NewProposalNumber(counter, ordinal), nil
}

// PeerOrdinal extracts the numeric suffix from a peer identifier of the
// form "M<k>".
func PeerOrdinal(peerID string) (int64, error) {
	if len(peerID) < 2 || peerID[0] != 'M' {
		return 0, fmt.Errorf("%w: peer id %q does not match M<positive int>", ErrConfig, peerID)
	}
	n, err := strconv.ParseInt(peerID[1:], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: peer id %q does not match M<positive int>", ErrConfig, peerID)
	}
	return n, nil
}

// CompareProposalNumbers implements the total order spec.md §4.1 mandates:
// lexicographic on (counter, ordinal), with the zero ("None") value
// strictly less than every real value; two zero values compare equal. The
// byte-wise fallback for unparseable wire forms lives in Compare, which
// works on strings.
func CompareProposalNumbers(a, b ProposalNumber) int {
	if !a.valid && !b.valid {
		return 0
	}
	if !a.valid {
		return -1
	}
	if !b.valid {
		return 1
	}
	if a.Counter != b.Counter {
		if a.Counter < b.Counter {
			return -1
		}
		return 1
	}
	if a.Ordinal != b.Ordinal {
		if a.Ordinal < b.Ordinal {
			return -1
		}
		return 1
	}
	return 0
}

// GreaterThan reports whether n orders strictly after other.
func (n ProposalNumber) GreaterThan(other ProposalNumber) bool {
	return CompareProposalNumbers(n, other) > 0
}

// AtLeast reports whether n orders at or after other.
func (n ProposalNumber) AtLeast(other ProposalNumber) bool {
	return CompareProposalNumbers(n, other) >= 0
}

// LessThan reports whether n orders strictly before other.
func (n ProposalNumber) LessThan(other ProposalNumber) bool {
	return CompareProposalNumbers(n, other) < 0
}

// Equal reports whether n and other carry the same (counter, ordinal), or
// are both the zero value.
func (n ProposalNumber) Equal(other ProposalNumber) bool {
	return CompareProposalNumbers(n, other) == 0
}

// Compare orders two wire-form proposal numbers per spec.md §4.1 and §8's
// testable ordering property: parse both sides as (counter, ordinal) and
// compare lexicographically; if either side fails to parse, fall back to
// byte-wise lexicographic comparison of the raw strings (defensive — a
// framing bug upstream should not panic the comparison).
func Compare(a, b string) int {
	pa, errA := ParseProposalNumber(a)
	pb, errB := ParseProposalNumber(b)
	if errA != nil || errB != nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	return CompareProposalNumbers(pa, pb)
}
