package paxos

import "testing"

func TestNewProposalNumberString(t *testing.T) {
	n := NewProposalNumber(3, 2)
	if got, want := n.String(), "3.2"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseProposalNumberRoundTrip(t *testing.T) {
	n := NewProposalNumber(7, 1)
	parsed, err := ParseProposalNumber(n.String())
	if err != nil {
		t.Fatalf("ParseProposalNumber: %v", err)
	}
	if !parsed.Equal(n) {
		t.Errorf("parsed %v, want %v", parsed, n)
	}
}

func TestParseProposalNumberEmpty(t *testing.T) {
	n, err := ParseProposalNumber("")
	if err != nil {
		t.Fatalf("ParseProposalNumber(\"\"): %v", err)
	}
	if n.HasValue() {
		t.Errorf("empty string parsed to %v, want zero value", n)
	}
}

func TestParseProposalNumberMalformed(t *testing.T) {
	cases := []string{"abc", "1", "1.2.3", "1.abc", "abc.1"}
	for _, c := range cases {
		if _, err := ParseProposalNumber(c); err == nil {
			t.Errorf("ParseProposalNumber(%q): expected error, got nil", c)
		}
	}
}

func TestCompareProposalNumbers(t *testing.T) {
	cases := []struct {
		a, b ProposalNumber
		want int
	}{
		{ProposalNumber{}, NewProposalNumber(1, 1), -1},
		{NewProposalNumber(1, 1), ProposalNumber{}, 1},
		{NewProposalNumber(2, 1), NewProposalNumber(1, 9), 1},
		{NewProposalNumber(1, 1), NewProposalNumber(1, 2), -1},
		{NewProposalNumber(5, 3), NewProposalNumber(5, 3), 0},
	}
	for _, c := range cases {
		if got := CompareProposalNumbers(c.a, c.b); got != c.want {
			t.Errorf("CompareProposalNumbers(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestGreaterThanLessThan(t *testing.T) {
	low := NewProposalNumber(1, 1)
	high := NewProposalNumber(1, 2)
	if !high.GreaterThan(low) {
		t.Errorf("%v should be greater than %v", high, low)
	}
	if !low.LessThan(high) {
		t.Errorf("%v should be less than %v", low, high)
	}
	if !low.AtLeast(low) {
		t.Errorf("%v should be at least itself", low)
	}
}

func TestPeerOrdinal(t *testing.T) {
	cases := []struct {
		id      string
		want    int64
		wantErr bool
	}{
		{"M1", 1, false},
		{"M42", 42, false},
		{"m3", 0, true},
		{"X1", 0, true},
		{"M", 0, true},
		{"M0x1", 0, true},
	}
	for _, c := range cases {
		got, err := PeerOrdinal(c.id)
		if c.wantErr {
			if err == nil {
				t.Errorf("PeerOrdinal(%q): expected error, got nil", c.id)
			}
			continue
		}
		if err != nil {
			t.Errorf("PeerOrdinal(%q): unexpected error %v", c.id, err)
			continue
		}
		if got != c.want {
			t.Errorf("PeerOrdinal(%q) = %d, want %d", c.id, got, c.want)
		}
	}
}
