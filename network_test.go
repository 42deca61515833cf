package paxos

import (
	"testing"
	"time"
)

func TestNetworkModelReliableNeverDrops(t *testing.T) {
	n := NewNetworkModel("M1", ReliableProfile, 42)
	for i := 0; i < 200; i++ {
		decision := n.Evaluate("M2", 64)
		if !decision.Delivered {
			t.Fatalf("reliable profile dropped a message: %s", decision.Reason)
		}
	}
}

func TestNetworkModelPartitionedPeerAlwaysDrops(t *testing.T) {
	n := NewNetworkModel("M1", StandardProfile, 1)
	n.SimulatePartition([]string{"M2"}, time.Minute)
	decision := n.Evaluate("M2", 64)
	if decision.Delivered {
		t.Fatalf("expected a partitioned peer to always be dropped")
	}
}

func TestNetworkModelInactiveAlwaysDrops(t *testing.T) {
	n := NewNetworkModel("M1", ReliableProfile, 1)
	n.Stop()
	decision := n.Evaluate("M2", 64)
	if decision.Delivered {
		t.Fatalf("expected an inactive network model to always drop")
	}
}

func TestNetworkModelSnapshotCounters(t *testing.T) {
	n := NewNetworkModel("M1", ReliableProfile, 7)
	for i := 0; i < 10; i++ {
		n.Evaluate("M2", 64)
	}
	stats := n.Snapshot()
	if stats.TotalSent != 10 {
		t.Errorf("TotalSent = %d, want 10", stats.TotalSent)
	}
	if stats.Profile != "RELIABLE" {
		t.Errorf("Profile = %q, want RELIABLE", stats.Profile)
	}
}

func TestNetworkModelEventsCapped(t *testing.T) {
	n := NewNetworkModel("M1", StandardProfile, 3)
	for i := 0; i < EventBufferCap+20; i++ {
		n.Evaluate("M2", 64)
	}
	events := n.Events(EventBufferCap + 20)
	if len(events) > EventBufferCap {
		t.Errorf("len(Events) = %d, want <= %d", len(events), EventBufferCap)
	}
}

func TestParseProfile(t *testing.T) {
	cases := []struct {
		in      string
		want    Profile
		wantErr bool
	}{
		{"RELIABLE", ReliableProfile, false},
		{"latent", LatentProfile, false},
		{"Failure", FailureProfile, false},
		{"standard", StandardProfile, false},
		{"bogus", 0, true},
	}
	for _, c := range cases {
		got, err := ParseProfile(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseProfile(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseProfile(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseProfile(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
