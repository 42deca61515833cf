package paxos

import (
	"strings"
	"testing"
)

func TestLoadDirectoryParsesMembershipFile(t *testing.T) {
	input := strings.NewReader(`
# Adelaide Suburbs Council membership
M1,localhost,9001,RELIABLE
M2,localhost,9002,LATENT
M3,localhost,9003

`)
	directory, err := LoadDirectory(input)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if got := directory.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3", got)
	}
	m1, ok := directory.Lookup("M1")
	if !ok || m1.Profile != ReliableProfile {
		t.Errorf("M1 = %+v, ok=%v, want RELIABLE profile", m1, ok)
	}
	m3, ok := directory.Lookup("M3")
	if !ok || m3.Profile != StandardProfile {
		t.Errorf("M3 = %+v, ok=%v, want default STANDARD profile", m3, ok)
	}
	if got := directory.Quorum(); got != 2 {
		t.Errorf("Quorum() = %d, want 2", got)
	}
}

func TestNewDirectoryRejectsTooFewMembers(t *testing.T) {
	_, err := NewDirectory([]MemberInfo{
		{ID: "M1", Host: "localhost", Port: 9001},
		{ID: "M2", Host: "localhost", Port: 9002},
	})
	if err == nil {
		t.Fatal("expected error with fewer than 3 members")
	}
}

func TestNewDirectoryRejectsDuplicatePorts(t *testing.T) {
	_, err := NewDirectory([]MemberInfo{
		{ID: "M1", Host: "localhost", Port: 9001},
		{ID: "M2", Host: "localhost", Port: 9001},
		{ID: "M3", Host: "localhost", Port: 9003},
	})
	if err == nil {
		t.Fatal("expected error with duplicate ports")
	}
}

func TestNewDirectoryRejectsMalformedPeerID(t *testing.T) {
	_, err := NewDirectory([]MemberInfo{
		{ID: "node1", Host: "localhost", Port: 9001},
		{ID: "M2", Host: "localhost", Port: 9002},
		{ID: "M3", Host: "localhost", Port: 9003},
	})
	if err == nil {
		t.Fatal("expected error with a peer id not matching M<positive int>")
	}
}

func TestPeersExceptExcludesSelf(t *testing.T) {
	directory := testDirectory(t, 23000, 4)
	peers := directory.PeersExcept("M2")
	for _, p := range peers {
		if p == "M2" {
			t.Fatalf("PeersExcept(M2) should not contain M2, got %v", peers)
		}
	}
	if len(peers) != 3 {
		t.Errorf("len(PeersExcept) = %d, want 3", len(peers))
	}
}
