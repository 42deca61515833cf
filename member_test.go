package paxos

import (
	"fmt"
	"io/ioutil"
	"log"
	"testing"
	"time"
)

func testDirectory(t *testing.T, basePort int, n int) *Directory {
	t.Helper()
	entries := make([]MemberInfo, 0, n)
	for i := 1; i <= n; i++ {
		entries = append(entries, MemberInfo{
			ID:      fmt.Sprintf("M%d", i),
			Host:    "127.0.0.1",
			Port:    basePort + i,
			Profile: ReliableProfile,
		})
	}
	directory, err := NewDirectory(entries)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	return directory
}

func waitForConsensus(members []*Member, timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, m := range members {
			if value, ok := m.LearnedValue(); ok {
				return value, true
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return "", false
}

func TestThreeMembersReachConsensus(t *testing.T) {
	log.SetOutput(ioutil.Discard)
	directory := testDirectory(t, 21800, 3)
	members, err := BuildCouncil(directory, false, 1)
	if err != nil {
		t.Fatalf("BuildCouncil: %v", err)
	}
	defer func() {
		for _, m := range members {
			m.Stop()
		}
	}()

	if err := members[0].Propose("M2"); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	value, ok := waitForConsensus(members, 5*time.Second)
	if !ok {
		t.Fatal("consensus not reached within timeout")
	}
	if value != "M2" {
		t.Errorf("learned value = %q, want %q", value, "M2")
	}
	for _, m := range members {
		if !m.HasLearned() {
			t.Errorf("member %s never learned a value", m.ID())
			continue
		}
		if v, _ := m.LearnedValue(); v != "M2" {
			t.Errorf("member %s learned %q, want %q", m.ID(), v, "M2")
		}
	}
}

func TestFiveMembersSurviveOneFailure(t *testing.T) {
	log.SetOutput(ioutil.Discard)
	directory := testDirectory(t, 21900, 5)
	members, err := BuildCouncil(directory, false, 2)
	if err != nil {
		t.Fatalf("BuildCouncil: %v", err)
	}
	defer func() {
		for _, m := range members {
			m.Stop()
		}
	}()

	// Take one member down before the proposal starts; the remaining four
	// still form a quorum of 3.
	members[4].Stop()
	remaining := members[:4]

	if err := remaining[0].Propose("M3"); err != nil {
		t.Fatalf("Propose: %v", err)
	}

	value, ok := waitForConsensus(remaining, 5*time.Second)
	if !ok {
		t.Fatal("consensus not reached within timeout despite quorum being available")
	}
	if value != "M3" {
		t.Errorf("learned value = %q, want %q", value, "M3")
	}
}

func TestProposeRejectedWhileAlreadyDecided(t *testing.T) {
	log.SetOutput(ioutil.Discard)
	directory := testDirectory(t, 22000, 3)
	members, err := BuildCouncil(directory, false, 3)
	if err != nil {
		t.Fatalf("BuildCouncil: %v", err)
	}
	defer func() {
		for _, m := range members {
			m.Stop()
		}
	}()

	if err := members[0].Propose("M1"); err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if _, ok := waitForConsensus(members, 5*time.Second); !ok {
		t.Fatal("consensus not reached within timeout")
	}

	if err := members[0].Propose("M2"); err != ErrAlreadyDecided {
		t.Errorf("second Propose on a decided member = %v, want ErrAlreadyDecided", err)
	}
}
