// Command paxoscouncil starts one council member and drives it from a
// line-oriented REPL. Grounded on dyv-paxos/demo/start_paxos/start_paxos.go
// (flat main importing the root package, os.Args-driven startup), extended
// with the flag package and a bufio.Scanner command loop for the richer CLI
// surface spec.md §6 describes.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rtirado/paxoscouncil"
)

func main() {
	id := flag.String("id", "", "this member's peer id, e.g. M1")
	membershipPath := flag.String("membership", "", "path to the membership file")
	verbose := flag.Bool("verbose", false, "log protocol-level chatter")
	seed := flag.Int64("seed", 1, "RNG seed for this member's network model and conflict resolver")
	flag.Parse()

	if *id == "" || *membershipPath == "" {
		log.Fatalln("usage: paxoscouncil -id M1 -membership members.txt [-verbose] [-seed 1]")
	}

	f, err := os.Open(*membershipPath)
	if err != nil {
		log.Fatalf("opening membership file: %v", err)
	}
	directory, err := paxos.LoadDirectory(f)
	f.Close()
	if err != nil {
		log.Fatalf("loading membership: %v", err)
	}

	member, err := paxos.BuildMember(*id, directory, *verbose, *seed)
	if err != nil {
		log.Fatalf("building member: %v", err)
	}
	if err := member.Start(); err != nil {
		log.Fatalf("starting member: %v", err)
	}
	defer member.Stop()

	fmt.Printf("%s listening, %d peers known, quorum %d\n", member.ID(), directory.Size(), directory.Quorum())
	repl(member, directory)
}

func repl(member *paxos.Member, directory *paxos.Directory) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("commands: propose <value> | profile <name> | scenario <name> | partition <seconds> <peer...> | offline <seconds> | stats | metrics | events [n] | reset | quit")
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "propose":
			handlePropose(member, fields)
		case "profile":
			handleProfile(member, fields)
		case "scenario":
			handleScenario(member, fields, directory)
		case "partition":
			handlePartition(member, fields)
		case "offline":
			handleOffline(member, fields)
		case "stats":
			printStats(member)
		case "metrics":
			printMetrics(member)
		case "events":
			printEvents(member, fields)
		case "reset":
			member.Reset()
			fmt.Println("proposer state reset")
		case "quit", "exit":
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func handlePropose(member *paxos.Member, fields []string) {
	if len(fields) < 2 {
		fmt.Println("usage: propose <value>")
		return
	}
	value := strings.Join(fields[1:], " ")
	if err := member.Propose(value); err != nil {
		fmt.Printf("propose failed: %v\n", err)
		return
	}
	fmt.Printf("proposing %q\n", value)
}

func handleProfile(member *paxos.Member, fields []string) {
	if len(fields) != 2 {
		fmt.Println("usage: profile <RELIABLE|LATENT|FAILURE|STANDARD>")
		return
	}
	profile, err := paxos.ParseProfile(fields[1])
	if err != nil {
		fmt.Println(err)
		return
	}
	member.Network().SetProfile(profile)
	fmt.Printf("profile set to %s\n", profile)
}

func handleScenario(member *paxos.Member, fields []string, directory *paxos.Directory) {
	if len(fields) != 2 {
		fmt.Println("usage: scenario <ideal|high_latency|network_partition|member_failures|recovery_test|stress_test>")
		return
	}
	// A single-member CLI can only apply the parts of a scenario that
	// address itself; profile-only scenarios (ideal, high_latency,
	// stress_test) are still fully meaningful here.
	single := map[string]*paxos.Member{member.ID(): member}
	if err := paxos.ApplyScenario(fields[1], single); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("scenario %q applied to %s\n", fields[1], member.ID())
}

func handlePartition(member *paxos.Member, fields []string) {
	if len(fields) < 3 {
		fmt.Println("usage: partition <seconds> <peer...>")
		return
	}
	seconds, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Println("invalid seconds:", err)
		return
	}
	peers := fields[2:]
	member.Network().SimulatePartition(peers, time.Duration(seconds)*time.Second)
	fmt.Printf("partitioned from %v for %ds\n", peers, seconds)
}

func handleOffline(member *paxos.Member, fields []string) {
	if len(fields) != 2 {
		fmt.Println("usage: offline <seconds>")
		return
	}
	seconds, err := strconv.Atoi(fields[1])
	if err != nil {
		fmt.Println("invalid seconds:", err)
		return
	}
	member.Network().SimulateOffline(time.Duration(seconds) * time.Second)
	fmt.Printf("offline for %ds\n", seconds)
}

func printStats(member *paxos.Member) {
	stats := member.Network().Snapshot()
	fmt.Printf("profile=%s condition=%s sent=%d lost=%d loss_rate=%.3f avg_delay_ms=%.1f partitioned_peers=%d\n",
		stats.Profile, stats.Condition, stats.TotalSent, stats.TotalLost, stats.LossRate, stats.AverageDelayMS, stats.PartitionedPeers)
	if value, ok := member.LearnedValue(); ok {
		fmt.Printf("learned value: %q\n", value)
	} else {
		fmt.Println("no value learned yet")
	}
}

// printMetrics dumps the network model's snapshot as JSON, distinct from
// stats' human-readable line (spec.md §6, SPEC_FULL.md §10).
func printMetrics(member *paxos.Member) {
	encoded, err := json.Marshal(member.Network().Snapshot())
	if err != nil {
		fmt.Println("marshaling metrics:", err)
		return
	}
	fmt.Println(string(encoded))
}

func printEvents(member *paxos.Member, fields []string) {
	count := 20
	if len(fields) == 2 {
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Println("invalid count:", err)
			return
		}
		count = n
	}
	for _, event := range member.Network().Events(count) {
		fmt.Printf("%s %s %s\n", event.Timestamp.Format("15:04:05.000"), event.Kind, event.Description)
	}
}
