package paxos

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Profile is a named network-behavior parameter bundle (spec.md §4.3).
type Profile int

const (
	StandardProfile Profile = iota
	ReliableProfile
	LatentProfile
	FailureProfile
)

func (p Profile) String() string {
	switch p {
	case ReliableProfile:
		return "RELIABLE"
	case LatentProfile:
		return "LATENT"
	case FailureProfile:
		return "FAILURE"
	case StandardProfile:
		return "STANDARD"
	default:
		return "UNKNOWN"
	}
}

// ParseProfile parses a profile name case-insensitively (spec.md §6).
func ParseProfile(s string) (Profile, error) {
	switch upper(s) {
	case "RELIABLE":
		return ReliableProfile, nil
	case "LATENT":
		return LatentProfile, nil
	case "FAILURE":
		return FailureProfile, nil
	case "STANDARD":
		return StandardProfile, nil
	default:
		return 0, ErrConfig
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}

// profileParams bundles the three sub-models spec.md §4.3's table names,
// grounded on original_source/simulation/NetworkBehaviorSimulator.java's
// LatencyModel/FailureModel/RecoveryModel.
type profileParams struct {
	baseMS, maxMS, jitterMS time.Duration
	spikeRate               float64
	dropRate                float64
	connFailRate            float64
	avgDownMS               time.Duration
	recoveryMS              time.Duration
	stability               float64
}

var profileTable = map[Profile]profileParams{
	ReliableProfile: {
		baseMS: 0, maxMS: 10 * time.Millisecond, jitterMS: 2 * time.Millisecond,
		spikeRate: 0.00, dropRate: 0.00, connFailRate: 0.00,
		avgDownMS: 0, recoveryMS: 100 * time.Millisecond, stability: 0.99,
	},
	LatentProfile: {
		baseMS: 800 * time.Millisecond, maxMS: 4000 * time.Millisecond, jitterMS: 1200 * time.Millisecond,
		spikeRate: 0.30, dropRate: 0.15, connFailRate: 0.05,
		avgDownMS: 3000 * time.Millisecond, recoveryMS: 2000 * time.Millisecond, stability: 0.60,
	},
	FailureProfile: {
		baseMS: 100 * time.Millisecond, maxMS: 1500 * time.Millisecond, jitterMS: 400 * time.Millisecond,
		spikeRate: 0.20, dropRate: 0.35, connFailRate: 0.15,
		avgDownMS: 5000 * time.Millisecond, recoveryMS: 1500 * time.Millisecond, stability: 0.40,
	},
	StandardProfile: {
		baseMS: 30 * time.Millisecond, maxMS: 200 * time.Millisecond, jitterMS: 80 * time.Millisecond,
		spikeRate: 0.10, dropRate: 0.05, connFailRate: 0.01,
		avgDownMS: 1000 * time.Millisecond, recoveryMS: 500 * time.Millisecond, stability: 0.85,
	},
}

// Condition is the network-behavior model's current mode (spec.md §4.3).
type Condition int

const (
	Normal Condition = iota
	Degraded
	Partitioned
	Offline
	Recovering
)

func (c Condition) String() string {
	switch c {
	case Normal:
		return "NORMAL"
	case Degraded:
		return "DEGRADED"
	case Partitioned:
		return "PARTITIONED"
	case Offline:
		return "OFFLINE"
	case Recovering:
		return "RECOVERING"
	default:
		return "UNKNOWN"
	}
}

// EventKind identifies a network-behavior event (spec.md §4.3).
type EventKind int

const (
	MessageSent EventKind = iota
	MessageDelayed
	MessageDropped
	ConnectionFailed
	ConnectionRecovered
	PartitionStarted
	PartitionEnded
	ConditionChanged
)

func (k EventKind) String() string {
	switch k {
	case MessageSent:
		return "MESSAGE_SENT"
	case MessageDelayed:
		return "MESSAGE_DELAYED"
	case MessageDropped:
		return "MESSAGE_DROPPED"
	case ConnectionFailed:
		return "CONNECTION_FAILED"
	case ConnectionRecovered:
		return "CONNECTION_RECOVERED"
	case PartitionStarted:
		return "PARTITION_STARTED"
	case PartitionEnded:
		return "PARTITION_ENDED"
	case ConditionChanged:
		return "CONDITION_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// Event is one entry of the bounded rolling event log (spec.md §4.3).
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Kind        EventKind `json:"kind"`
	Description string    `json:"description"`
}

// Decision is the outcome of a per-send behavior draw.
type Decision struct {
	Delivered bool
	Latency   time.Duration
	Reason    string
}

// NetworkModel wraps a Transport's Send with latency/loss/partition/offline
// injection driven by a Profile, and publishes a bounded rolling event log
// and counters, per spec.md §4.3. Grounded on
// original_source/simulation/NetworkBehaviorSimulator.java.
type NetworkModel struct {
	memberID string
	rng      *rand.Rand
	rngMu    sync.Mutex

	mu                sync.Mutex
	profile           Profile
	condition         Condition
	priorCondition    Condition
	partitionedPeers  map[string]bool
	active            bool
	improvementActive bool

	events   []Event
	eventsMu sync.Mutex

	totalSent  int64
	totalLost  int64
	totalDelay int64 // nanoseconds, accumulated

	stopTick chan struct{}
	tickOnce sync.Once
}

// NewNetworkModel constructs a NetworkModel starting in profile, seeded
// with seed for deterministic tests (spec.md §9's Randomness design note).
func NewNetworkModel(memberID string, profile Profile, seed int64) *NetworkModel {
	n := &NetworkModel{
		memberID:         memberID,
		rng:              rand.New(rand.NewSource(seed)),
		profile:          profile,
		condition:        Normal,
		partitionedPeers: make(map[string]bool),
		active:           true,
		stopTick:         make(chan struct{}),
	}
	return n
}

func (n *NetworkModel) draw() float64 {
	n.rngMu.Lock()
	defer n.rngMu.Unlock()
	return n.rng.Float64()
}

func (n *NetworkModel) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	n.rngMu.Lock()
	defer n.rngMu.Unlock()
	span := int64(hi - lo)
	return lo + time.Duration(n.rng.Int63n(span+1))
}

func (n *NetworkModel) params() profileParams {
	n.mu.Lock()
	defer n.mu.Unlock()
	return profileTable[n.profile]
}

// StartTicking starts the periodic condition tick (spec.md §4.3) for
// LATENT/FAILURE profiles' spontaneous condition transitions. The tick
// goroutine runs until Stop() is called.
func (n *NetworkModel) StartTicking() {
	go func() {
		ticker := time.NewTicker(ConditionTick)
		defer ticker.Stop()
		for {
			select {
			case <-n.stopTick:
				return
			case <-ticker.C:
				n.tick()
			}
		}
	}()
}

// tick performs a spontaneous condition draw for LATENT/FAILURE profiles.
func (n *NetworkModel) tick() {
	n.mu.Lock()
	profile := n.profile
	condition := n.condition
	n.mu.Unlock()
	if profile != LatentProfile && profile != FailureProfile {
		return
	}
	if condition != Normal {
		return
	}
	params := profileTable[profile]
	if n.draw() < params.dropRate/4 {
		n.setCondition(Degraded)
	}
}

// Stop halts the periodic tick goroutine.
func (n *NetworkModel) Stop() {
	n.tickOnce.Do(func() { close(n.stopTick) })
	n.mu.Lock()
	n.active = false
	n.mu.Unlock()
}

// SetProfile changes the active profile immediately (spec.md §4.3's
// "Dynamic configuration" rule), including LATENT's 30%-chance temporary
// improvement window.
func (n *NetworkModel) SetProfile(p Profile) {
	n.mu.Lock()
	old := n.profile
	n.profile = p
	n.mu.Unlock()
	n.recordEvent(ConditionChanged, "profile changed from "+old.String()+" to "+p.String())
	if p == LatentProfile && n.draw() < 0.30 {
		n.simulateTemporaryImprovement(10 * time.Second)
	}
}

// simulateTemporaryImprovement pins the condition to NORMAL for duration,
// then restores whatever condition preceded it. Grounded on
// NetworkBehaviorSimulator.simulateTemporaryImprovement.
func (n *NetworkModel) simulateTemporaryImprovement(duration time.Duration) {
	n.mu.Lock()
	if n.improvementActive {
		n.mu.Unlock()
		return
	}
	n.improvementActive = true
	n.priorCondition = n.condition
	n.condition = Normal
	n.mu.Unlock()
	time.AfterFunc(duration, func() {
		n.mu.Lock()
		n.condition = n.priorCondition
		n.improvementActive = false
		n.mu.Unlock()
	})
}

// SimulatePartition partitions this peer from peers for duration (spec.md
// §4.3).
func (n *NetworkModel) SimulatePartition(peers []string, duration time.Duration) {
	n.mu.Lock()
	for _, p := range peers {
		n.partitionedPeers[p] = true
	}
	n.condition = Partitioned
	n.mu.Unlock()
	n.recordEvent(PartitionStarted, "partitioned from peers")
	time.AfterFunc(duration, func() {
		n.mu.Lock()
		for _, p := range peers {
			delete(n.partitionedPeers, p)
		}
		if len(n.partitionedPeers) == 0 && n.condition == Partitioned {
			n.condition = Normal
		}
		n.mu.Unlock()
		n.recordEvent(PartitionEnded, "partition with peers ended")
	})
}

// SimulateOffline takes this peer offline for duration, then hands it to
// recoverFromDowntime, which returns it to NORMAL or DEGRADED and forces
// NORMAL after the profile's recovery period (spec.md §4.3).
func (n *NetworkModel) SimulateOffline(duration time.Duration) {
	n.setCondition(Offline)
	n.recordEvent(ConditionChanged, "going offline")
	time.AfterFunc(duration, func() {
		n.recoverFromDowntime()
	})
}

// recoverFromDowntime implements spec.md §4.3's "After any downtime, a
// draw against stability decides whether the peer returns to NORMAL or
// DEGRADED; a second scheduled tick of length recovery_ms then forces
// NORMAL."
func (n *NetworkModel) recoverFromDowntime() {
	params := n.params()
	n.recordEvent(ConnectionRecovered, "coming back online")
	if n.draw() < params.stability {
		n.setCondition(Normal)
	} else {
		n.setCondition(Degraded)
	}
	time.AfterFunc(params.recoveryMS, func() {
		n.setCondition(Normal)
		n.recordEvent(ConditionChanged, "fully recovered")
	})
}

func (n *NetworkModel) setCondition(c Condition) {
	n.mu.Lock()
	n.condition = c
	n.mu.Unlock()
}

// conditionMultipliers returns the (dropMult, latencyMult) pair spec.md
// §4.3's "Condition multipliers" table specifies. OFFLINE is handled by the
// caller (always drop) before this is consulted.
func conditionMultipliers(c Condition) (drop, latency float64) {
	switch c {
	case Degraded:
		return 3.0, 2.0
	case Partitioned:
		return 5.0, 5.0
	case Recovering:
		return 2.0, 1.5
	default:
		return 1.0, 1.0
	}
}

// Evaluate runs the per-send decision spec.md §4.3 orders precisely:
// inactive -> partitioned -> connection-failure draw -> drop draw ->
// latency. size is the outbound message's byte length, feeding the latency
// formula's size/100 term.
func (n *NetworkModel) Evaluate(target string, size int) Decision {
	n.mu.Lock()
	active := n.active
	condition := n.condition
	partitioned := n.partitionedPeers[target]
	n.mu.Unlock()

	atomic.AddInt64(&n.totalSent, 1)

	if !active {
		n.drop("inactive")
		n.recordEvent(MessageDropped, "message to "+target+" dropped: simulator inactive")
		return Decision{Delivered: false, Reason: "inactive"}
	}
	if partitioned {
		n.drop("partition")
		n.recordEvent(MessageDropped, "message to "+target+" dropped due to partition")
		return Decision{Delivered: false, Reason: "partition"}
	}
	if condition == Offline {
		n.drop("offline")
		n.recordEvent(MessageDropped, "message to "+target+" dropped: offline")
		return Decision{Delivered: false, Reason: "offline"}
	}

	params := n.params()
	dropMult, latencyMult := conditionMultipliers(condition)

	if n.draw() < params.connFailRate*dropMult {
		down := params.avgDownMS + n.uniform(0, params.avgDownMS)
		n.setCondition(Offline)
		n.recordEvent(ConnectionFailed, "connection failed to "+target)
		time.AfterFunc(down, func() { n.recoverFromDowntime() })
		n.drop("connection failure")
		return Decision{Delivered: false, Reason: "connection failure"}
	}

	if n.draw() < params.dropRate*dropMult {
		n.drop("message dropped")
		n.recordEvent(MessageDropped, "message to "+target+" dropped")
		return Decision{Delivered: false, Reason: "message dropped"}
	}

	base := params.baseMS
	if n.draw() < params.spikeRate {
		base = n.uniform(params.baseMS, params.maxMS)
	}
	jitter := n.uniform(-params.jitterMS, params.jitterMS)
	latency := base + jitter + time.Duration(size/100)*time.Millisecond
	latency = time.Duration(float64(latency) * latencyMult)
	if latency < 0 {
		latency = 0
	}

	atomic.AddInt64(&n.totalDelay, int64(latency))
	if latency > 0 {
		n.recordEvent(MessageDelayed, "message to "+target+" delayed by "+latency.String())
	} else {
		n.recordEvent(MessageSent, "message sent to "+target)
	}
	return Decision{Delivered: true, Latency: latency, Reason: "delivered"}
}

func (n *NetworkModel) drop(reason string) {
	atomic.AddInt64(&n.totalLost, 1)
}

func (n *NetworkModel) recordEvent(kind EventKind, description string) {
	n.eventsMu.Lock()
	defer n.eventsMu.Unlock()
	n.events = append(n.events, Event{Timestamp: time.Now(), Kind: kind, Description: description})
	n.trimEventsLocked()
}

// trimEventsLocked enforces the cap-by-size-or-age rule of spec.md §4.3.
// Callers must hold eventsMu.
func (n *NetworkModel) trimEventsLocked() {
	cutoff := time.Now().Add(-EventBufferAge)
	start := 0
	for start < len(n.events) && n.events[start].Timestamp.Before(cutoff) {
		start++
	}
	if start > 0 {
		n.events = append([]Event{}, n.events[start:]...)
	}
	if len(n.events) > EventBufferCap {
		n.events = append([]Event{}, n.events[len(n.events)-EventBufferCap:]...)
	}
}

// Events returns up to count most recent events, newest last. count<=0
// means all retained events.
func (n *NetworkModel) Events(count int) []Event {
	n.eventsMu.Lock()
	defer n.eventsMu.Unlock()
	if count <= 0 || count > len(n.events) {
		count = len(n.events)
	}
	out := make([]Event, count)
	copy(out, n.events[len(n.events)-count:])
	return out
}

// Stats is a JSON-marshalable snapshot of the network model's counters,
// grounded on the teacher's tagged Msg struct (dyv-paxos/msg.go).
type Stats struct {
	Profile          string  `json:"profile"`
	Condition        string  `json:"condition"`
	TotalSent        int64   `json:"total_sent"`
	TotalLost        int64   `json:"total_lost"`
	LossRate         float64 `json:"loss_rate"`
	AverageDelayMS   float64 `json:"average_delay_ms"`
	PartitionedPeers int     `json:"partitioned_peers"`
	RecentEvents     int     `json:"recent_events"`
}

// Snapshot returns the current counters and condition (spec.md §4.3's
// "Counters" plus original_source's getNetworkStatistics).
func (n *NetworkModel) Snapshot() Stats {
	sent := atomic.LoadInt64(&n.totalSent)
	lost := atomic.LoadInt64(&n.totalLost)
	delay := atomic.LoadInt64(&n.totalDelay)
	var lossRate, avgDelay float64
	if sent > 0 {
		lossRate = float64(lost) / float64(sent)
		avgDelay = float64(delay) / float64(sent) / float64(time.Millisecond)
	}
	n.mu.Lock()
	profile := n.profile.String()
	condition := n.condition.String()
	partitioned := len(n.partitionedPeers)
	n.mu.Unlock()
	n.eventsMu.Lock()
	recent := len(n.events)
	n.eventsMu.Unlock()
	return Stats{
		Profile:          profile,
		Condition:        condition,
		TotalSent:        sent,
		TotalLost:        lost,
		LossRate:         lossRate,
		AverageDelayMS:   avgDelay,
		PartitionedPeers: partitioned,
		RecentEvents:     recent,
	}
}
