package paxos

import (
	"sync"
	"time"
)

// Member is the participant façade: it drives protocol phases, integrates
// the codec, transport, network model, and state manager, and applies the
// conflict resolver (spec.md §4.5). Grounded on dyv-paxos/agent.go's Agent
// ("collapses the multiple roles in Paxos into a single role... Proposer,
// Acceptor, and Learner"), collapsed further to single-decree scope: no
// leader election, no replicated log, no client-application RPC surface
// (those are the out-of-scope enhanced/*CouncilMember.java extensions;
// see DESIGN.md).
type Member struct {
	id        string
	directory *Directory
	transport *Transport
	network   *NetworkModel
	state     *StateManager
	resolver  *ConflictResolver
	logger    *Logger
	ordinal   int64

	mu           sync.Mutex
	counter      int64
	stopped      bool
	pendingRetry map[int]*time.Timer
	retrySeq     int

	done chan struct{}
	wg   sync.WaitGroup
}

// NewMember wires together a full participant from its components. seed
// drives every stochastic decision this member's resolver and network
// model make (spec.md §9's Randomness design note).
func NewMember(id string, directory *Directory, logger *Logger, profile Profile, seed int64) (*Member, error) {
	ordinal, err := PeerOrdinal(id)
	if err != nil {
		return nil, err
	}
	transport := NewTransport(id, directory, logger)
	network := NewNetworkModel(id, profile, seed)
	m := &Member{
		id:           id,
		directory:    directory,
		transport:    transport,
		network:      network,
		state:        NewStateManager(),
		resolver:     NewConflictResolver(id, seed+1),
		logger:       logger,
		ordinal:      ordinal,
		pendingRetry: make(map[int]*time.Timer),
		done:         make(chan struct{}),
	}
	return m, nil
}

// Start begins listening on the transport, starts the network model's
// periodic condition tick, and starts the dispatch loop that drains the
// inbound queue (spec.md §5).
func (m *Member) Start() error {
	if err := m.transport.Listen(); err != nil {
		return err
	}
	m.network.StartTicking()
	m.wg.Add(1)
	go m.dispatchLoop()
	return nil
}

// Stop cooperatively signals all goroutines, awaits them, and releases the
// transport and timers (spec.md §5).
func (m *Member) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	for _, t := range m.pendingRetry {
		t.Stop()
	}
	m.mu.Unlock()

	close(m.done)
	m.network.Stop()
	m.transport.Close()

	done := make(chan struct{})
	go func() { m.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(StopGrace):
		m.logger.Warnf("stop: goroutines did not exit within grace period")
	}
}

// Reset resets proposer state only, via the active instance's Reset
// (spec.md §4.5).
func (m *Member) Reset() {
	m.state.Current().Reset()
}

// HasLearned reports whether this member has learned a value.
func (m *Member) HasLearned() bool {
	return m.state.Current().HasLearned()
}

// LearnedValue returns the learned value, if any.
func (m *Member) LearnedValue() (string, bool) {
	return m.state.Current().LearnedValue()
}

// Network exposes the network-behavior model for scenario/REPL control
// (profile changes, partitions, offline periods, stats).
func (m *Member) Network() *NetworkModel {
	return m.network
}

// ID returns this member's peer identifier.
func (m *Member) ID() string {
	return m.id
}

// nextProposalNumber allocates a proposal number per spec.md §4.5:
// counter = local.fetch_add(1); if recent_conflicts>0 then counter +=
// U[1,10].
func (m *Member) nextProposalNumber() ProposalNumber {
	m.mu.Lock()
	m.counter++
	counter := m.counter
	m.mu.Unlock()
	if m.resolver.ConflictCount() > 0 {
		counter += m.resolver.JitterCounterBump()
		m.mu.Lock()
		if counter > m.counter {
			m.counter = counter
		}
		m.mu.Unlock()
	}
	return NewProposalNumber(counter, m.ordinal)
}

// isStopped reports whether Stop has already been called.
func (m *Member) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// Propose attempts to get value chosen, per spec.md §4.5. It is rejected
// if the member has been stopped, if already decided, or if an active
// proposal exists. Otherwise it allocates a proposal number, registers the
// attempt with the conflict resolver, and acts on its verdict: a yield or
// abort rejects the call, a backoff schedules a retry of Propose and
// returns ErrBackingOff, and a continue starts Phase 1 and broadcasts
// PREPARE.
func (m *Member) Propose(value string) error {
	if m.isStopped() {
		return ErrStopped
	}
	inst := m.state.Current()
	if inst.HasLearned() {
		return ErrAlreadyDecided
	}
	if p := inst.Phase(); p == Phase1 || p == Phase2 {
		return ErrProposalInProgress
	}

	number := m.nextProposalNumber()
	m.resolver.Observe(number, m.id)
	switch m.resolver.Evaluate(number) {
	case Yield:
		return ErrYielded
	case Abort:
		return ErrAborted
	case Backoff:
		delay := m.resolver.NextBackoff()
		m.scheduleRetry(value, delay)
		return ErrBackingOff
	}

	return m.beginAttempt(inst, number, value)
}

func (m *Member) beginAttempt(inst *Instance, number ProposalNumber, value string) error {
	err := inst.StartPhase1(number, value, func(gen int) {
		inst.ExpireTimeout(gen)
	})
	if err != nil {
		return err
	}
	m.logger.Debugf("starting phase 1 with proposal %s for value %q", number, value)
	m.broadcast(Prepare(m.id, number))
	return nil
}

func (m *Member) scheduleRetry(value string, delay time.Duration) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	id := m.retrySeq
	m.retrySeq++
	timer := time.AfterFunc(delay, func() {
		m.mu.Lock()
		delete(m.pendingRetry, id)
		stopped := m.stopped
		m.mu.Unlock()
		if stopped {
			return
		}
		if err := m.Propose(value); err != nil {
			m.logger.Debugf("retry of proposal %q failed: %v", value, err)
		}
	})
	m.pendingRetry[id] = timer
	m.mu.Unlock()
}

// send applies the network-behavior model before handing off to the
// transport, sleeping for the simulated latency (spec.md §4.3, §5:
// "Senders block briefly on the simulated latency").
func (m *Member) send(peer string, msg Message) {
	decision := m.network.Evaluate(peer, len(msg.Encode()))
	if !decision.Delivered {
		m.logger.Debugf("send to %s suppressed: %s", peer, decision.Reason)
		return
	}
	if decision.Latency > 0 {
		time.Sleep(decision.Latency)
	}
	if err := m.transport.Send(peer, msg); err != nil {
		m.logger.Debugf("send to %s failed: %v", peer, err)
	}
}

func (m *Member) broadcast(msg Message) {
	for _, peer := range m.directory.PeersExcept(m.id) {
		m.send(peer, msg)
	}
}

// quorum returns this directory's majority size.
func (m *Member) quorum() int {
	return m.directory.Quorum()
}

// dispatchLoop is the single dispatch goroutine draining the inbound queue
// in FIFO order and invoking the state manager (spec.md §5).
func (m *Member) dispatchLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case in, ok := <-m.transport.Inbound():
			if !ok {
				return
			}
			m.onInbound(in)
		}
	}
}

// onInbound dispatches one decoded message by kind to the state manager,
// then emits outbound messages as spec.md §4.5 requires.
func (m *Member) onInbound(in Inbound) {
	msg := in.Message
	if msg.Sender != "" && m.directory.Contains(msg.Sender) {
		m.observeForeignAttempt(msg)
	}
	inst := m.state.Current()
	switch msg.Kind {
	case PREPARE:
		m.handlePrepare(inst, msg)
	case PROMISE:
		m.handlePromise(inst, msg)
	case ACCEPT_REQUEST:
		m.handleAcceptRequest(inst, msg)
	case ACCEPTED:
		m.handleAccepted(inst, msg)
	case LEARN:
		inst.OnLearn(msg.Number, msg.Value)
	default:
		m.logger.Warnf("dropping message of unknown kind from %s", msg.Sender)
	}
}

// observeForeignAttempt feeds the conflict resolver from inbound
// PREPARE/ACCEPT_REQUEST traffic (spec.md §4.5's ConflictResolver design:
// "own and foreign, inferred from observed PREPARE/ACCEPT_REQUEST
// messages").
func (m *Member) observeForeignAttempt(msg Message) {
	if msg.Kind != PREPARE && msg.Kind != ACCEPT_REQUEST {
		return
	}
	if msg.Sender == m.id {
		return
	}
	m.resolver.Observe(msg.Number, msg.Sender)
}

func (m *Member) handlePrepare(inst *Instance, msg Message) {
	result := inst.OnPrepare(msg.Number)
	if !result.Granted {
		return
	}
	m.send(msg.Sender, Promise(m.id, msg.Number, result.Prior))
}

func (m *Member) handlePromise(inst *Instance, msg Message) {
	var priorNumber ProposalNumber
	var priorValue string
	if msg.HasPrior {
		priorNumber = msg.PriorNumber
		priorValue = msg.PriorValue
	}
	result, err := inst.OnPromise(msg.Sender, priorNumber, priorValue, msg.HasPrior, m.quorum())
	if err != nil {
		return
	}
	if result.ReadyForPhase2 {
		m.logger.Debugf("quorum of promises reached for %s, moving to phase 2", result.Number)
		m.broadcast(AcceptRequest(m.id, result.Number, result.Value))
	}
}

func (m *Member) handleAcceptRequest(inst *Instance, msg Message) {
	granted := inst.OnAcceptRequest(msg.Number, msg.Value)
	if !granted {
		return
	}
	accepted := AcceptedMsg(m.id, msg.Number, msg.Value)
	// The acceptor unicasts ACCEPTED back to the proposer and also
	// broadcasts it to all peers, doubling as a learner notification
	// (spec.md §9's "Message 'learner broadcast'" design note).
	m.send(msg.Sender, accepted)
	for _, peer := range m.directory.PeersExcept(m.id) {
		if peer == msg.Sender {
			continue
		}
		m.send(peer, accepted)
	}
	if _, err := inst.OnAcceptedObserved(msg.Number, msg.Value, m.id, m.quorum()); err != nil {
		m.logger.Warnf("invariant violation recording own acceptance: %v", err)
	}
}

func (m *Member) handleAccepted(inst *Instance, msg Message) {
	decided, err := inst.OnAcceptedObserved(msg.Number, msg.Value, msg.Sender, m.quorum())
	if err != nil {
		m.logger.Warnf("dropping ACCEPTED from %s: value mismatch for %s", msg.Sender, msg.Number)
		return
	}
	if decided {
		m.logger.Announce(msg.Value)
		m.resolver.ResetBackoff()
		m.broadcast(LearnMsg(m.id, msg.Number, msg.Value))
		return
	}

	// Also drive the proposer-side quorum count when this ACCEPTED is the
	// unicast response to our own ACCEPT_REQUEST.
	inst.mu.Lock()
	ours := msg.Number.Equal(inst.proposer.currentNumber)
	inst.mu.Unlock()
	if !ours {
		return
	}
	result, err := inst.OnAccepted(msg.Sender, m.quorum())
	if err != nil {
		return
	}
	if result.Decided {
		m.logger.Announce(result.Value)
		m.resolver.ResetBackoff()
		m.broadcast(LearnMsg(m.id, result.Number, result.Value))
	}
}
