package paxos

import (
	"fmt"
	"strings"
)

// Kind identifies one of the five Paxos message kinds spec.md §3 defines.
type Kind int

const (
	PREPARE Kind = iota
	PROMISE
	ACCEPT_REQUEST
	ACCEPTED
	LEARN
)

func (k Kind) String() string {
	switch k {
	case PREPARE:
		return "PREPARE"
	case PROMISE:
		return "PROMISE"
	case ACCEPT_REQUEST:
		return "ACCEPT_REQUEST"
	case ACCEPTED:
		return "ACCEPTED"
	case LEARN:
		return "LEARN"
	default:
		return "UNKNOWN"
	}
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "PREPARE":
		return PREPARE, nil
	case "PROMISE":
		return PROMISE, nil
	case "ACCEPT_REQUEST":
		return ACCEPT_REQUEST, nil
	case "ACCEPTED":
		return ACCEPTED, nil
	case "LEARN":
		return LEARN, nil
	default:
		return 0, fmt.Errorf("%w: unknown message kind %q", ErrFraming, s)
	}
}

// Message is a tagged record for one of the five Paxos message kinds.
// Fields not meaningful for a given Kind are left at their zero value; see
// spec.md §3's invariant on which kinds carry which fields.
type Message struct {
	Kind    Kind
	Sender  string
	Number  ProposalNumber
	Value   string
	HasValue bool

	// PriorNumber/PriorValue are set only on PROMISE messages that carry
	// the acceptor's prior acceptance (spec.md §3).
	PriorNumber   ProposalNumber
	PriorValue    string
	HasPrior      bool
}

// Encode serializes m to its wire form: colon-delimited
// KIND:SENDER:NUMBER:VALUE[:PRIOR_NUMBER:PRIOR_VALUE] (spec.md §4.1).
// Callers guarantee Sender and Value contain no colons; Encode does not
// re-interpret embedded delimiters.
func (m Message) Encode() string {
	value := ""
	if m.HasValue {
		value = m.Value
	}
	base := strings.Join([]string{m.Kind.String(), m.Sender, m.Number.String(), value}, ":")
	if !m.HasPrior {
		return base
	}
	return strings.Join([]string{base, m.PriorNumber.String(), m.PriorValue}, ":")
}

// Decode parses the wire form Encode produces. Malformed lines (not 4 or 6
// fields, unknown kind, unparseable proposal number) return an error
// wrapping ErrFraming; callers log and drop the line per spec.md §4.1.
func Decode(line string) (Message, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 4 && len(fields) != 6 {
		return Message{}, fmt.Errorf("%w: expected 4 or 6 fields, got %d in %q", ErrFraming, len(fields), line)
	}
	kind, err := parseKind(fields[0])
	if err != nil {
		return Message{}, err
	}
	number, err := ParseProposalNumber(fields[2])
	if err != nil {
		return Message{}, err
	}
	m := Message{
		Kind:   kind,
		Sender: fields[1],
		Number: number,
	}
	if fields[3] != "" {
		m.Value = fields[3]
		m.HasValue = true
	}
	if len(fields) == 6 {
		priorNumber, err := ParseProposalNumber(fields[4])
		if err != nil {
			return Message{}, err
		}
		if priorNumber.HasValue() {
			m.PriorNumber = priorNumber
			m.PriorValue = fields[5]
			m.HasPrior = true
		}
	}
	return m, nil
}

// Prepare builds a PREPARE message.
func Prepare(sender string, number ProposalNumber) Message {
	return Message{Kind: PREPARE, Sender: sender, Number: number}
}

// Promise builds a PROMISE message, optionally carrying a prior acceptance.
func Promise(sender string, number ProposalNumber, prior *AcceptedProposal) Message {
	m := Message{Kind: PROMISE, Sender: sender, Number: number}
	if prior != nil {
		m.PriorNumber = prior.Number
		m.PriorValue = prior.Value
		m.HasPrior = true
	}
	return m
}

// AcceptRequest builds an ACCEPT_REQUEST message.
func AcceptRequest(sender string, number ProposalNumber, value string) Message {
	return Message{Kind: ACCEPT_REQUEST, Sender: sender, Number: number, Value: value, HasValue: true}
}

// AcceptedMsg builds an ACCEPTED message.
func AcceptedMsg(sender string, number ProposalNumber, value string) Message {
	return Message{Kind: ACCEPTED, Sender: sender, Number: number, Value: value, HasValue: true}
}

// LearnMsg builds a LEARN message.
func LearnMsg(sender string, number ProposalNumber, value string) Message {
	return Message{Kind: LEARN, Sender: sender, Number: number, Value: value, HasValue: true}
}

// AcceptedProposal pairs a proposal number with the value accepted at it;
// used to carry an acceptor's prior acceptance in a PROMISE.
type AcceptedProposal struct {
	Number ProposalNumber
	Value  string
}
