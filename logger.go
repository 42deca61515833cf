package paxos

import (
	"fmt"
	"log"
	"os"
)

// Logger is a thin per-peer wrapper over the standard log package,
// grounded on original_source/util/PaxosLogger.java: every line is
// prefixed with the owning peer's identity, and a verbose flag gates
// low-level protocol chatter without adding a structured logging
// dependency the retrieved corpus never reaches for (see SPEC_FULL.md §9).
type Logger struct {
	prefix  string
	verbose bool
	std     *log.Logger
}

// NewLogger builds a Logger for peerID. Initialize once per member at
// construction time and never mutate it afterward, per spec.md §9's
// "Shared global state" design note.
func NewLogger(peerID string, verbose bool) *Logger {
	return &Logger{
		prefix:  "[" + peerID + "] ",
		verbose: verbose,
		std:     log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile),
	}
}

// Infof logs at normal verbosity.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.std.Output(2, l.prefix+fmt.Sprintf(format, args...))
}

// Debugf logs only when the logger was constructed with verbose=true.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.std.Output(2, l.prefix+"DEBUG "+fmt.Sprintf(format, args...))
}

// Warnf logs an internal anomaly (spec.md §7: invariant violations, dropped
// framing errors).
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.std.Output(2, l.prefix+"WARN "+fmt.Sprintf(format, args...))
}

// Announce logs a decision announcement using the original's
// CONSENSUS_PREFIX/COUNCIL_PRESIDENT_SUFFIX vocabulary
// (original_source/core/PaxosConstants.java).
func (l *Logger) Announce(value string) {
	l.Infof("%s%s%s", ConsensusPrefix, value, CouncilPresidentSuffix)
}
