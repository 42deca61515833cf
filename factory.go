package paxos

import "fmt"

// BuildMember constructs a fully wired Member for the peer id identified in
// directory, seeding its RNGs deterministically from seed and id so that a
// whole council started from the same seed reproduces the same run.
// Grounded on original_source/core/MemberFactory.java's createBasicMember:
// this repository only ever builds the basic (single-decree, no leader
// election) member type, since EnhancedCouncilMember/AdvancedCouncilMember
// are the out-of-scope leader-election extensions SPEC_FULL.md §11 excludes.
func BuildMember(id string, directory *Directory, verbose bool, seed int64) (*Member, error) {
	info, ok := directory.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not in the membership directory", ErrConfig, id)
	}
	logger := NewLogger(id, verbose)
	memberSeed := seed + memberSeedOffset(info)
	return NewMember(id, directory, logger, info.Profile, memberSeed)
}

// memberSeedOffset derives a small per-member offset from the member's
// ordinal so that BuildMember never hands two members the same seed even
// when called with the council-wide seed unmodified.
func memberSeedOffset(info MemberInfo) int64 {
	ordinal, err := PeerOrdinal(info.ID)
	if err != nil {
		return int64(info.Port)
	}
	return ordinal * 1000
}

// BuildCouncil constructs and starts a Member for every peer in directory.
// If one fails to build or start, it stops the members already started and
// returns nil with the error.
func BuildCouncil(directory *Directory, verbose bool, seed int64) ([]*Member, error) {
	members := make([]*Member, 0, directory.Size())
	for _, id := range directory.Peers() {
		m, err := BuildMember(id, directory, verbose, seed)
		if err != nil {
			stopAll(members)
			return nil, err
		}
		if err := m.Start(); err != nil {
			stopAll(members)
			return nil, fmt.Errorf("starting member %q: %w", id, err)
		}
		members = append(members, m)
	}
	return members, nil
}

func stopAll(members []*Member) {
	for _, m := range members {
		m.Stop()
	}
}
