package coverage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Location identifies one covered source location. Locations are opaque to
// the engine beyond equality; the instrumentation toolchain owns their
// meaning.
type Location struct {
	Unit string
	Line int
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Unit, l.Line)
}

// Snapshot is the set of locations covered by a single execution.
type Snapshot map[Location]struct{}

func NewSnapshot() Snapshot {
	return make(Snapshot)
}

func (s Snapshot) Add(loc Location) {
	s[loc] = struct{}{}
}

func (s Snapshot) Len() int {
	return len(s)
}

// Merge adds every location of other into s. Used only for the global
// coverage union reported in statistics.
func (s Snapshot) Merge(other Snapshot) {
	for loc := range other {
		s[loc] = struct{}{}
	}
}

// Locations returns the members of the set in a canonical order.
func (s Snapshot) Locations() []Location {
	locs := make([]Location, 0, len(s))
	for loc := range s {
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool {
		if locs[i].Unit != locs[j].Unit {
			return locs[i].Unit < locs[j].Unit
		}
		return locs[i].Line < locs[j].Line
	})
	return locs
}

// Fingerprint digests a snapshot into 64 bits. Per-location hashes are
// combined with addition so the result does not depend on iteration order:
// identical sets always produce identical fingerprints. Distinct sets may
// collide with probability ~2^-64 per pair; callers that cannot accept that
// use SetKeyer instead.
func Fingerprint(s Snapshot) uint64 {
	var sum uint64
	for loc := range s {
		digest := xxhash.New()
		digest.WriteString(loc.Unit)
		digest.Write([]byte{':'})
		var lineBuf [8]byte
		line := loc.Line
		for i := range lineBuf {
			lineBuf[i] = byte(line >> (8 * i))
		}
		digest.Write(lineBuf[:])
		sum += digest.Sum64()
	}
	return sum
}

// Keyer maps a snapshot to the novelty key stored in the corpus.
type Keyer interface {
	Key(s Snapshot) string
}

// HashKeyer keys by the 64-bit fingerprint. Compact, with a bounded
// collision probability.
type HashKeyer struct{}

func (HashKeyer) Key(s Snapshot) string {
	return fmt.Sprintf("%016x", Fingerprint(s))
}

// SetKeyer keys by the full canonical rendering of the set. Exact, at the
// cost of memory proportional to the coverage size.
type SetKeyer struct{}

func (SetKeyer) Key(s Snapshot) string {
	locs := s.Locations()
	parts := make([]string, len(locs))
	for i, loc := range locs {
		parts[i] = loc.String()
	}
	return strings.Join(parts, ",")
}

// KeyerFor returns the keyer for a configured novelty mode, defaulting to
// the hash strategy.
func KeyerFor(mode string) Keyer {
	if mode == "set" {
		return SetKeyer{}
	}
	return HashKeyer{}
}
