package mutate

import (
	"math/rand"
)

// Config controls the mutation behavior. Zero values fall back to sane
// defaults.
type Config struct {
	MinLen       int  // mutated inputs never get shorter than this
	MinMutations int  // at least this many edits per candidate
	MaxMutations int  // strictly fewer than this many edits per candidate
	ForbidNUL    bool // true when inputs travel on the commandline
}

// Mutator produces candidate inputs by applying randomized byte-level edits.
// It holds no mutable state: every call is pure given the caller's RNG, so
// one Mutator is safely shared by all workers, each with its own
// independently seeded *rand.Rand.
type Mutator struct {
	cfg Config
}

func New(cfg Config) *Mutator {
	if cfg.MinMutations < 1 {
		cfg.MinMutations = 1
	}
	if cfg.MaxMutations <= cfg.MinMutations {
		cfg.MaxMutations = cfg.MinMutations + 1
	}
	return &Mutator{cfg: cfg}
}

// Mutate returns a fresh candidate derived from input. The input itself is
// never modified.
func (m *Mutator) Mutate(rng *rand.Rand, input []byte) []byte {
	candidate := make([]byte, len(input))
	copy(candidate, input)

	edits := m.cfg.MinMutations + rng.Intn(m.cfg.MaxMutations-m.cfg.MinMutations)
	for i := 0; i < edits; i++ {
		candidate = m.mutateOnce(rng, candidate)
	}

	// Clamp: an input below the minimum length is padded back up with
	// random printable bytes rather than silently returned short.
	for len(candidate) < m.cfg.MinLen {
		candidate = insertRandomByte(rng, candidate)
	}
	return candidate
}

func (m *Mutator) mutateOnce(rng *rand.Rand, s []byte) []byte {
	switch rng.Intn(4) {
	case 0:
		if len(s) > m.cfg.MinLen {
			return deleteRandomByte(rng, s)
		}
		return insertRandomByte(rng, s)
	case 1:
		return insertRandomByte(rng, s)
	case 2:
		return m.flipRandomBit(rng, s)
	default:
		return duplicateRandomSpan(rng, s)
	}
}

func deleteRandomByte(rng *rand.Rand, s []byte) []byte {
	if len(s) == 0 {
		return s
	}
	pos := rng.Intn(len(s))
	return append(s[:pos], s[pos+1:]...)
}

func insertRandomByte(rng *rand.Rand, s []byte) []byte {
	pos := rng.Intn(len(s) + 1)
	chr := byte(32 + rng.Intn(127-32))
	s = append(s, 0)
	copy(s[pos+1:], s[pos:])
	s[pos] = chr
	return s
}

func (m *Mutator) flipRandomBit(rng *rand.Rand, s []byte) []byte {
	if len(s) == 0 {
		return s
	}
	// A flip that produces a NUL byte cannot be passed on the commandline;
	// retry with new random draws until the result stays valid.
	for {
		pos := rng.Intn(len(s))
		bit := byte(1) << rng.Intn(7)
		s[pos] ^= bit
		if !m.cfg.ForbidNUL || s[pos] != 0 {
			return s
		}
		s[pos] ^= bit
	}
}

func duplicateRandomSpan(rng *rand.Rand, s []byte) []byte {
	if len(s) == 0 {
		return s
	}
	start := rng.Intn(len(s))
	length := 1 + rng.Intn(len(s)-start)
	span := make([]byte, length)
	copy(span, s[start:start+length])

	pos := rng.Intn(len(s) + 1)
	out := make([]byte, 0, len(s)+length)
	out = append(out, s[:pos]...)
	out = append(out, span...)
	out = append(out, s[pos:]...)
	return out
}
