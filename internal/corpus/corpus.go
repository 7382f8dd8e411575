package corpus

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"greyfuzz/internal/coverage"
)

// Schedule selects how seeds are drawn from the population.
type Schedule int

const (
	// ScheduleUniform draws every population member with equal probability.
	ScheduleUniform Schedule = iota
	// ScheduleRare weights members by the inverse of how often their
	// coverage has been rediscovered, biasing exploration toward rare paths.
	ScheduleRare
)

func ScheduleFor(name string) Schedule {
	if name == "uniform" {
		return ScheduleUniform
	}
	return ScheduleRare
}

type entry struct {
	input []byte
	hits  uint64
}

// Stats is a point-in-time view of the run. It may trail in-flight updates
// slightly; it is observational only.
type Stats struct {
	Elapsed     time.Duration
	Cases       uint64
	Distinct    int // number of distinct coverage keys
	CorpusSize  int // population size (seeds + interesting inputs)
	Crashes     uint64
	Timeouts    uint64
	Rejected    uint64 // per-run errors absorbed as discarded cases
	CoveredLocs int    // size of the global coverage union
	ExecPerSec  float64
}

// Corpus is the only structure shared by all workers. The mutex guards the
// novelty map, the population and the global coverage union; plain counters
// are atomics so bumping them never contends. Fingerprinting and mutation
// happen outside the lock, keeping the critical section to the map
// check-insert itself.
type Corpus struct {
	mu         sync.Mutex
	entries    map[string]*entry
	population [][]byte
	popKeys    []string // novelty key per population member, "" for raw seeds
	seen       map[string]struct{}
	global     coverage.Snapshot

	cases    atomic.Uint64
	crashes  atomic.Uint64
	timeouts atomic.Uint64
	rejected atomic.Uint64

	schedule Schedule
	started  time.Time
}

// New builds a corpus whose initial population is the given seed inputs.
// Seeds carry no novelty key until an execution attributes coverage to them.
func New(schedule Schedule, seeds [][]byte) *Corpus {
	c := &Corpus{
		entries:  make(map[string]*entry),
		seen:     make(map[string]struct{}),
		global:   coverage.NewSnapshot(),
		schedule: schedule,
		started:  time.Now(),
	}
	for _, seed := range seeds {
		c.AddSeed(seed)
	}
	return c
}

// TryRecord atomically checks whether key is new coverage. The first caller
// for a key wins: the input joins the population and TryRecord returns true.
// Every later caller only bumps that key's hit counter. Ownership of input
// transfers to the corpus; callers must not modify it afterwards.
func (c *Corpus) TryRecord(key string, input []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.hits++
		return false
	}
	c.entries[key] = &entry{input: input, hits: 1}
	c.population = append(c.population, input)
	c.popKeys = append(c.popKeys, key)
	return true
}

// ClaimSeed attaches a novelty key to a seed that is already in the
// population, so attributing baseline coverage never duplicates the entry.
// Same first-claim-wins rule as TryRecord: later claims for the key only
// bump its hit counter. An input with no population entry joins it, keyed.
func (c *Corpus) ClaimSeed(key string, input []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.hits++
		return false
	}
	c.entries[key] = &entry{input: input, hits: 1}
	for i, popKey := range c.popKeys {
		if popKey == "" && bytes.Equal(c.population[i], input) {
			c.popKeys[i] = key
			return true
		}
	}
	c.population = append(c.population, input)
	c.popKeys = append(c.popKeys, key)
	return true
}

// AddSeed appends an input to the population without claiming coverage for
// it. Used for the initial seeds and for inputs imported at runtime.
func (c *Corpus) AddSeed(input []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.population = append(c.population, input)
	c.popKeys = append(c.popKeys, "")
}

// SampleSeed draws one input from the population according to the schedule.
// The returned slice is shared and read-only by convention.
func (c *Corpus) SampleSeed(rng *rand.Rand) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.population) == 0 {
		return nil
	}
	if c.schedule == ScheduleUniform {
		return c.population[rng.Intn(len(c.population))]
	}

	// Inverse-frequency weighting: an input whose coverage keeps being
	// rediscovered gets proportionally less fuzzing energy.
	weights := make([]float64, len(c.population))
	var total float64
	for i, key := range c.popKeys {
		w := 1.0
		if key != "" {
			if e, ok := c.entries[key]; ok {
				w = 1.0 / float64(e.hits)
			}
		}
		weights[i] = w
		total += w
	}
	pick := rng.Float64() * total
	for i, w := range weights {
		pick -= w
		if pick <= 0 {
			return c.population[i]
		}
	}
	return c.population[len(c.population)-1]
}

// Population returns a snapshot copy of the current seed population.
func (c *Corpus) Population() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	pop := make([][]byte, len(c.population))
	copy(pop, c.population)
	return pop
}

// MarkSeen records the exact input content. It returns true the first time
// a content is seen and false on every repeat, so workers skip re-executing
// identical candidates.
func (c *Corpus) MarkSeen(input []byte) bool {
	sum := md5.Sum(input)
	key := hex.EncodeToString(sum[:])

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[key]; ok {
		return false
	}
	c.seen[key] = struct{}{}
	return true
}

// MergeCoverage folds a run's snapshot into the global union. Reporting
// only; novelty decisions never read this.
func (c *Corpus) MergeCoverage(snap coverage.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.global.Merge(snap)
}

func (c *Corpus) AddCase()    { c.cases.Add(1) }
func (c *Corpus) AddCrash()   { c.crashes.Add(1) }
func (c *Corpus) AddTimeout() { c.timeouts.Add(1) }
func (c *Corpus) AddReject()  { c.rejected.Add(1) }

func (c *Corpus) Cases() uint64 { return c.cases.Load() }

func (c *Corpus) SnapshotStats() Stats {
	c.mu.Lock()
	distinct := len(c.entries)
	size := len(c.population)
	covered := c.global.Len()
	c.mu.Unlock()

	elapsed := time.Since(c.started)
	cases := c.cases.Load()
	stats := Stats{
		Elapsed:     elapsed,
		Cases:       cases,
		Distinct:    distinct,
		CorpusSize:  size,
		Crashes:     c.crashes.Load(),
		Timeouts:    c.timeouts.Load(),
		Rejected:    c.rejected.Load(),
		CoveredLocs: covered,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		stats.ExecPerSec = float64(cases) / secs
	}
	return stats
}
