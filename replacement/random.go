package replacement

import "math/rand"

// Random is a drop-in alternative to LRU: it picks a uniformly random way on
// every victim request and tracks no recency state at all, proving the
// replacement.Policy interface does not secretly assume LRU's bookkeeping.
type Random struct {
	associativity int
	rng           *rand.Rand
}

// NewRandom builds a seeded random policy. A fixed seed keeps the policy
// deterministic across runs, matching the "Deterministic replay" law in
// spec.md §8.
func NewRandom(associativity int, seed int64) *Random {
	return &Random{
		associativity: associativity,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

func (r *Random) Victim(setIndex int) int {
	return r.rng.Intn(r.associativity)
}

func (r *Random) Update(setIndex, way int) {
	// Random tracks no recency state; nothing to update.
}
