// Package replacement implements the victim-selection abstraction used by a
// cache set: given a set index, pick a way to evict, and record an access so
// future victim choices reflect it.
//
// Grounded in the teacher's tagging.VictimFinder interface
// (mem/cache/internal/tagging/victimfinder.go), generalized here from one
// concrete LRU implementation into an interface with two implementations, so
// that spec.md §4.1's "must admit drop-in alternatives" requirement is
// actually exercised rather than asserted.
package replacement

// Policy selects and tracks victims for one cache's sets.
type Policy interface {
	// Victim returns the way to evict from the given set.
	Victim(setIndex int) int
	// Update records that a way in a set was just accessed (hit, fill, or
	// MSHR-match). Writebacks never call Update — evicting a line must not
	// disturb the replacement state of the lines around it.
	Update(setIndex, way int)
}
