package cache

import "github.com/sarchlab/tlbcoh/request"

// CoreFacade is the external interface a Cache consumes to cross the
// translation/data boundary and resolve a lower cache the static wiring
// does not already know about. Owned here, by the consumer, rather than by
// the core package that implements it, so that cache never imports core
// (core imports cache instead) — matching spec.md §6's "Core façade
// (consumed by Cache)".
type CoreFacade interface {
	// GetL3TLBAddr maps a virtual address into the synthetic address space
	// the data hierarchy uses to store translation lines at its last level.
	// insert controls whether a missing mapping is allocated (true) or
	// treated as "not present" (false).
	GetL3TLBAddr(va, tid uint64, isLarge, insert bool) uint64

	// RetrieveAddr is the reverse of GetL3TLBAddr: given a synthetic L3-TLB
	// address, recover the original virtual address, or report that this
	// chain should stop propagating (page-size mismatch between the
	// mapping and the higher cache asking for it).
	RetrieveAddr(l3tlbAddr, tid uint64, isLarge, higherCacheIsSmallTLB bool) (addr uint64, propagate bool)

	// LowerCache dynamically resolves the next cache to recurse into when
	// the static lower-cache link is absent: crossing the translation/data
	// boundary in either direction.
	LowerCache(addr uint64, isTranslation, isLarge bool, level int, cacheType Type) (*Cache, bool)
}

// RetirementSink is the external ROB interface a Cache consumes, exactly
// once, at L1 of the data hierarchy, to report that an access has fully
// retired.
type RetirementSink interface {
	MarkDone(addr uint64, k request.Kind)
}
