package cache

import (
	"fmt"
	"sort"

	"github.com/sarchlab/tlbcoh/coherence"
	"github.com/sarchlab/tlbcoh/instrument"
	"github.com/sarchlab/tlbcoh/request"
)

// NumMaxCaches bounds how many levels a single hierarchy chain may hold,
// mirroring the original's NUM_MAX_CACHES assertion in add_cache_to_hier.
const NumMaxCaches = 8

type cohActEntry struct {
	Action coherence.Action
	Addr   uint64
	TID    uint64
	Kind   request.Kind
}

type pendingRequest struct {
	Request request.Request
}

// CacheSys is the per-hierarchy event engine described in spec.md §4.5: it
// owns one level slice, ticks the mandatory hit-list/wait-list/coherence
// order every cycle, and holds peer CacheSys instances (other cores' copies
// of the same hierarchy role) to dispatch broadcasts to.
type CacheSys struct {
	*instrument.HookableBase

	Name              string
	IsTranslationHier bool
	MemoryLatency     uint64

	Clk uint64

	caches     []*Cache
	smallChain []*Cache
	largeChain []*Cache
	peers      []*CacheSys

	hitList  map[uint64]int
	waitList map[uint64][]pendingRequest
	cohActs  []cohActEntry

	cacheLatencyCycles     []uint64
	totalLatencyCycles     []uint64
	totalMemoryPathLatency uint64
}

// NewCacheSys builds an empty event engine for one hierarchy role (data or
// translation) belonging to one core.
func NewCacheSys(name string, isTranslationHier bool, memoryLatency uint64) *CacheSys {
	return &CacheSys{
		HookableBase:      instrument.NewHookableBase(),
		Name:              name,
		IsTranslationHier: isTranslationHier,
		MemoryLatency:     memoryLatency,
		hitList:           make(map[uint64]int),
		waitList:          make(map[uint64][]pendingRequest),
	}
}

// AddCache appends a cache to this hierarchy, wiring the static
// higher/lower links spec.md §9 expects for an ordinary same-hierarchy
// chain and computing the level numbering for both data hierarchies
// (linear) and translation hierarchies (two parallel chains, keyed by
// page size, sharing the (size+2)/2 level formula).
//
// The original's add_cache_to_hier never wires higher/lower links for a
// translation hierarchy at all, leaving no way for the small/large-page TLB
// chains to back-invalidate or be statically walked — treated here as a
// gap spec.md §9's Open Questions leave for this implementation to close,
// resolved by wiring each page-size chain exactly like a data hierarchy
// chain. The only build-time check on a translation hierarchy is that
// neither chain grows past NumMaxCaches levels; caches added out of
// small/large alternation, or chains of unequal length, are accepted (see
// DESIGN.md).
func (s *CacheSys) AddCache(c *Cache) {
	if s.IsTranslationHier {
		mustBeTrue(c.CacheType == TranslationOnly, "translation hierarchy requires a TRANSLATION_ONLY cache")
	} else {
		mustBeTrue(c.CacheType != TranslationOnly, "data hierarchy cannot hold a TRANSLATION_ONLY cache")
	}

	if !s.IsTranslationHier {
		if n := len(s.caches); n > 0 {
			prev := s.caches[n-1]
			c.addHigherCache(prev)
			prev.setLowerCache(c)
		}
		c.Level = len(s.caches) + 1
	} else {
		chain := &s.smallChain
		if c.IsLargePageTLB {
			chain = &s.largeChain
		}
		if n := len(*chain); n > 0 {
			prev := (*chain)[n-1]
			c.addHigherCache(prev)
			prev.setLowerCache(c)
		}
		*chain = append(*chain, c)

		curSize := len(s.caches)
		c.Level = (curSize + 2) / 2
	}

	c.setLowerCache(nil)
	c.sys = s
	s.caches = append(s.caches, c)

	maxLevels := NumMaxCaches
	if s.IsTranslationHier {
		maxLevels = NumMaxCaches * 2
		mustBeTrue(len(s.smallChain) <= NumMaxCaches, "too many levels in the small-page TLB chain")
		mustBeTrue(len(s.largeChain) <= NumMaxCaches, "too many levels in the large-page TLB chain")
	}
	mustBeTrue(len(s.caches) <= maxLevels, "too many cache levels added to hierarchy")

	s.recomputeLatencyTable()
}

func (s *CacheSys) recomputeLatencyTable() {
	idx := len(s.caches) - 1
	c := s.caches[idx]

	s.cacheLatencyCycles = append(s.cacheLatencyCycles, c.LatencyCycles)

	var total uint64
	if idx > 0 {
		total = s.totalLatencyCycles[idx-1]
	}
	total += c.LatencyCycles
	s.totalLatencyCycles = append(s.totalLatencyCycles, total)
	s.totalMemoryPathLatency += c.LatencyCycles
}

// TotalLatencyAt returns the cumulative latency from level 1 through level,
// inclusive, so a caller can price a hit path uniformly.
func (s *CacheSys) TotalLatencyAt(level int) uint64 {
	return s.totalLatencyCycles[level-1]
}

// MemoryPathLatency returns the cumulative cache latency plus the memory
// access itself, pricing a full miss path.
func (s *CacheSys) MemoryPathLatency() uint64 {
	return s.totalMemoryPathLatency + s.MemoryLatency
}

// AddPeer registers another core's CacheSys for the same hierarchy role as
// a coherence broadcast destination.
func (s *CacheSys) AddPeer(p *CacheSys) { s.peers = append(s.peers, p) }

// SetCoreFacade wires the Core façade into every cache this CacheSys
// already owns, mirroring the original CacheSys::set_core.
func (s *CacheSys) SetCoreFacade(f CoreFacade) {
	for _, c := range s.caches {
		c.SetCoreFacade(f)
	}
}

// SetCoreID stamps every cache in this hierarchy with its owning core's ID,
// used to route propagateReleaseLock at the last level of a data hierarchy.
func (s *CacheSys) SetCoreID(id uint32) {
	for _, c := range s.caches {
		c.CoreID = id
	}
}

// IsLastLevel reports whether level is the terminal level of this
// hierarchy: the last level of the chain for a data hierarchy, or
// len(caches)/2 for a translation hierarchy. That is either chain's last
// level only when the small- and large-page chains hold the same number of
// levels; AddCache does not enforce this, and a translation hierarchy with
// a single one-level chain has no level for which this reports true.
func (s *CacheSys) IsLastLevel(level int) bool {
	if s.IsTranslationHier {
		return level == len(s.caches)/2
	}
	return level == len(s.caches)
}

// FirstCache returns the L1 cache of this hierarchy.
func (s *CacheSys) FirstCache() (*Cache, bool) {
	if len(s.caches) == 0 {
		return nil, false
	}
	return s.caches[0], true
}

// LastCache returns the last-level cache of a (non-translation) hierarchy
// chain, used by the translation/data boundary resolver to reach the data
// hierarchy's DATA_AND_TRANSLATION terminal cache from a TLB chain.
func (s *CacheSys) LastCache() (*Cache, bool) {
	if len(s.caches) == 0 {
		return nil, false
	}
	return s.caches[len(s.caches)-1], true
}

// LastLevelFor returns the last-level cache of the small- or large-page TLB
// chain, used by the translation/data boundary resolver.
func (s *CacheSys) LastLevelFor(isLarge bool) (*Cache, bool) {
	chain := s.smallChain
	if isLarge {
		chain = s.largeChain
	}
	if len(chain) == 0 {
		return nil, false
	}
	return chain[len(chain)-1], true
}

// LookupAndFillCache enters the hierarchy at L1, per spec.md §6.
func (s *CacheSys) LookupAndFillCache(addr uint64, k request.Kind, tid uint64, isLarge bool) request.Status {
	return s.caches[0].lookupAndFillCache(addr, k, tid, isLarge, 0)
}

func (s *CacheSys) scheduleHit(currLatency uint64) {
	at := s.Clk + currLatency
	s.hitList[at]++
}

func (s *CacheSys) scheduleWait(r request.Request, currLatency uint64) {
	at := s.Clk + currLatency
	s.waitList[at] = append(s.waitList[at], pendingRequest{Request: r})
}

func (s *CacheSys) enqueueCoherence(action coherence.Action, addr, tid uint64, k request.Kind) {
	s.cohActs = append(s.cohActs, cohActEntry{
		Action: action,
		Addr:   addr,
		TID:    tid,
		Kind:   request.BroadcastKindFor(k.IsTranslation()),
	})
}

// Tick runs exactly the four-step order spec.md §4.5 mandates: drain queued
// coherence actions across every level but the last, advance the clock,
// retire the hit list, retire the wait list (invoking each release).
func (s *CacheSys) Tick() {
	for _, e := range s.cohActs {
		for i := 0; i < len(s.caches)-1; i++ {
			s.caches[i].reactToBroadcast(e.Action, e.Addr, e.TID, e.Kind)
		}
	}
	s.cohActs = s.cohActs[:0]

	s.Clk++

	for _, at := range dueKeys(s.hitList, s.Clk) {
		delete(s.hitList, at)
	}

	for _, at := range dueKeysRequests(s.waitList, s.Clk) {
		for _, pr := range s.waitList[at] {
			origin := pr.Request.Origin
			if origin.Level < 1 || origin.Level > len(s.caches) {
				panic(fmt.Sprintf("cachesys %s: wait-list entry with invalid origin level %d", s.Name, origin.Level))
			}
			s.caches[origin.Level-1].releaseLock(pr.Request)
			s.InvokeHook(instrument.HookCtx{Domain: s, Pos: instrument.PosRetire, Item: pr.Request.Addr, Detail: pr.Request})
		}
		delete(s.waitList, at)
	}
}

// dueKeys and dueKeysRequests return the map keys at or before clk, sorted,
// so retirement order is deterministic regardless of Go's randomized map
// iteration — required by the "Deterministic replay" law in spec.md §8.
func dueKeys(m map[uint64]int, clk uint64) []uint64 {
	var keys []uint64
	for k := range m {
		if clk >= k {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func dueKeysRequests(m map[uint64][]pendingRequest, clk uint64) []uint64 {
	var keys []uint64
	for k := range m {
		if clk >= k {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func mustBeTrue(cond bool, msg string) {
	if !cond {
		panic("cache: " + msg)
	}
}
