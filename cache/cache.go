package cache

import (
	"fmt"
	"log"

	"github.com/sarchlab/tlbcoh/coherence"
	"github.com/sarchlab/tlbcoh/idgen"
	"github.com/sarchlab/tlbcoh/instrument"
	"github.com/sarchlab/tlbcoh/mshr"
	"github.com/sarchlab/tlbcoh/replacement"
	"github.com/sarchlab/tlbcoh/request"
)

const (
	dataMSHRCapacity        = 16
	translationMSHRCapacity = 1
)

// Cache is one level of a hierarchy: a set-associative array of lines, its
// MSHR table, and its replacement policy, plus the wiring needed to reach
// its neighbors and cross hierarchies.
type Cache struct {
	*instrument.HookableBase

	Name string

	lineOffsetBits uint
	indexBits      uint
	associativity  int

	sets [][]Line

	repl replacement.Policy
	tbl  *mshr.Table

	CacheType      Type
	Level          int
	LatencyCycles  uint64
	Inclusive      bool
	IsLargePageTLB bool
	CoreID         uint32

	sys *CacheSys

	lower   *Cache
	higher  []*Cache
	core    CoreFacade
	rob     RetirementSink
}

// NewCache builds a cache with the given geometry. Use Builder for a fluent
// construction style matching the teacher's cache.Builder/tlb.Builder.
func NewCache(lineOffsetBits, indexBits uint, associativity int, cacheType Type, latency uint64, repl replacement.Policy) *Cache {
	numSets := 1 << indexBits
	sets := make([][]Line, numSets)
	for i := range sets {
		row := make([]Line, associativity)
		for w := range row {
			row[w] = invalidLine()
		}
		sets[i] = row
	}

	capacity := dataMSHRCapacity
	if cacheType == TranslationOnly {
		capacity = translationMSHRCapacity
	}

	return &Cache{
		HookableBase:  instrument.NewHookableBase(),
		lineOffsetBits: lineOffsetBits,
		indexBits:      indexBits,
		associativity:  associativity,
		sets:           sets,
		repl:           repl,
		tbl:            mshr.New(capacity),
		CacheType:      cacheType,
		LatencyCycles:  latency,
	}
}

// SetCoreFacade wires the Core façade used to cross the translation/data
// boundary and resolve dynamic lower-cache links.
func (c *Cache) SetCoreFacade(f CoreFacade) { c.core = f }

// SetRetirementSink wires the ROB façade, meaningful only at level 1 of a
// data hierarchy.
func (c *Cache) SetRetirementSink(r RetirementSink) { c.rob = r }

func (c *Cache) setLowerCache(l *Cache) { c.lower = l }
func (c *Cache) addHigherCache(h *Cache) { c.higher = append(c.higher, h) }

// AddHigherCache registers h as a cache whose MSHR lock must also release
// when this cache's own lock on the same (possibly rewritten) address
// releases, and as a target for inclusive back-invalidation. CacheSys.AddCache
// only wires this link within one hierarchy's own chain; a cross-hierarchy
// link — the translation hierarchy's last-level TLB caches sitting above
// the data hierarchy's DATA_AND_TRANSLATION terminal cache — has no
// CacheSys of its own to wire it, so core.Core establishes it directly
// through this method instead.
func (c *Cache) AddHigherCache(h *Cache) { c.addHigherCache(h) }

func (c *Cache) indexAndTag(addr uint64) (index int, tag uint64) {
	index = int((addr >> c.lineOffsetBits) & ((1 << c.indexBits) - 1))
	tag = addr >> (c.lineOffsetBits + c.indexBits)
	return
}

func (c *Cache) reconstructAddr(tag uint64, index int) uint64 {
	return (tag << (c.lineOffsetBits + c.indexBits)) | (uint64(index) << c.lineOffsetBits)
}

func findWay(set []Line, tag uint64, isTranslation bool, tid uint64, allowLocked bool) (int, bool) {
	for way, l := range set {
		if !l.Valid {
			continue
		}
		if l.Tag == tag && l.IsTranslation == isTranslation && l.TID == tid && (allowLocked || !l.Locked) {
			return way, true
		}
	}
	return -1, false
}

func hasInvalidSlot(set []Line) bool {
	for _, l := range set {
		if !l.Valid {
			return true
		}
	}
	return false
}

func isWriteLike(k request.Kind) bool {
	return k.Op == request.OpWrite || k.Op == request.OpWriteback
}

// Contains reports whether addr is resident (valid, matching tid/domain),
// used by eviction's inclusion assertion to compare tags against the
// resolved lower cache rather than raw set indices — the copy-paste-looking
// bug the original's find_lower_cache_in_core has, which spec.md §9 flags
// and this implementation fixes.
func (c *Cache) Contains(addr uint64, tid uint64, isTranslation bool) bool {
	index, tag := c.indexAndTag(addr)
	_, found := findWay(c.sets[index], tag, isTranslation, tid, true)
	return found
}

// LookupAndFillCache is the entry point into the central state machine
// described in spec.md §4.3: find a hit, an in-flight MSHR match, a miss
// with MSHR room, or back pressure.
func (c *Cache) LookupAndFillCache(addr uint64, k request.Kind, tid uint64, isLarge bool) request.Status {
	return c.lookupAndFillCache(addr, k, tid, isLarge, 0)
}

func (c *Cache) lookupAndFillCache(addr uint64, k request.Kind, tid uint64, isLarge bool, currLatency uint64) request.Status {
	isTranslation := k.IsTranslation()
	index, tag := c.indexAndTag(addr)
	set := c.sets[index]

	if way, found := findWay(set, tag, isTranslation, tid, false); found {
		return c.handleHit(index, way, addr, k, currLatency)
	}

	if entry, found := c.tbl.Lookup(addr); found {
		return c.handleMSHRMatch(entry, index, addr, k, currLatency)
	}

	if !c.tbl.IsFull() {
		return c.handleMiss(index, tag, addr, k, tid, isLarge, currLatency)
	}

	c.invokeHook(instrument.PosRetry, addr, k)
	return request.StatusRetry
}

func (c *Cache) handleHit(index, way int, addr uint64, k request.Kind, currLatency uint64) request.Status {
	set := c.sets[index]
	line := &set[way]

	line.Dirty = line.Dirty || isWriteLike(k)

	if k.Op != request.OpWriteback {
		c.repl.Update(index, way)
	}

	c.sys.scheduleHit(currLatency)

	action := line.Protocol.Transition(k)
	c.dispatchFromLine(action, addr, k, currLatency, line.TID, line.IsLarge)

	c.invokeHook(instrument.PosHit, addr, k)
	return request.StatusHit
}

// handleMSHRMatch runs the coherence FSM exactly once on this path, per the
// §9 Open Question this implementation resolves: the original's apparent
// double-invocation on an MSHR match is treated as a bookkeeping bug, not
// intentional behavior (see DESIGN.md).
func (c *Cache) handleMSHRMatch(entry *mshr.Entry, index int, addr uint64, k request.Kind, currLatency uint64) request.Status {
	line := &c.sets[entry.SetIndex][entry.Way]

	if isWriteLike(k) {
		line.Dirty = true
	}

	if k.Op != request.OpWriteback {
		c.repl.Update(entry.SetIndex, entry.Way)
	}

	action := line.Protocol.Transition(k)
	c.dispatchFromLine(action, addr, k, currLatency, line.TID, line.IsLarge)

	c.invokeHook(instrument.PosMSHRHit, addr, k)

	if k.Op == request.OpWriteback {
		if !line.Locked {
			panic(fmt.Sprintf("cache %s: writeback matched an unlocked MSHR line at %#x", c.Name, addr))
		}
		return request.StatusMSHRHitAndLocked
	}

	return request.StatusMSHRHit
}

func (c *Cache) handleMiss(index int, tag, addr uint64, k request.Kind, tid uint64, isLarge bool, currLatency uint64) request.Status {
	isTranslation := k.IsTranslation()
	set := c.sets[index]

	insertWay, tagPresent := findWay(set, tag, isTranslation, tid, true)
	needsEviction := false
	if !tagPresent {
		insertWay = c.repl.Victim(index)
		needsEviction = !hasInvalidSlot(set)
	}

	victimPreOverwrite := set[insertWay]

	line := &set[insertWay]
	line.Valid = true
	line.Locked = true
	line.Tag = tag
	line.IsTranslation = isTranslation
	line.IsLarge = isLarge
	line.TID = tid
	line.Dirty = isWriteLike(k)
	if !tagPresent {
		// A genuinely new tag is taking over this slot (whether or not an
		// old line had to be evicted first): its coherence state starts
		// fresh at INVALID, exactly like a never-used slot, rather than
		// inheriting whatever state the outgoing occupant left behind.
		line.Protocol = coherence.NewProtocol()
	}

	c.tbl.Add(addr, &mshr.Entry{SetIndex: index, Way: insertWay})

	if needsEviction {
		c.evict(index, victimPreOverwrite)
	}

	if k.Op != request.OpWriteback {
		c.repl.Update(index, insertWay)
	}

	c.forwardMiss(addr, k, tid, isLarge, currLatency)

	action := line.Protocol.Transition(k)
	c.dispatchFromLine(action, addr, k, currLatency, line.TID, line.IsLarge)

	c.invokeHook(instrument.PosMiss, addr, k)
	return request.StatusMiss
}

// forwardMiss routes a missed access further down the hierarchy, or onto
// the wait list if this is the terminal level for this request's domain.
//
// A data hierarchy always bottoms out at real memory for a data request:
// that path enqueues straight onto the wait list. A translation hierarchy's
// last level is different: per spec.md §4.3's translation-to-data boundary,
// it first tries to resolve into the data hierarchy's L3 (the
// DATA_AND_TRANSLATION cache wired in by Core.LowerCache) the same way any
// other level resolves a lower cache, rewriting the address through the
// VA->L3TLB-addr map at the crossing. Any miss for which no lower cache
// resolves (no such neighbor) falls back to a direct memory wait, modeling a
// raw page-table walk for a translation: this covers a TLB with no Core
// façade wired, and the data hierarchy's DATA_AND_TRANSLATION last level
// receiving a translation request, for which Core.LowerCache resolves
// nothing. This merges the spec's literal "last level of a
// translation hierarchy" wait-list bullet with its "last level of a data
// hierarchy with a translation request recurses into the L3 TLB" bullet,
// which are otherwise impossible to reconcile with a data hierarchy that
// only ever receives a translation request by being resolved as someone
// else's lower cache.
func (c *Cache) forwardMiss(addr uint64, k request.Kind, tid uint64, isLarge bool, currLatency uint64) {
	isTranslation := k.IsTranslation()
	lastLevel := c.sys.IsLastLevel(c.Level)

	dataTerminal := lastLevel && !isTranslation && !c.sys.IsTranslationHier
	if dataTerminal {
		c.scheduleMemoryWait(addr, k, tid, isLarge, currLatency)
		return
	}

	lower, ok := c.resolveLowerCache(addr, isTranslation, isLarge)
	if !ok {
		log.Printf("cache %s: no lower cache for %#x, treating as memory", c.Name, addr)
		c.scheduleMemoryWait(addr, k, tid, isLarge, currLatency)
		return
	}

	accessAddr := addr
	if c.CacheType == TranslationOnly && lower.CacheType == DataAndTranslation {
		accessAddr = c.core.GetL3TLBAddr(addr, tid, isLarge, true)
	}

	lower.lookupAndFillCache(accessAddr, k, tid, isLarge, currLatency+c.LatencyCycles)
}

// scheduleMemoryWait enqueues the terminal leg of a miss path: this level's
// own access latency, plus the flat memory latency, added on top of
// whatever latency the path already accumulated through the higher levels.
func (c *Cache) scheduleMemoryWait(addr uint64, k request.Kind, tid uint64, isLarge bool, currLatency uint64) {
	c.sys.scheduleWait(request.Request{
		ID:      idgen.Current().Generate(),
		Addr:    addr,
		Kind:    k,
		TID:     tid,
		IsLarge: isLarge,
		CoreID:  c.CoreID,
		Origin:  request.Origin{Level: c.Level},
	}, currLatency+c.LatencyCycles+c.sys.MemoryLatency)
}

// resolveLowerCache unifies the original's two routing mechanisms (a static
// weak lower_cache pointer, and a dynamic get_lower_cache call through Core)
// behind one resolver: consult the static edge first, fall back to the
// façade, per the §9 design note.
func (c *Cache) resolveLowerCache(addr uint64, isTranslation, isLarge bool) (*Cache, bool) {
	if c.lower != nil {
		return c.lower, true
	}
	if c.core == nil {
		return nil, false
	}
	return c.core.LowerCache(addr, isTranslation, isLarge, c.Level, c.CacheType)
}

// dispatchFromLine runs the coherence-action dispatch described in
// spec.md §4.6 for an action just produced by this line's own FSM
// transition (as opposed to a broadcast received from a peer, which goes
// through reactToBroadcast instead). subjectTID/subjectIsLarge are the
// resident line's own fields, per §4.3's subject-selection rule: a memory
// writeback's subject is the resident line, not necessarily the requesting
// access (a hit/MSHR match only requires tag+is_translation+tid equality,
// never is_large, so the two can differ).
func (c *Cache) dispatchFromLine(action coherence.Action, addr uint64, k request.Kind, currLatency, subjectTID uint64, subjectIsLarge bool) {
	if action == coherence.None {
		return
	}

	if !action.IsBroadcast() {
		c.forwardWriteback(action, addr, subjectTID, subjectIsLarge, currLatency)
		return
	}

	c.invokeHook(instrument.PosCoherence, addr, action)

	if c.sys.IsLastLevel(c.Level) {
		return
	}
	for _, peer := range c.sys.peers {
		peer.enqueueCoherence(action, addr, subjectTID, k)
	}
}

func (c *Cache) forwardWriteback(action coherence.Action, addr, tid uint64, isLarge bool, currLatency uint64) {
	wk := coherence.KindForAction(action)
	lower, ok := c.resolveLowerCache(addr, wk.IsTranslation(), isLarge)
	if !ok {
		return
	}
	lower.lookupAndFillCache(addr, wk, tid, isLarge, currLatency+c.LatencyCycles)
}

// reactToBroadcast is invoked by CacheSys.Tick for every cache but the last
// level, applying a coherence action queued by a peer hierarchy's broadcast
// to any locally resident copy of the same line.
func (c *Cache) reactToBroadcast(action coherence.Action, addr, tid uint64, k request.Kind) {
	isTranslation := k.IsTranslation()
	index, tag := c.indexAndTag(addr)
	way, found := findWay(c.sets[index], tag, isTranslation, tid, true)
	if !found {
		return
	}

	line := &c.sets[index][way]
	reactKind := line.Protocol.ReactToBroadcast(action)

	if reactKind.Op == request.OpWrite {
		line.Valid = false
		if line.Protocol.State() != coherence.Invalid {
			panic(fmt.Sprintf("cache %s: coherence FSM did not settle at INVALID after a directory write at %#x", c.Name, addr))
		}
	}

	c.invokeHook(instrument.PosCoherence, addr, action)
}

// evict runs the eviction/inclusion/invalidation logic of spec.md §4.4
// against the victim's pre-overwrite state, not the new request's fields
// the original's evict() is accidentally called with.
func (c *Cache) evict(setIndex int, victim Line) {
	evictAddr := c.reconstructAddr(victim.Tag, setIndex)

	if c.Inclusive {
		// evictAddr is in this cache's own address space. Every ordinary
		// higher neighbor shares that space, so back-invalidation is a
		// direct tag match. The one cross-hierarchy higher neighbor a
		// DATA_AND_TRANSLATION cache can have (a TLB chain's last level,
		// wired by core.Core) indexes by virtual address instead, so a
		// translation-line eviction here cannot be back-invalidated
		// through this same untranslated path; it is caught instead by the
		// TLB's own capacity pressure and by the lock release path, which
		// does carry the VA<->synthetic-address translation.
		for _, h := range c.higher {
			if victim.IsTranslation && c.CacheType == DataAndTranslation && h.CacheType == TranslationOnly {
				continue
			}
			h.Invalidate(evictAddr, victim.TID, victim.IsTranslation)
		}
	}

	lower, hasLower := c.resolveLowerCache(evictAddr, victim.IsTranslation, victim.IsLarge)

	if victim.Dirty {
		if hasLower {
			k := request.DataWriteback
			if victim.IsTranslation {
				k = request.TranslationWriteback
			}
			status := lower.lookupAndFillCache(evictAddr, k, victim.TID, victim.IsLarge, 0)
			if c.Inclusive && status != request.StatusHit && status != request.StatusMSHRHitAndLocked {
				panic(fmt.Sprintf("cache %s: inclusion violated, dirty writeback of %#x to lower cache %s returned %s", c.Name, evictAddr, lower.Name, status))
			}
		}
	} else if hasLower && c.Inclusive {
		if !lower.Contains(evictAddr, victim.TID, victim.IsTranslation) {
			panic(fmt.Sprintf("cache %s: inclusion violated, clean evicted line %#x missing from lower cache %s", c.Name, evictAddr, lower.Name))
		}
	}

	c.invokeHook(instrument.PosEvict, evictAddr, victim)
}

// Invalidate drops addr from this cache, if resident, and propagates to
// every higher cache so inclusive back-invalidation reaches the whole
// hierarchy above this level.
func (c *Cache) Invalidate(addr, tid uint64, isTranslation bool) {
	index, tag := c.indexAndTag(addr)
	if way, found := findWay(c.sets[index], tag, isTranslation, tid, true); found {
		c.sets[index][way].Valid = false
	}
	for _, h := range c.higher {
		h.Invalidate(addr, tid, isTranslation)
	}
	c.invokeHook(instrument.PosInvalidate, addr, isTranslation)
}

// releaseLock is invoked by CacheSys.Tick when a wait-list entry retires: it
// clears the MSHR lock at this level, reports retirement to the ROB if this
// is L1 of a data hierarchy, and propagates the release upward.
func (c *Cache) releaseLock(r request.Request) {
	if entry, found := c.tbl.Lookup(r.Addr); found {
		_, tag := c.indexAndTag(r.Addr)
		line := &c.sets[entry.SetIndex][entry.Way]
		if line.Tag == tag {
			line.Locked = false
		}
		c.tbl.Remove(r.Addr)
	}

	if c.Level == 1 && c.CacheType == DataOnly && c.rob != nil {
		c.rob.MarkDone(r.Addr, r.Kind)
	}

	c.propagateReleaseLock(r)
}

// propagateReleaseLock implements the routing predicate of spec.md §4.4:
// which higher caches should also have their MSHR lock released, and at
// what (possibly translated) address.
func (c *Cache) propagateReleaseLock(r request.Request) {
	for _, h := range c.higher {
		if !domainCompatible(r.Kind, h.CacheType) {
			continue
		}

		lastLevel := c.sys.IsLastLevel(c.Level)
		routeOK := !lastLevel ||
			(lastLevel && c.sys.IsTranslationHier) ||
			(lastLevel && !c.sys.IsTranslationHier && r.CoreID == h.CoreID)
		if !routeOK {
			continue
		}

		accessAddr := r.Addr
		propagate := true

		if c.CacheType == DataAndTranslation && h.CacheType == TranslationOnly {
			addr2, ok := c.core.RetrieveAddr(r.Addr, r.TID, r.IsLarge, !h.IsLargePageTLB)
			accessAddr = addr2
			propagate = ok
		}

		if c.CacheType == TranslationOnly && h.CacheType == TranslationOnly {
			propagate = propagate && (r.IsLarge == h.IsLargePageTLB)
		}

		if propagate {
			r2 := r
			r2.Addr = accessAddr
			h.releaseLock(r2)
		}
	}
}

func domainCompatible(k request.Kind, t Type) bool {
	if k.IsTranslation() {
		return t.holdsTranslation()
	}
	return t.holdsData()
}

func (c *Cache) invokeHook(pos *instrument.HookPos, addr uint64, detail interface{}) {
	if len(c.Hooks) == 0 {
		return
	}
	c.InvokeHook(instrument.HookCtx{Domain: c, Pos: pos, Item: addr, Detail: detail})
}
