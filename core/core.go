package core

import "github.com/sarchlab/tlbcoh/cache"

// Core wires one core's data and translation CacheSys hierarchies together
// and owns the directory that bridges the two at the translation-to-data
// boundary. It is the concrete realization of the "Core Façade" spec.md §2
// treats as an external collaborator: the cache package never imports this
// package (it consumes cache.CoreFacade instead), so Core can freely import
// cache without an import cycle.
type Core struct {
	ID uint32

	Data        *cache.CacheSys
	Translation *cache.CacheSys

	dir *Directory
}

// NewCore wires data and translation into a Core, stamps every cache in
// both hierarchies with this core's ID (needed by propagateReleaseLock's
// data-hierarchy routing predicate), and registers the Core as the
// CoreFacade for both hierarchies' caches.
func NewCore(id uint32, data, translation *cache.CacheSys, dir *Directory) *Core {
	c := &Core{ID: id, Data: data, Translation: translation, dir: dir}
	data.SetCoreID(id)
	translation.SetCoreID(id)
	data.SetCoreFacade(c)
	translation.SetCoreFacade(c)

	// The data hierarchy's DATA_AND_TRANSLATION terminal cache has no
	// CacheSys of its own linking it to the translation hierarchy's last
	// levels, so propagateReleaseLock's cross-hierarchy branch would never
	// fire without this: a TLB miss that crosses the boundary would lock
	// its MSHR entry forever, since nothing would ever call back up to
	// release it.
	if last, ok := data.LastCache(); ok {
		if small, ok := translation.LastLevelFor(false); ok {
			last.AddHigherCache(small)
		}
		if large, ok := translation.LastLevelFor(true); ok {
			last.AddHigherCache(large)
		}
	}

	return c
}

// GetL3TLBAddr delegates to the wired Directory.
func (c *Core) GetL3TLBAddr(va, tid uint64, isLarge, insert bool) uint64 {
	return c.dir.GetL3TLBAddr(va, tid, isLarge, insert)
}

// RetrieveAddr delegates to the wired Directory.
func (c *Core) RetrieveAddr(l3tlbAddr, tid uint64, isLarge, higherCacheIsSmallTLB bool) (uint64, bool) {
	return c.dir.RetrieveAddr(l3tlbAddr, tid, isLarge, higherCacheIsSmallTLB)
}

// LowerCache resolves the one direction of the translation-to-data boundary
// that static same-hierarchy wiring cannot express: a TRANSLATION_ONLY cache
// at the bottom of its chain resolves to this core's data hierarchy's
// last-level (DATA_AND_TRANSLATION) cache, so a TLB miss that cannot be
// serviced within the TLB chain falls through to the data hierarchy instead
// of going straight to memory.
//
// The data hierarchy's own last-level cache never resolves anywhere from
// here, even for a translation-domain request that reached it exactly that
// way: resolving it back into the translation hierarchy would hand the
// request straight back to the TRANSLATION_ONLY cache it just came from,
// bouncing forever instead of terminating. A translation request that
// misses at the DATA_AND_TRANSLATION cache has nowhere left to go but
// memory, same as a data request would.
//
// Any other combination has no dynamic resolution and reports "no such
// neighbor", per spec.md §7's weak-reference handling.
func (c *Core) LowerCache(addr uint64, isTranslation, isLarge bool, level int, cacheType cache.Type) (*cache.Cache, bool) {
	if cacheType == cache.TranslationOnly {
		return c.Data.LastCache()
	}
	return nil, false
}
