// Package cache implements the Cache lookup/fill/eviction state machine and
// the CacheSys per-hierarchy event engine, kept in one Go package because
// the two are tightly, bidirectionally coupled (a Cache must reach its
// owning CacheSys to schedule completions and reach peer CacheSys instances
// to dispatch coherence actions; a CacheSys holds and ticks its Caches).
// Splitting them across packages would force an import cycle; the teacher
// shows the same choice in mem/cache, where Comp and its internal stages
// share one package even though they model logically distinct components.
package cache

import (
	"github.com/sarchlab/tlbcoh/coherence"
)

// Type is a cache's role in its hierarchy: whether it holds data lines,
// translation (TLB) lines, or both. Only the last level of a data hierarchy
// is ordinarily DataAndTranslation, since it is the boundary the translation
// hierarchy's own last level recurses into.
type Type int

const (
	DataOnly Type = iota
	TranslationOnly
	DataAndTranslation
)

func (t Type) String() string {
	switch t {
	case DataOnly:
		return "DATA_ONLY"
	case TranslationOnly:
		return "TRANSLATION_ONLY"
	case DataAndTranslation:
		return "DATA_AND_TRANSLATION"
	default:
		return "UNKNOWN"
	}
}

func (t Type) holdsTranslation() bool { return t != DataOnly }
func (t Type) holdsData() bool        { return t != TranslationOnly }

// Line is one cache-line slot: tag/valid/dirty/lock bookkeeping plus a
// value-embedded coherence FSM, per the §9 design note (no pointer to a
// polymorphic coherence object).
type Line struct {
	Valid         bool
	Dirty         bool
	Locked        bool
	Tag           uint64
	IsTranslation bool
	IsLarge       bool
	TID           uint64
	Protocol      coherence.Protocol
}

func invalidLine() Line {
	return Line{Protocol: coherence.NewProtocol()}
}
