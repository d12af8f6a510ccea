package cache

import "github.com/sarchlab/tlbcoh/replacement"

// Builder builds a Cache with a fluent configuration style, grounded in the
// teacher's mem/cache.Builder/mem/vm/tlb.Builder (value-receiver WithX
// methods culminating in Build).
type Builder struct {
	lineOffsetBits uint
	indexBits      uint
	associativity  int
	cacheType      Type
	latency        uint64
	inclusive      bool
	largePageTLB   bool
	replPolicy     replacement.Policy
}

// MakeBuilder returns a builder with reasonable defaults: a 64-byte line,
// 4-way set associative, 64 sets, LRU replacement, DATA_ONLY.
func MakeBuilder() Builder {
	return Builder{
		lineOffsetBits: 6,
		indexBits:      6,
		associativity:  4,
		cacheType:      DataOnly,
	}
}

func (b Builder) WithLineOffsetBits(bits uint) Builder {
	b.lineOffsetBits = bits
	return b
}

func (b Builder) WithIndexBits(bits uint) Builder {
	b.indexBits = bits
	return b
}

func (b Builder) WithAssociativity(n int) Builder {
	b.associativity = n
	return b
}

func (b Builder) WithCacheType(t Type) Builder {
	b.cacheType = t
	return b
}

func (b Builder) WithLatency(cycles uint64) Builder {
	b.latency = cycles
	return b
}

func (b Builder) WithInclusive(inclusive bool) Builder {
	b.inclusive = inclusive
	return b
}

func (b Builder) WithLargePageTLB(isLarge bool) Builder {
	b.largePageTLB = isLarge
	return b
}

func (b Builder) WithReplacementPolicy(p replacement.Policy) Builder {
	b.replPolicy = p
	return b
}

func (b Builder) Build(name string) *Cache {
	repl := b.replPolicy
	if repl == nil {
		repl = replacement.NewLRU(1<<b.indexBits, b.associativity)
	}

	c := NewCache(b.lineOffsetBits, b.indexBits, b.associativity, b.cacheType, b.latency, repl)
	c.Name = name
	c.Inclusive = b.inclusive
	c.IsLargePageTLB = b.largePageTLB
	return c
}

// SysBuilder builds a CacheSys with a fluent configuration style.
type SysBuilder struct {
	isTranslationHier bool
	memoryLatency     uint64
}

func MakeSysBuilder() SysBuilder {
	return SysBuilder{}
}

func (b SysBuilder) WithTranslationHier(isTranslationHier bool) SysBuilder {
	b.isTranslationHier = isTranslationHier
	return b
}

func (b SysBuilder) WithMemoryLatency(cycles uint64) SysBuilder {
	b.memoryLatency = cycles
	return b
}

func (b SysBuilder) Build(name string) *CacheSys {
	return NewCacheSys(name, b.isTranslationHier, b.memoryLatency)
}
