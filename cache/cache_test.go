package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tlbcoh/cache"
	"github.com/sarchlab/tlbcoh/replacement"
	"github.com/sarchlab/tlbcoh/request"
	"github.com/sarchlab/tlbcoh/rob"
)

// twoLevelHier builds a private L1/L2 data hierarchy for one core: a 64-byte
// line, single-set (indexBits=0), 2-way associative pair of caches, with L1
// latency 1, L2 latency 10, and the given memory latency, matching the
// worked example in spec.md §8.
func twoLevelHier(memLatency uint64) (*cache.CacheSys, *cache.Cache, *cache.Cache) {
	l1 := cache.MakeBuilder().
		WithLineOffsetBits(6).WithIndexBits(0).WithAssociativity(2).
		WithLatency(1).WithInclusive(true).
		Build("L1")
	l2 := cache.MakeBuilder().
		WithLineOffsetBits(6).WithIndexBits(0).WithAssociativity(2).
		WithLatency(10).WithInclusive(true).
		Build("L2")

	sys := cache.MakeSysBuilder().WithTranslationHier(false).WithMemoryLatency(memLatency).Build("data")
	sys.AddCache(l1)
	sys.AddCache(l2)
	sys.SetCoreID(0)

	return sys, l1, l2
}

var _ = Describe("Cache end-to-end", func() {
	Describe("a cold miss through a two-level hierarchy", func() {
		It("retires at L1+L2+memory latency and notifies the ROB exactly once", func() {
			sys, l1, _ := twoLevelHier(100)
			sink := rob.NewSink()
			l1.SetRetirementSink(sink)

			status := sys.LookupAndFillCache(0x0000, request.DataRead, 0, false)
			Expect(status).To(Equal(request.StatusMiss))

			for i := 0; i < 110; i++ {
				sys.Tick()
				Expect(sink.Total()).To(Equal(0))
			}
			sys.Tick()
			Expect(sink.Total()).To(Equal(1))
			Expect(sink.History()[0].Addr).To(Equal(uint64(0x0000)))
			Expect(sink.History()[0].Kind).To(Equal(request.DataRead))
		})
	})

	Describe("two cold misses sharing an L2 set", func() {
		It("complete independently at the same cycle without disturbing each other", func() {
			sys, l1, _ := twoLevelHier(100)
			sink := rob.NewSink()
			l1.SetRetirementSink(sink)

			Expect(sys.LookupAndFillCache(0x0000, request.DataRead, 0, false)).To(Equal(request.StatusMiss))
			Expect(sys.LookupAndFillCache(0x1000, request.DataRead, 0, false)).To(Equal(request.StatusMiss))

			for i := 0; i < 110; i++ {
				sys.Tick()
			}
			sys.Tick()

			Expect(sink.Total()).To(Equal(2))
			Expect(sink.Count(0x0000)).To(Equal(1))
			Expect(sink.Count(0x1000)).To(Equal(1))
		})
	})

	Describe("a dirty eviction", func() {
		It("forces a writeback to the lower cache and leaves the victim gone", func() {
			// LRU starts every way at its own index as stack position (way 1
			// is the initial victim). Writing 0x0000 first fills way 1 and
			// marks it MRU; reading 0x1000 then fills way 0 and marks it
			// MRU in turn, leaving 0x0000 (dirty) at the bottom of the
			// stack — the victim once a third distinct tag misses.
			sys, l1, _ := twoLevelHier(100)
			sink := rob.NewSink()
			l1.SetRetirementSink(sink)

			drain := func() {
				for i := 0; i < 111; i++ {
					sys.Tick()
				}
			}

			Expect(sys.LookupAndFillCache(0x0000, request.DataWrite, 0, false)).To(Equal(request.StatusMiss))
			drain()
			Expect(sys.LookupAndFillCache(0x1000, request.DataRead, 0, false)).To(Equal(request.StatusMiss))
			drain()

			Expect(l1.Contains(0x0000, 0, false)).To(BeTrue())
			Expect(l1.Contains(0x1000, 0, false)).To(BeTrue())

			Expect(func() {
				Expect(sys.LookupAndFillCache(0x2000, request.DataRead, 0, false)).To(Equal(request.StatusMiss))
			}).NotTo(Panic())
			drain()

			Expect(l1.Contains(0x0000, 0, false)).To(BeFalse())
			Expect(l1.Contains(0x1000, 0, false)).To(BeTrue())
			Expect(l1.Contains(0x2000, 0, false)).To(BeTrue())
		})
	})

	Describe("a two-core coherence broadcast", func() {
		It("invalidates a peer's resident copy on a remote write", func() {
			sysA, _, _ := twoLevelHier(100)
			sysB, l1B, _ := twoLevelHier(100)
			sysA.AddPeer(sysB)
			sysB.AddPeer(sysA)

			drain := func(s *cache.CacheSys) {
				for i := 0; i < 111; i++ {
					s.Tick()
				}
			}

			Expect(sysB.LookupAndFillCache(0x0000, request.DataRead, 0, false)).To(Equal(request.StatusMiss))
			drain(sysB)
			Expect(l1B.Contains(0x0000, 0, false)).To(BeTrue())

			Expect(sysA.LookupAndFillCache(0x0000, request.DataWrite, 0, false)).To(Equal(request.StatusMiss))
			drain(sysA)

			sysB.Tick()

			Expect(l1B.Contains(0x0000, 0, false)).To(BeFalse())
		})
	})

	Describe("MSHR back pressure", func() {
		It("retries a miss once the table is full, and succeeds once a slot frees up", func() {
			l1 := cache.MakeBuilder().
				WithLineOffsetBits(6).WithIndexBits(0).WithAssociativity(16).
				WithLatency(1).
				WithReplacementPolicy(replacement.NewRandom(16, 1)).
				Build("L1")
			sys := cache.MakeSysBuilder().WithTranslationHier(false).WithMemoryLatency(50).Build("data")
			sys.AddCache(l1)
			sys.SetCoreID(0)
			sink := rob.NewSink()
			l1.SetRetirementSink(sink)

			for i := uint64(0); i < 16; i++ {
				addr := i << 6
				Expect(sys.LookupAndFillCache(addr, request.DataRead, 0, false)).To(Equal(request.StatusMiss))
			}

			Expect(sys.LookupAndFillCache(16<<6, request.DataRead, 0, false)).To(Equal(request.StatusRetry))

			for i := 0; i < 51; i++ {
				sys.Tick()
			}
			Expect(sink.Total()).To(Equal(16))

			Expect(sys.LookupAndFillCache(16<<6, request.DataRead, 0, false)).To(Equal(request.StatusMiss))
		})
	})
})
