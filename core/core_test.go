package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tlbcoh/cache"
	"github.com/sarchlab/tlbcoh/core"
	"github.com/sarchlab/tlbcoh/request"
)

// wireCore builds one core's private data (L1 DATA_ONLY + L2
// DATA_AND_TRANSLATION) and translation (one small-page TLB level)
// hierarchies and wires them through a Core and its Directory, matching the
// translation-to-data boundary crossing in spec.md §4.3.
func wireCore() (*core.Core, *cache.CacheSys, *cache.CacheSys) {
	tlb := cache.MakeBuilder().
		WithLineOffsetBits(6).WithIndexBits(0).WithAssociativity(2).
		WithCacheType(cache.TranslationOnly).WithLatency(2).
		Build("TLB")
	l1 := cache.MakeBuilder().
		WithLineOffsetBits(6).WithIndexBits(0).WithAssociativity(2).
		WithLatency(1).
		Build("L1")
	l2 := cache.MakeBuilder().
		WithLineOffsetBits(6).WithIndexBits(0).WithAssociativity(2).
		WithCacheType(cache.DataAndTranslation).WithLatency(10).
		Build("L2")

	translationSys := cache.MakeSysBuilder().WithTranslationHier(true).WithMemoryLatency(0).Build("tlb")
	dataSys := cache.MakeSysBuilder().WithTranslationHier(false).WithMemoryLatency(100).Build("data")

	dataSys.AddCache(l1)
	dataSys.AddCache(l2)
	translationSys.AddCache(tlb)

	dir := core.NewDirectory(1<<48, 4096)
	c := core.NewCore(0, dataSys, translationSys, dir)

	return c, dataSys, translationSys
}

var _ = Describe("Core", func() {
	Describe("a TLB miss crossing the translation-to-data boundary", func() {
		It("resolves through the data hierarchy's terminal cache and releases back to the TLB", func() {
			_, dataSys, translationSys := wireCore()

			status := translationSys.LookupAndFillCache(0x4000, request.TranslationRead, 0, false)
			Expect(status).To(Equal(request.StatusMiss))

			// Still locked: a repeat access before the miss retires finds
			// the in-flight MSHR entry rather than a resident line.
			status = translationSys.LookupAndFillCache(0x4000, request.TranslationRead, 0, false)
			Expect(status).To(Equal(request.StatusMSHRHit))

			// TLB latency (2) + L2 latency (10) + memory latency (100):
			// the wait list lives on the data hierarchy's CacheSys, since
			// the miss crossed all the way down into L2.
			for i := 0; i < 112; i++ {
				dataSys.Tick()
			}

			status = translationSys.LookupAndFillCache(0x4000, request.TranslationRead, 0, false)
			Expect(status).To(Equal(request.StatusHit))
		})

		It("maps the same (va, tid, page size) to a stable synthetic L3 TLB address across repeated crossings", func() {
			c, dataSys, translationSys := wireCore()

			Expect(translationSys.LookupAndFillCache(0x8000, request.TranslationRead, 7, false)).To(Equal(request.StatusMiss))
			for i := 0; i < 112; i++ {
				dataSys.Tick()
			}

			first := c.GetL3TLBAddr(0x8000, 7, false, false)
			second := c.GetL3TLBAddr(0x8000, 7, false, false)
			Expect(second).To(Equal(first))

			va, ok := c.RetrieveAddr(first, 7, false, true)
			Expect(ok).To(BeTrue())
			Expect(va).To(Equal(uint64(0x8000)))
		})
	})
})
