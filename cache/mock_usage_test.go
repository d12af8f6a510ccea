package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/tlbcoh/cache"
	"github.com/sarchlab/tlbcoh/request"
)

var _ = Describe("Cache against a mocked Core facade", func() {
	It("rewrites the address through GetL3TLBAddr and resolves the lower cache dynamically at the translation/data boundary", func() {
		ctrl := gomock.NewController(GinkgoT())
		defer ctrl.Finish()

		tlb := cache.MakeBuilder().
			WithLineOffsetBits(6).WithIndexBits(0).WithAssociativity(2).
			WithCacheType(cache.TranslationOnly).WithLatency(2).
			Build("TLB")
		tlbSys := cache.MakeSysBuilder().WithTranslationHier(true).WithMemoryLatency(0).Build("tlb")
		tlbSys.AddCache(tlb)

		dataTerm := cache.MakeBuilder().
			WithLineOffsetBits(6).WithIndexBits(0).WithAssociativity(2).
			WithCacheType(cache.DataAndTranslation).WithLatency(10).
			Build("L2")
		dataSys := cache.MakeSysBuilder().WithTranslationHier(false).WithMemoryLatency(100).Build("data")
		dataSys.AddCache(dataTerm)

		facade := NewMockCoreFacade(ctrl)
		facade.EXPECT().
			LowerCache(gomock.Any(), true, false, 1, cache.TranslationOnly).
			Return(dataTerm, true)
		facade.EXPECT().
			GetL3TLBAddr(uint64(0x4000), uint64(7), false, true).
			Return(uint64(1 << 48))

		tlbSys.SetCoreFacade(facade)

		status := tlbSys.LookupAndFillCache(0x4000, request.TranslationRead, 7, false)
		Expect(status).To(Equal(request.StatusMiss))
	})

	It("reports MSHR back pressure through the facade-resolved path without mutating any state", func() {
		ctrl := gomock.NewController(GinkgoT())
		defer ctrl.Finish()

		tlb := cache.MakeBuilder().
			WithLineOffsetBits(6).WithIndexBits(0).WithAssociativity(1).
			WithCacheType(cache.TranslationOnly).WithLatency(2).
			Build("TLB")
		tlbSys := cache.MakeSysBuilder().WithTranslationHier(true).WithMemoryLatency(0).Build("tlb")
		tlbSys.AddCache(tlb)

		facade := NewMockCoreFacade(ctrl)
		facade.EXPECT().
			LowerCache(gomock.Any(), true, false, 1, cache.TranslationOnly).
			Return(nil, false).
			AnyTimes()
		facade.EXPECT().
			GetL3TLBAddr(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(uint64(0)).
			AnyTimes()
		tlbSys.SetCoreFacade(facade)

		Expect(tlbSys.LookupAndFillCache(0x4000, request.TranslationRead, 7, false)).To(Equal(request.StatusMiss))
		Expect(tlbSys.LookupAndFillCache(0x8000, request.TranslationRead, 7, false)).To(Equal(request.StatusRetry))
	})
})

var _ = Describe("Cache against a mocked RetirementSink", func() {
	It("calls MarkDone exactly once per retired L1 data request", func() {
		ctrl := gomock.NewController(GinkgoT())
		defer ctrl.Finish()

		l1 := cache.MakeBuilder().
			WithLineOffsetBits(6).WithIndexBits(0).WithAssociativity(2).
			WithLatency(1).
			Build("L1")
		sys := cache.MakeSysBuilder().WithTranslationHier(false).WithMemoryLatency(10).Build("data")
		sys.AddCache(l1)
		sys.SetCoreID(0)

		sink := NewMockRetirementSink(ctrl)
		sink.EXPECT().MarkDone(uint64(0x0000), request.DataRead).Times(1)
		l1.SetRetirementSink(sink)

		Expect(sys.LookupAndFillCache(0x0000, request.DataRead, 0, false)).To(Equal(request.StatusMiss))

		for i := 0; i < 12; i++ {
			sys.Tick()
		}
	})
})
