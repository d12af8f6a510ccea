package replacement_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tlbcoh/replacement"
)

var _ = Describe("LRU", func() {
	var l *replacement.LRU

	BeforeEach(func() {
		l = replacement.NewLRU(4, 4)
	})

	It("should pick the highest initial way index as the first victim", func() {
		Expect(l.Victim(0)).To(Equal(3))
	})

	It("should move an accessed way to the MRU position", func() {
		l.Update(0, 3)
		Expect(l.Victim(0)).To(Equal(2))
	})

	It("should keep the stack a permutation of [0, associativity) after every update", func() {
		accesses := []int{2, 0, 3, 1, 2, 2, 0, 3}
		for _, way := range accesses {
			l.Update(0, way)
		}

		seenPos := map[int]bool{}
		for w := 0; w < 4; w++ {
			v := l.Victim(0)
			Expect(seenPos[v]).To(BeFalse(), "victim %d repeated, stack is not a permutation", v)
			seenPos[v] = true
			l.Update(0, v)
		}
		Expect(seenPos).To(HaveLen(4))
	})

	It("should not disturb a second set's state", func() {
		l.Update(0, 0)
		Expect(l.Victim(1)).To(Equal(3))
	})

	It("should have no victim tie in a fresh set, whose victim is its highest way index", func() {
		fresh := replacement.NewLRU(1, 4)
		Expect(fresh.Victim(0)).To(Equal(3))
	})
})
