package process_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/jambos/process"
)

var _ = Describe("PCB", func() {
	It("should start in the New state without a partition", func() {
		pcb := process.New(7, 2, 6)

		Expect(pcb.PID).To(Equal(uint32(7)))
		Expect(pcb.State).To(Equal(process.StateNew))
		Expect(pcb.Partition).To(Equal(process.NoPartition))
		Expect(pcb.InMemory()).To(BeFalse())
		Expect(pcb.Size()).To(BeZero())
		Expect(pcb.Priority).To(Equal(2))
		Expect(pcb.ProgramSize).To(Equal(6))
	})

	It("should report the partition size while in memory", func() {
		pcb := process.New(0, 0, 0)
		pcb.Partition = 1
		pcb.Base = 256
		pcb.Limit = 511

		Expect(pcb.InMemory()).To(BeTrue())
		Expect(pcb.Size()).To(Equal(uint64(256)))
	})

	It("should derive the swap key from the pid", func() {
		Expect(process.New(12, 0, 0).SwapKey()).To(Equal("process-12"))
	})

	It("should snapshot by value", func() {
		pcb := process.New(1, 0, 0)
		snap := pcb.Snapshot()
		pcb.ACC = 9

		Expect(snap.ACC).To(BeZero())
	})

	It("should name states", func() {
		Expect(process.StateInBackingStore.String()).To(Equal("in backing store"))
		Expect(process.State(99).String()).To(Equal("State(99)"))
	})
})

var _ = Describe("IDAllocator", func() {
	It("should hand out monotonically increasing ids from zero", func() {
		ids := process.NewIDAllocator()

		Expect(ids.Peek()).To(Equal(uint32(0)))
		Expect(ids.Next()).To(Equal(uint32(0)))
		Expect(ids.Next()).To(Equal(uint32(1)))
		Expect(ids.Peek()).To(Equal(uint32(2)))
		Expect(ids.Next()).To(Equal(uint32(2)))
	})
})
