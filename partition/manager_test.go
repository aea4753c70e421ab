package partition_test

import (
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/jambos/backing"
	"github.com/sarchlab/jambos/emu"
	"github.com/sarchlab/jambos/partition"
	"github.com/sarchlab/jambos/process"
)

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

var _ = Describe("Manager", func() {
	var (
		memory  *emu.Memory
		manager *partition.Manager
	)

	newManager := func(opts ...partition.Option) *partition.Manager {
		opts = append([]partition.Option{partition.WithLogger(quietLogger())}, opts...)
		m, err := partition.NewManager(memory, 3, opts...)
		Expect(err).NotTo(HaveOccurred())
		return m
	}

	loadN := func(n int) []*process.PCB {
		pcbs := make([]*process.PCB, n)
		for i := range pcbs {
			pcbs[i] = process.New(uint32(i), 0, 2)
			Expect(manager.Load(pcbs[i], []byte{0xEA, byte(0x10 + i)})).To(Succeed())
		}
		return pcbs
	}

	BeforeEach(func() {
		memory = emu.NewMemory(768)
		manager = newManager()
	})

	Describe("partition table", func() {
		It("should split memory into equal partitions", func() {
			parts := manager.Partitions()

			Expect(parts).To(HaveLen(3))
			Expect(parts[0]).To(Equal(partition.Partition{Index: 0, Base: 0, Limit: 255, Open: true}))
			Expect(parts[1].Base).To(Equal(uint64(256)))
			Expect(parts[2].Limit).To(Equal(uint64(767)))
			Expect(manager.PartitionSize()).To(Equal(uint64(256)))
			Expect(manager.Active()).To(Equal(0))
		})

		It("should reject a partition count of zero", func() {
			_, err := partition.NewManager(memory, 0)
			Expect(err).To(MatchError(partition.ErrInvalidPartition))
		})
	})

	Describe("Allocate", func() {
		It("should bind the partition bounds to the PCB", func() {
			pcb := process.New(0, 0, 0)

			Expect(manager.Allocate(pcb, 1)).To(Succeed())

			Expect(pcb.Partition).To(Equal(1))
			Expect(pcb.Base).To(Equal(uint64(256)))
			Expect(pcb.Limit).To(Equal(uint64(511)))
			Expect(manager.Partitions()[1].Open).To(BeFalse())
			Expect(manager.Owner(1)).To(BeIdenticalTo(pcb))
		})

		It("should refuse an occupied partition", func() {
			Expect(manager.Allocate(process.New(0, 0, 0), 0)).To(Succeed())

			err := manager.Allocate(process.New(1, 0, 0), 0)
			Expect(err).To(MatchError(partition.ErrPartitionInUse))
		})

		It("should refuse an index out of range", func() {
			err := manager.Allocate(process.New(0, 0, 0), 3)
			Expect(err).To(MatchError(partition.ErrInvalidPartition))
		})
	})

	Describe("Load", func() {
		It("should place the program in the lowest open partition", func() {
			pcb := process.New(0, 0, 6)

			Expect(manager.Load(pcb, []byte{0xA9, 0x03, 0x8D, 0x41, 0x00, 0x00})).To(Succeed())

			Expect(pcb.State).To(Equal(process.StateNew))
			Expect(pcb.Base).To(Equal(uint64(0)))
			Expect(pcb.Limit).To(Equal(uint64(255)))
			Expect(memory.Read8(0)).To(Equal(byte(0xA9)))
			Expect(manager.Active()).To(Equal(1))
		})

		It("should reject programs larger than a partition", func() {
			err := manager.Load(process.New(0, 0, 257), make([]byte, 257))

			Expect(err).To(MatchError(partition.ErrProgramTooLarge))
			Expect(manager.Partitions()[0].Open).To(BeTrue())
		})

		It("should run out of memory on the fourth load without swap", func() {
			loadN(3)

			err := manager.Load(process.New(3, 0, 2), []byte{0xEA, 0x00})

			Expect(err).To(MatchError(partition.ErrOutOfMemory))
			Expect(manager.Active()).To(Equal(-1))
		})

		It("should place the fourth program in the backing store with swap", func() {
			store := backing.NewMemoryStore()
			manager = newManager(partition.WithBackingStore(store))
			loadN(3)
			pcb := process.New(3, 0, 2)

			Expect(manager.Load(pcb, []byte{0xEA, 0x00})).To(Succeed())

			Expect(pcb.State).To(Equal(process.StateInBackingStore))
			Expect(pcb.InMemory()).To(BeFalse())
			image, err := store.Read("process-3")
			Expect(err).NotTo(HaveOccurred())
			Expect(image).To(HaveLen(256))
			Expect(image[0]).To(Equal(byte(0xEA)))
		})

		It("should never occupy more partitions than it has", func() {
			manager = newManager(partition.WithBackingStore(backing.NewMemoryStore()))
			for i := 0; i < 6; i++ {
				Expect(manager.Load(process.New(uint32(i), 0, 1), []byte{0xEA})).To(Succeed())
				Expect(len(manager.Occupied())).To(BeNumerically("<=", 3))
			}
		})
	})

	Describe("Deallocate", func() {
		It("should zero-fill and reopen the partition", func() {
			pcbs := loadN(2)

			Expect(manager.Deallocate(pcbs[0])).To(Succeed())

			Expect(pcbs[0].InMemory()).To(BeFalse())
			Expect(memory.Read8(0)).To(Equal(byte(0)))
			Expect(memory.Read8(1)).To(Equal(byte(0)))
			Expect(manager.Partitions()[0].Open).To(BeTrue())
			Expect(manager.Active()).To(Equal(0))
			Expect(memory.Read8(256)).To(Equal(byte(0xEA)))
		})

		It("should delete a swapped-out image", func() {
			store := backing.NewMemoryStore()
			manager = newManager(partition.WithBackingStore(store))
			loadN(3)
			pcb := process.New(3, 0, 1)
			Expect(manager.Load(pcb, []byte{0xEA})).To(Succeed())

			Expect(manager.Deallocate(pcb)).To(Succeed())

			keys, _ := store.List()
			Expect(keys).To(BeEmpty())
		})
	})

	Describe("ValidateAddress", func() {
		It("should check the address against the given process only", func() {
			pcbs := loadN(2)

			Expect(manager.ValidateAddress(0, pcbs[0])).To(BeTrue())
			Expect(manager.ValidateAddress(255, pcbs[0])).To(BeTrue())
			Expect(manager.ValidateAddress(256, pcbs[0])).To(BeFalse())
			Expect(manager.ValidateAddress(256, pcbs[1])).To(BeTrue())
			Expect(manager.ValidateAddress(0, pcbs[1])).To(BeFalse())
		})

		It("should reject processes with no partition", func() {
			Expect(manager.ValidateAddress(0, process.New(9, 0, 0))).To(BeFalse())
			Expect(manager.ValidateAddress(0, nil)).To(BeFalse())
		})
	})

	Describe("swapping", func() {
		var store *backing.MemoryStore

		BeforeEach(func() {
			store = backing.NewMemoryStore()
			manager = newManager(partition.WithBackingStore(store))
		})

		It("should restore registers and image after a round trip", func() {
			pcbs := loadN(1)
			pcb := pcbs[0]
			pcb.PC, pcb.ACC, pcb.X, pcb.Y, pcb.Z = 1, 2, 3, 4, true
			Expect(memory.Write8(200, 0x77)).To(Succeed())
			before, _ := memory.Read(0, 256)
			regs := pcb.Snapshot()

			Expect(manager.RollOut(pcb)).To(Succeed())
			Expect(pcb.State).To(Equal(process.StateInBackingStore))
			Expect(manager.Partitions()[0].Open).To(BeTrue())
			Expect(memory.Read8(200)).To(Equal(byte(0)))

			Expect(manager.RollIn(pcb)).To(Succeed())

			after, _ := memory.Read(pcb.Base, pcb.Size())
			Expect(after).To(Equal(before))
			Expect(pcb.PC).To(Equal(regs.PC))
			Expect(pcb.ACC).To(Equal(regs.ACC))
			Expect(pcb.X).To(Equal(regs.X))
			Expect(pcb.Y).To(Equal(regs.Y))
			Expect(pcb.Z).To(Equal(regs.Z))
			Expect(pcb.State).To(Equal(process.StateReady))

			keys, _ := store.List()
			Expect(keys).To(BeEmpty())
		})

		It("should roll out the least recently used process to make room", func() {
			pcbs := loadN(3)
			incoming := process.New(3, 0, 1)
			Expect(manager.Load(incoming, []byte{0xEA})).To(Succeed())
			manager.Touch(pcbs[0])

			Expect(manager.RollIn(incoming)).To(Succeed())

			Expect(pcbs[1].State).To(Equal(process.StateInBackingStore))
			Expect(incoming.Partition).To(Equal(1))
			Expect(pcbs[0].InMemory()).To(BeTrue())
			Expect(pcbs[2].InMemory()).To(BeTrue())
		})

		It("should never roll out the running process", func() {
			pcbs := loadN(3)
			pcbs[0].State = process.StateRunning
			incoming := process.New(3, 0, 1)
			Expect(manager.Load(incoming, []byte{0xEA})).To(Succeed())

			Expect(manager.RollIn(incoming)).To(Succeed())

			Expect(pcbs[0].InMemory()).To(BeTrue())
			Expect(pcbs[1].State).To(Equal(process.StateInBackingStore))
		})

		It("should fall back to partition order past the tracker capacity", func() {
			manager = newManager(
				partition.WithBackingStore(store),
				partition.WithRecencyCapacity(1),
			)
			pcbs := loadN(3)
			pcbs[2].State = process.StateRunning
			incoming := process.New(3, 0, 1)
			Expect(manager.Load(incoming, []byte{0xEA})).To(Succeed())

			Expect(manager.RollIn(incoming)).To(Succeed())

			Expect(pcbs[0].State).To(Equal(process.StateInBackingStore))
			Expect(incoming.Partition).To(Equal(0))
		})

		It("should fail when nothing can be rolled out", func() {
			pcbs := loadN(3)
			for _, pcb := range pcbs {
				pcb.State = process.StateTerminated
			}
			pcbs[0].State = process.StateRunning
			incoming := process.New(3, 0, 1)
			Expect(manager.Load(incoming, []byte{0xEA})).To(Succeed())

			Expect(manager.RollIn(incoming)).To(MatchError(partition.ErrOutOfMemory))
			Expect(incoming.State).To(Equal(process.StateInBackingStore))
		})

		It("should refuse to swap without a backing store", func() {
			manager = newManager()
			pcbs := loadN(1)

			Expect(manager.RollOut(pcbs[0])).To(MatchError(partition.ErrNoSwap))
		})
	})
})
