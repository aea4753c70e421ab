package emu_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/jambos/emu"
	"github.com/sarchlab/jambos/insts"
	"github.com/sarchlab/jambos/process"
)

// partitionPCB returns a PCB bound to the 256-byte partition at base.
func partitionPCB(pid uint32, index int, base uint64) *process.PCB {
	pcb := process.New(pid, 0, 0)
	pcb.Partition = index
	pcb.Base = base
	pcb.Limit = base + 255
	return pcb
}

var _ = Describe("Emulator", func() {
	var (
		memory    *emu.Memory
		e         *emu.Emulator
		stdoutBuf *bytes.Buffer
		pcb       *process.PCB
	)

	load := func(program ...byte) {
		Expect(memory.Write(pcb.Base, program)).To(Succeed())
		e.Start(pcb)
	}

	BeforeEach(func() {
		memory = emu.NewMemory(768)
		stdoutBuf = &bytes.Buffer{}
		e = emu.NewEmulator(memory, emu.WithStdout(stdoutBuf))
		pcb = partitionPCB(0, 1, 256)
	})

	Describe("NewEmulator", func() {
		It("should create an idle emulator", func() {
			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.Memory()).To(BeIdenticalTo(memory))
			Expect(e.Executing()).To(BeFalse())
			Expect(e.Current()).To(BeNil())
		})

		It("should refuse to step while idle", func() {
			result := e.Step()

			Expect(result.Err).To(MatchError(emu.ErrNotExecuting))
		})
	})

	Describe("Start and Stop", func() {
		It("should load the PCB registers on start", func() {
			pcb.PC = 4
			pcb.ACC = 1
			pcb.X = 2
			pcb.Y = 3
			pcb.Z = true

			e.Start(pcb)

			Expect(e.Executing()).To(BeTrue())
			Expect(e.Current()).To(BeIdenticalTo(pcb))
			Expect(*e.RegFile()).To(Equal(emu.RegFile{PC: 4, ACC: 1, X: 2, Y: 3, Z: true}))
		})

		It("should zero all registers on stop", func() {
			pcb.ACC = 5
			e.Start(pcb)

			e.Stop()

			Expect(e.Executing()).To(BeFalse())
			Expect(e.Current()).To(BeNil())
			Expect(*e.RegFile()).To(BeZero())
		})
	})

	Describe("Step", func() {
		It("should load constants", func() {
			load(0xA9, 0x07, 0xA2, 0x08, 0xA0, 0x09)

			e.Step()
			e.Step()
			result := e.Step()

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(e.RegFile().ACC).To(Equal(uint16(7)))
			Expect(e.RegFile().X).To(Equal(uint16(8)))
			Expect(e.RegFile().Y).To(Equal(uint16(9)))
			Expect(e.RegFile().PC).To(Equal(uint16(6)))
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
		})

		It("should write registers back into the bound PCB", func() {
			load(0xA9, 0x03)

			result := e.Step()

			Expect(result.Inst.Op).To(Equal(insts.OpLDAImm))
			Expect(pcb.ACC).To(Equal(uint16(3)))
			Expect(pcb.PC).To(Equal(uint16(2)))
			Expect(pcb.State).To(Equal(process.StateRunning))
		})

		It("should offset addresses by the partition base", func() {
			// STA $0010 ; LDX $0010
			load(0xA9, 0x2A, 0x8D, 0x10, 0x00, 0xAE, 0x10, 0x00)

			e.Step()
			e.Step()
			e.Step()

			Expect(memory.Read8(256 + 0x10)).To(Equal(byte(0x2A)))
			Expect(memory.Read8(0x10)).To(BeZero())
			Expect(e.RegFile().X).To(Equal(uint16(0x2A)))
		})

		It("should combine operand bytes low byte first", func() {
			Expect(memory.Write(256+0x0102, []byte{0x55})).To(Succeed())
			pcb.Limit = 256 + 511
			load(0xAD, 0x02, 0x01)

			e.Step()

			Expect(e.RegFile().ACC).To(Equal(uint16(0x55)))
		})

		It("should load Y from memory", func() {
			load(0xAC, 0x03, 0x00, 0x44)

			e.Step()

			Expect(e.RegFile().Y).To(Equal(uint16(0x44)))
		})

		It("should add with wrap-around", func() {
			// LDA #$F0 ; ADC $0006 ; BRK ; data $20
			load(0xA9, 0xF0, 0x6D, 0x06, 0x00, 0x00, 0x20)

			e.Step()
			e.Step()

			Expect(e.RegFile().ACC).To(Equal(uint16(0x10)))
		})

		It("should increment a byte in memory", func() {
			load(0xEE, 0x04, 0x00, 0x00, 0xFF)

			e.Step()

			Expect(memory.Read8(256 + 4)).To(BeZero())
		})

		It("should advance past NOP only", func() {
			load(0xEA, 0xA9, 0x01)

			e.Step()
			Expect(e.RegFile().PC).To(Equal(uint16(1)))

			e.Step()
			Expect(e.RegFile().ACC).To(Equal(uint16(1)))
		})

		It("should report BRK as an exit", func() {
			load(0x00)

			result := e.Step()

			Expect(result.Exited).To(BeTrue())
			Expect(result.Err).NotTo(HaveOccurred())
		})

		Context("compare and branch", func() {
			It("should set Z when X equals memory", func() {
				load(0xA2, 0x05, 0xEC, 0x05, 0x00, 0x05)

				e.Step()
				e.Step()

				Expect(e.RegFile().Z).To(BeTrue())
			})

			It("should clear Z when X differs", func() {
				pcb.Z = true
				load(0xA2, 0x04, 0xEC, 0x05, 0x00, 0x05)

				e.Step()
				e.Step()

				Expect(e.RegFile().Z).To(BeFalse())
			})

			It("should branch forward when Z is clear", func() {
				load(0xD0, 0x03)

				e.Step()

				Expect(e.RegFile().PC).To(Equal(uint16(5)))
			})

			It("should consume the offset but not branch when Z is set", func() {
				pcb.Z = true
				load(0xD0, 0x03)

				e.Step()

				Expect(e.RegFile().PC).To(Equal(uint16(2)))
			})

			It("should wrap branches modulo the partition size", func() {
				// At pc=2 after the operand, an offset of 0xFE lands on 0.
				load(0xD0, 0xFE)

				e.Step()

				Expect(e.RegFile().PC).To(BeZero())
			})
		})

		Context("faults", func() {
			It("should reject unknown opcodes without executing", func() {
				load(0x42, 0xA9, 0x01)

				result := e.Step()

				Expect(result.Err).To(MatchError(emu.ErrInvalidOpcode))
				Expect(result.Inst.Op).To(Equal(insts.OpUnknown))
				Expect(e.Executing()).To(BeTrue())
				Expect(e.InstructionCount()).To(BeZero())
			})

			It("should refuse operands outside the partition", func() {
				// STA $0100 is one past the 256-byte partition.
				load(0xA9, 0x77, 0x8D, 0x00, 0x01)

				e.Step()
				result := e.Step()

				Expect(result.Err).To(MatchError(emu.ErrInvalidAddress))
				Expect(memory.Read8(512)).To(BeZero())
			})

			It("should validate against the issuing process only", func() {
				other := partitionPCB(1, 0, 0)
				Expect(memory.Write(0, []byte{0xAD, 0x00, 0x01})).To(Succeed())
				e.Start(other)

				result := e.Step()

				Expect(result.Err).To(MatchError(emu.ErrInvalidAddress))
			})

			It("should stop when the PC leaves the partition", func() {
				pcb.PC = 255
				load()
				Expect(memory.Write8(256+255, 0xA9)).To(Succeed())

				result := e.Step()

				Expect(result.Err).To(MatchError(emu.ErrPCOutOfRange))
				Expect(e.Executing()).To(BeFalse())
			})
		})
	})

	Describe("Reset", func() {
		It("should clear the instruction count", func() {
			load(0xEA)
			e.Step()

			e.Reset()

			Expect(e.InstructionCount()).To(BeZero())
			Expect(e.Executing()).To(BeFalse())
		})
	})
})
