package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/jambos/emu"
)

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory(768)
	})

	It("should start zero-filled", func() {
		Expect(memory.Size()).To(Equal(uint64(768)))
		Expect(memory.Read8(0)).To(BeZero())
		Expect(memory.Read8(767)).To(BeZero())
	})

	It("should read back written bytes", func() {
		Expect(memory.Write8(300, 0xA9)).To(Succeed())

		Expect(memory.Read8(300)).To(Equal(byte(0xA9)))
	})

	It("should read and write ranges", func() {
		Expect(memory.Write(256, []byte{1, 2, 3})).To(Succeed())

		data, err := memory.Read(256, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte{1, 2, 3}))
	})

	It("should reject ranges past the end", func() {
		Expect(memory.Write(767, []byte{1, 2})).NotTo(Succeed())

		_, err := memory.Read(700, 100)
		Expect(err).To(HaveOccurred())
	})

	It("should reject single-byte accesses past the end", func() {
		Expect(memory.Write8(768, 7)).NotTo(Succeed())

		_, err := memory.Read8(768)
		Expect(err).To(HaveOccurred())
	})

	It("should zero an inclusive range", func() {
		Expect(memory.Write(0, []byte{9, 9, 9, 9})).To(Succeed())

		Expect(memory.Zero(1, 2)).To(Succeed())

		data, _ := memory.Read(0, 4)
		Expect(data).To(Equal([]byte{9, 0, 0, 9}))
	})
})
