package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/jambos/config"
	"github.com/sarchlab/jambos/sched"
)

var _ = Describe("Config", func() {
	Describe("DefaultConfig", func() {
		It("should describe three 256-byte partitions under round robin", func() {
			c := config.DefaultConfig()

			Expect(c.MemorySize).To(Equal(uint64(768)))
			Expect(c.PartitionCount).To(Equal(3))
			Expect(c.PartitionSize()).To(Equal(uint64(256)))
			Expect(c.Quantum).To(Equal(6))
			Expect(c.SchedulingAlgorithm()).To(Equal(sched.RoundRobin))
			Expect(c.ClockInterval()).To(Equal(100 * time.Millisecond))
			Expect(c.SwapEnabled).To(BeTrue())
			Expect(c.SwapDir).To(BeEmpty())
			Expect(c.Validate()).To(Succeed())
		})
	})

	Describe("Validate", func() {
		var c *config.Config

		BeforeEach(func() {
			c = config.DefaultConfig()
		})

		It("should reject zero partitions", func() {
			c.PartitionCount = 0
			Expect(c.Validate()).To(HaveOccurred())
		})

		It("should reject a quantum of zero", func() {
			c.Quantum = 0
			Expect(c.Validate()).To(HaveOccurred())
		})

		It("should reject unknown algorithms", func() {
			c.Algorithm = "lottery"
			Expect(c.Validate()).To(MatchError(sched.ErrUnknownAlgorithm))
		})

		It("should reject memory smaller than the partition count", func() {
			c.MemorySize = 2
			Expect(c.Validate()).To(HaveOccurred())
		})
	})

	Describe("files", func() {
		It("should save and load a config", func() {
			path := filepath.Join(GinkgoT().TempDir(), "jambos.json")
			c := config.DefaultConfig()
			c.Algorithm = "priority"
			c.SwapDir = "/tmp/swap"

			Expect(c.SaveConfig(path)).To(Succeed())
			loaded, err := config.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(c))
		})

		It("should keep defaults for missing fields", func() {
			path := filepath.Join(GinkgoT().TempDir(), "partial.json")
			Expect(os.WriteFile(path, []byte(`{"quantum": 2}`), 0644)).To(Succeed())

			loaded, err := config.LoadConfig(path)

			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Quantum).To(Equal(2))
			Expect(loaded.PartitionCount).To(Equal(3))
		})

		It("should report malformed files", func() {
			path := filepath.Join(GinkgoT().TempDir(), "bad.json")
			Expect(os.WriteFile(path, []byte(`{`), 0644)).To(Succeed())

			_, err := config.LoadConfig(path)
			Expect(err).To(HaveOccurred())
		})
	})

	It("should clone independently", func() {
		c := config.DefaultConfig()
		clone := c.Clone()
		clone.Quantum = 1

		Expect(c.Quantum).To(Equal(6))
	})
})
