// Package config holds the boot configuration of a jambOS machine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sarchlab/jambos/sched"
)

// Config describes the simulated machine and the kernel's policies.
type Config struct {
	// MemorySize is the size of main memory in bytes. Default: 768.
	MemorySize uint64 `json:"memory_size"`

	// PartitionCount is the number of equal fixed partitions. Default: 3.
	PartitionCount int `json:"partition_count"`

	// Quantum is the round-robin quantum in instructions. Default: 6.
	Quantum int `json:"quantum"`

	// Algorithm is one of "rr", "fcfs", or "priority". Default: "rr".
	Algorithm string `json:"algorithm"`

	// ClockIntervalMs is the host clock period. Default: 100.
	ClockIntervalMs int `json:"clock_interval_ms"`

	// SwapEnabled turns on roll-out and roll-in. Default: true.
	SwapEnabled bool `json:"swap_enabled"`

	// SwapDir keeps swapped images on disk. Empty keeps them in memory.
	SwapDir string `json:"swap_dir"`

	// SwapTracking is how many processes the LRU tracker remembers.
	// Default: 64.
	SwapTracking int `json:"swap_tracking"`
}

// DefaultConfig returns the classic three-partition machine.
func DefaultConfig() *Config {
	return &Config{
		MemorySize:      768,
		PartitionCount:  3,
		Quantum:         sched.DefaultQuantum,
		Algorithm:       "rr",
		ClockIntervalMs: 100,
		SwapEnabled:     true,
		SwapTracking:    64,
	}
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the machine can be built from the Config.
func (c *Config) Validate() error {
	if c.PartitionCount < 1 {
		return fmt.Errorf("partition_count must be > 0")
	}
	if c.MemorySize < uint64(c.PartitionCount) {
		return fmt.Errorf("memory_size must be at least partition_count")
	}
	if c.Quantum < 1 {
		return fmt.Errorf("quantum must be > 0")
	}
	if _, err := sched.ParseAlgorithm(c.Algorithm); err != nil {
		return err
	}
	if c.ClockIntervalMs < 1 {
		return fmt.Errorf("clock_interval_ms must be > 0")
	}
	if c.SwapTracking < 1 {
		return fmt.Errorf("swap_tracking must be > 0")
	}
	return nil
}

// SchedulingAlgorithm returns the parsed algorithm.
func (c *Config) SchedulingAlgorithm() sched.Algorithm {
	a, err := sched.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return sched.RoundRobin
	}
	return a
}

// ClockInterval returns the host clock period.
func (c *Config) ClockInterval() time.Duration {
	return time.Duration(c.ClockIntervalMs) * time.Millisecond
}

// PartitionSize returns the size of each partition.
func (c *Config) PartitionSize() uint64 {
	return c.MemorySize / uint64(c.PartitionCount)
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
