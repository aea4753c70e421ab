// Package kernel ties the CPU, the memory manager, and the scheduler together
// behind a single tick-driven interrupt loop.
package kernel

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/jambos/backing"
	"github.com/sarchlab/jambos/config"
	"github.com/sarchlab/jambos/emu"
	"github.com/sarchlab/jambos/partition"
	"github.com/sarchlab/jambos/process"
	"github.com/sarchlab/jambos/sched"
)

var (
	// ErrHalted is returned by every operation after the kernel halted.
	ErrHalted = errors.New("kernel halted")
	// ErrNoSuchProcess is returned for a pid that is not resident.
	ErrNoSuchProcess = errors.New("no such process")
	// ErrAlreadyScheduled is returned when executing a process that is
	// already running or waiting to run.
	ErrAlreadyScheduled = errors.New("process already scheduled")
	// ErrProcessRunning is returned when an operation needs the process
	// to be off the CPU.
	ErrProcessRunning = errors.New("process is running")
	// ErrOutOfMemory is returned when a program cannot be placed.
	ErrOutOfMemory = partition.ErrOutOfMemory
)

// idleLogInterval is how many idle ticks pass between idle log lines.
const idleLogInterval = 10

// Stats counts the kernel's work since boot.
type Stats struct {
	Ticks           uint64
	Instructions    uint64
	Interrupts      uint64
	IdleTicks       uint64
	ContextSwitches uint64
	Traps           uint64
}

// CPUStatus is a snapshot of the CPU registers.
type CPUStatus struct {
	PC        uint16
	ACC       uint16
	X         uint16
	Y         uint16
	Z         bool
	Executing bool
	// PID of the bound process, valid only while Executing.
	PID uint32
}

// Kernel is one booted jambOS machine. All methods are safe for concurrent
// use; each tick and each API call runs under one lock.
type Kernel struct {
	mu sync.Mutex

	config    *config.Config
	memory    *emu.Memory
	cpu       *emu.Emulator
	mm        *partition.Manager
	scheduler *sched.Scheduler
	pids      *process.IDAllocator

	interrupts        []Interrupt
	interruptsEnabled bool
	halted            bool

	store    backing.Store
	keyboard KeyboardDriver
	console  io.Writer
	logger   logrus.FieldLogger

	stats Stats
}

// Option configures a Kernel at boot.
type Option func(*Kernel)

// WithConsole sets where program output and error reports are written.
func WithConsole(w io.Writer) Option {
	return func(k *Kernel) {
		k.console = w
	}
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// WithKeyboardDriver registers the driver for keyboard interrupts.
func WithKeyboardDriver(driver KeyboardDriver) Option {
	return func(k *Kernel) {
		k.keyboard = driver
	}
}

// WithBackingStore overrides the swap store chosen from the config.
func WithBackingStore(store backing.Store) Option {
	return func(k *Kernel) {
		k.store = store
	}
}

// Boot builds a machine from cfg. A nil cfg boots the default machine.
func Boot(cfg *config.Config, opts ...Option) (*Kernel, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	k := &Kernel{
		config:            cfg.Clone(),
		pids:              process.NewIDAllocator(),
		interruptsEnabled: true,
		console:           os.Stdout,
		logger:            logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(k)
	}

	if err := k.initSwap(); err != nil {
		return nil, err
	}

	k.memory = emu.NewMemory(cfg.MemorySize)

	mmOpts := []partition.Option{
		partition.WithLogger(k.logger),
		partition.WithRecencyCapacity(cfg.SwapTracking),
	}
	if k.store != nil {
		mmOpts = append(mmOpts, partition.WithBackingStore(k.store))
	}

	mm, err := partition.NewManager(k.memory, cfg.PartitionCount, mmOpts...)
	if err != nil {
		return nil, err
	}
	k.mm = mm

	k.cpu = emu.NewEmulator(k.memory,
		emu.WithStdout(k.console),
		emu.WithAddressValidator(mm),
	)

	k.scheduler = sched.NewScheduler(k.cpu, mm,
		sched.WithAlgorithm(cfg.SchedulingAlgorithm()),
		sched.WithQuantum(cfg.Quantum),
		sched.WithLogger(k.logger),
	)

	k.logger.WithFields(logrus.Fields{
		"memory":     cfg.MemorySize,
		"partitions": cfg.PartitionCount,
		"algorithm":  cfg.Algorithm,
		"quantum":    cfg.Quantum,
		"swap":       k.store != nil,
	}).Info("kernel booted")

	return k, nil
}

// initSwap opens the swap store and discards any images left in it, since
// pids restart from zero on every boot.
func (k *Kernel) initSwap() error {
	if !k.config.SwapEnabled {
		k.store = nil
		return nil
	}

	if k.store == nil {
		if k.config.SwapDir == "" {
			k.store = backing.NewMemoryStore()
		} else {
			store, err := backing.NewDirStore(k.config.SwapDir)
			if err != nil {
				return err
			}
			k.store = store
		}
	}

	if err := k.store.Format(); err != nil {
		return fmt.Errorf("failed to format swap store: %w", err)
	}
	return nil
}

// Config returns a copy of the boot configuration.
func (k *Kernel) Config() *config.Config {
	return k.config.Clone()
}

// Tick performs at most one unit of work: one interrupt, one instruction,
// or nothing.
func (k *Kernel) Tick() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.tick()
}

func (k *Kernel) tick() error {
	if k.halted {
		return ErrHalted
	}

	k.stats.Ticks++

	switch {
	case k.interruptsEnabled && len(k.interrupts) > 0:
		irq := k.interrupts[0]
		k.interrupts = k.interrupts[1:]
		k.stats.Interrupts++
		k.dispatch(irq)
	case k.cpu.Executing():
		k.cycle()
	default:
		k.stats.IdleTicks++
		if k.stats.IdleTicks%idleLogInterval == 0 {
			k.logger.WithField("tick", k.stats.Ticks).Debug("idle")
		}
	}

	if k.halted {
		return ErrHalted
	}
	return nil
}

// cycle executes one instruction of the bound process.
func (k *Kernel) cycle() {
	pcb := k.cpu.Current()
	result := k.cpu.Step()

	if result.Err != nil {
		if errors.Is(result.Err, emu.ErrPCOutOfRange) {
			k.trap(fmt.Sprintf("pid %d: %v", pcb.PID, result.Err), true)
			return
		}

		k.trap(fmt.Sprintf("pid %d: %v", pcb.PID, result.Err), false)
		k.raise(Interrupt{IRQ: IRQProcessTermination, PCB: pcb})
		return
	}

	k.stats.Instructions++
	k.logger.WithFields(logrus.Fields{
		"pid":  pcb.PID,
		"inst": result.Inst.String(),
		"tick": k.stats.Ticks,
	}).Trace("executed")

	if result.Exited {
		k.raise(Interrupt{IRQ: IRQProcessTermination, PCB: pcb})
	}

	if k.scheduler.ScheduleTick() {
		k.raise(Interrupt{IRQ: IRQContextSwitch})
	}
}

func (k *Kernel) raise(irq Interrupt) {
	k.interrupts = append(k.interrupts, irq)
}

// Trap reports a kernel error. A fatal trap disables interrupts and halts the
// kernel until it is booted again.
func (k *Kernel) Trap(msg string, fatal bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.trap(msg, fatal)
}

func (k *Kernel) trap(msg string, fatal bool) {
	k.stats.Traps++
	k.logger.WithField("fatal", fatal).Error(msg)

	if !fatal {
		fmt.Fprintf(k.console, "OS ERROR: %s\n", msg)
		return
	}

	fmt.Fprintf(k.console, "OS FATAL: %s\n", msg)
	k.interruptsEnabled = false
	k.halted = true
	k.cpu.Stop()
}
