package kernel

import (
	"context"
	"errors"
	"time"
)

// ErrTickLimit is returned by RunUntilIdle when the machine is still busy
// after the tick budget.
var ErrTickLimit = errors.New("tick limit reached")

// Run drives the kernel from a host clock until ctx is cancelled or the
// kernel halts.
func (k *Kernel) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := k.Tick(); err != nil {
				return err
			}
		}
	}
}

// RunTicks runs n ticks back to back.
func (k *Kernel) RunTicks(n int) error {
	for i := 0; i < n; i++ {
		if err := k.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// RunUntilIdle ticks until no interrupt is pending, the CPU is idle, and
// nothing is ready, and returns the number of ticks run.
func (k *Kernel) RunUntilIdle(maxTicks int) (int, error) {
	for ticks := 0; ticks < maxTicks; ticks++ {
		if k.Idle() {
			return ticks, nil
		}
		if err := k.Tick(); err != nil {
			return ticks + 1, err
		}
	}

	if k.Idle() {
		return maxTicks, nil
	}
	return maxTicks, ErrTickLimit
}

// Idle reports whether the machine has nothing left to do.
func (k *Kernel) Idle() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	return len(k.interrupts) == 0 && !k.cpu.Executing() && !k.scheduler.HasReady()
}
