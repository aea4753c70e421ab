package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/jambos/kernel"
	"github.com/sarchlab/jambos/loader"
)

type runCmd struct {
	Programs []string `arg:"" type:"existingfile" help:"Program files holding hex byte listings."`
	Priority []int    `help:"Priorities for the programs, in order. Missing entries default to 0."`
	MaxTicks int      `help:"Give up after this many ticks." default:"1000000"`
	Stats    bool     `help:"Print kernel statistics when done."`
}

func (r *runCmd) Run(g *Globals) error {
	cfg, err := g.machineConfig()
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, isTerminal(os.Stderr), g.level())
	k, err := kernel.Boot(cfg,
		kernel.WithConsole(os.Stdout),
		kernel.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	return r.run(k, os.Stdout)
}

func (r *runCmd) run(k *kernel.Kernel, out io.Writer) error {
	for i, path := range r.Programs {
		prog, err := loader.Load(path)
		if err != nil {
			return err
		}

		priority := 0
		if i < len(r.Priority) {
			priority = r.Priority[i]
		}

		pcb, err := k.Load(prog.Code, priority)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(out, "Loaded %s as pid %d (%s)\n", prog.Name, pcb.PID, pcb.State)
	}

	if _, err := k.RunAll(); err != nil {
		return err
	}

	ticks, err := k.RunUntilIdle(r.MaxTicks)
	if r.Stats {
		printStats(out, k.Stats(), ticks)
	}
	return err
}

func printStats(out io.Writer, stats kernel.Stats, ticks int) {
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Ticks:            %d\n", ticks)
	fmt.Fprintf(out, "Instructions:     %d\n", stats.Instructions)
	fmt.Fprintf(out, "Interrupts:       %d\n", stats.Interrupts)
	fmt.Fprintf(out, "Context switches: %d\n", stats.ContextSwitches)
	fmt.Fprintf(out, "Idle ticks:       %d\n", stats.IdleTicks)
	fmt.Fprintf(out, "Traps:            %d\n", stats.Traps)
}
