package main

import (
	"context"
	"errors"
	"os"

	"github.com/sarchlab/jambos/kernel"
)

type consoleCmd struct{}

func (c *consoleCmd) Run(g *Globals) error {
	cfg, err := g.machineConfig()
	if err != nil {
		return err
	}

	out := newCRLFWriter(os.Stdout)
	logger := newLogger(newCRLFWriter(os.Stderr), isTerminal(os.Stderr), g.level())
	sh := newShell(out)

	k, err := kernel.Boot(cfg,
		kernel.WithConsole(out),
		kernel.WithLogger(logger),
		kernel.WithKeyboardDriver(sh),
	)
	if err != nil {
		return err
	}
	sh.attach(k)

	host := newKeyboardHost(os.Stdin, func(b byte) {
		_ = k.RaiseInterrupt(kernel.Interrupt{
			IRQ:    kernel.IRQKeyboard,
			Params: []int{int(b)},
		})
	})
	if err := host.Start(); err != nil {
		return err
	}
	defer host.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := make(chan error, 1)
	go func() {
		clock <- k.Run(ctx, cfg.ClockInterval())
	}()

	sh.greet()
	for {
		select {
		case line := <-sh.Lines():
			if err := sh.Exec(line); errors.Is(err, errExit) {
				cancel()
				<-clock
				k.Shutdown()
				return nil
			}
			sh.prompt()
		case err := <-clock:
			if errors.Is(err, kernel.ErrHalted) {
				return nil
			}
			return err
		}
	}
}
