// Package main provides the jambos command line: batch runs of program files
// and an interactive console on top of the simulated kernel.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/jambos/config"
	"github.com/sarchlab/jambos/sched"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config   string `help:"Path to a JSON machine configuration." type:"existingfile"`
	LogLevel string `help:"Log level." default:"warn" enum:"trace,debug,info,warn,error"`
	Schedule string `help:"Scheduling algorithm: rr, fcfs, or priority. Overrides the config."`
	Quantum  int    `help:"Round-robin quantum. Overrides the config."`
	NoSwap   bool   `help:"Disable roll-out to the backing store."`
	SwapDir  string `help:"Keep swapped images in this directory." type:"path"`
}

// machineConfig loads the configuration and applies flag overrides.
func (g *Globals) machineConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if g.Config != "" {
		var err error
		cfg, err = config.LoadConfig(g.Config)
		if err != nil {
			return nil, err
		}
	}

	if g.Schedule != "" {
		if _, err := sched.ParseAlgorithm(g.Schedule); err != nil {
			return nil, err
		}
		cfg.Algorithm = g.Schedule
	}
	if g.Quantum != 0 {
		cfg.Quantum = g.Quantum
	}
	if g.NoSwap {
		cfg.SwapEnabled = false
	}
	if g.SwapDir != "" {
		cfg.SwapDir = g.SwapDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (g *Globals) level() logrus.Level {
	level, err := logrus.ParseLevel(g.LogLevel)
	if err != nil {
		return logrus.WarnLevel
	}
	return level
}

type cli struct {
	Globals

	Run     runCmd     `cmd:"" default:"withargs" help:"Load program files and run them to completion."`
	Console consoleCmd `cmd:"" help:"Start an interactive jambOS console."`
}

func main() {
	var c cli

	ctx := kong.Parse(&c,
		kong.Name("jambos"),
		kong.Description("A tick-driven multiprogramming kernel simulator."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&c.Globals)
	ctx.FatalIfErrorf(err)
}
