// Package main provides the entry point for jambos.
// jambos is a tick-driven multiprogramming kernel simulator.
//
// For the full CLI, use: go run ./cmd/jambos
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("jambos - educational multiprogramming kernel simulator")
	fmt.Println("")
	fmt.Println("Usage: jambos [flags] <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run <program.hex>...   Load program files and run them to completion")
	fmt.Println("  console                Start an interactive console")
	fmt.Println("")
	fmt.Println("Flags:")
	fmt.Println("  --config       Path to a JSON machine configuration")
	fmt.Println("  --schedule     Scheduling algorithm: rr, fcfs, or priority")
	fmt.Println("  --quantum      Round-robin quantum")
	fmt.Println("  --no-swap      Disable roll-out to the backing store")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/jambos' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/jambos' instead.")
	}
}
