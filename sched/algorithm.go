package sched

import (
	"fmt"
	"strings"
)

// Algorithm selects how the next process is chosen.
type Algorithm uint8

// Scheduling algorithms.
const (
	RoundRobin Algorithm = iota
	FCFS
	Priority
)

func (a Algorithm) String() string {
	switch a {
	case RoundRobin:
		return "rr"
	case FCFS:
		return "fcfs"
	case Priority:
		return "priority"
	default:
		return fmt.Sprintf("Algorithm(%d)", uint8(a))
	}
}

// ParseAlgorithm converts a shell or config name into an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rr", "round-robin", "roundrobin":
		return RoundRobin, nil
	case "fcfs", "fifo":
		return FCFS, nil
	case "priority":
		return Priority, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}
