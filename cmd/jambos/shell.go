package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/sarchlab/jambos/kernel"
	"github.com/sarchlab/jambos/loader"
	"github.com/sarchlab/jambos/sched"
)

const prompt = "> "

// errExit is returned by the exit command.
var errExit = errors.New("exit")

// shell is the keyboard driver and command interpreter of the console. Keys
// arrive inside kernel ticks; complete lines are handed to the console loop
// on a channel so commands never run while the kernel lock is held.
type shell struct {
	out    io.Writer
	kernel *kernel.Kernel
	lines  chan string

	mu   sync.Mutex
	line []byte
}

type command struct {
	usage string
	help  string
	run   func(s *shell, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":        {"help", "list commands", (*shell).help},
		"load":        {"load <file|hex bytes> [-p priority]", "load a program", (*shell).load},
		"run":         {"run <pid>", "execute a loaded program", (*shell).run},
		"runall":      {"runall", "execute every loaded program", (*shell).runAll},
		"kill":        {"kill <pid>", "terminate a process", (*shell).kill},
		"ps":          {"ps", "list resident processes", (*shell).ps},
		"quantum":     {"quantum <n>", "set the round-robin quantum", (*shell).quantum},
		"setschedule": {"setschedule <rr|fcfs|priority>", "change the scheduling algorithm", (*shell).setSchedule},
		"getschedule": {"getschedule", "show the scheduling algorithm", (*shell).getSchedule},
		"clearmem":    {"clearmem", "unload every process", (*shell).clearMem},
		"status":      {"status", "show cpu registers and partitions", (*shell).status},
		"exit":        {"exit", "shut down", (*shell).exit},
	}
}

func newShell(out io.Writer) *shell {
	return &shell{
		out:   out,
		lines: make(chan string, 16),
	}
}

func (s *shell) attach(k *kernel.Kernel) {
	s.kernel = k
}

// Lines delivers every completed input line.
func (s *shell) Lines() <-chan string {
	return s.lines
}

// HandleKeyboard echoes keys and assembles lines.
func (s *shell) HandleKeyboard(params []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range params {
		switch b := byte(p); b {
		case '\n':
			fmt.Fprint(s.out, "\n")
			s.submit(string(s.line))
			s.line = s.line[:0]
		case keyBackspace:
			if len(s.line) > 0 {
				s.line = s.line[:len(s.line)-1]
				fmt.Fprint(s.out, "\b \b")
			}
		case keyInterrupt, keyEOF:
			fmt.Fprint(s.out, "\n")
			s.submit("exit")
			s.line = s.line[:0]
		default:
			if b >= 0x20 && b < 0x7F {
				s.line = append(s.line, b)
				fmt.Fprintf(s.out, "%c", b)
			}
		}
	}
	return nil
}

func (s *shell) submit(line string) {
	select {
	case s.lines <- line:
	default:
		fmt.Fprintln(s.out, "input dropped: console busy")
	}
}

func (s *shell) greet() {
	fmt.Fprintln(s.out, "jambOS console. Type 'help' for commands.")
	s.prompt()
}

func (s *shell) prompt() {
	fmt.Fprint(s.out, prompt)
}

// Exec runs one command line. It returns errExit when the user asked to
// leave.
func (s *shell) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, ok := commands[strings.ToLower(fields[0])]
	if !ok {
		fmt.Fprintf(s.out, "unknown command %q, try 'help'\n", fields[0])
		return nil
	}

	err := cmd.run(s, fields[1:])
	if errors.Is(err, errExit) {
		return err
	}
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return nil
}

func (s *shell) help(_ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", commands[name].usage, commands[name].help)
	}
	return tw.Flush()
}

func (s *shell) load(args []string) error {
	priority := 0
	var rest []string
	for i := 0; i < len(args); i++ {
		if args[i] == "-p" && i+1 < len(args) {
			p, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("bad priority %q", args[i+1])
			}
			priority = p
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	if len(rest) == 0 {
		return fmt.Errorf("usage: %s", commands["load"].usage)
	}

	code, err := loader.Parse(strings.Join(rest, " "))
	if err != nil {
		if len(rest) != 1 {
			return err
		}
		prog, loadErr := loader.Load(rest[0])
		if loadErr != nil {
			return loadErr
		}
		code = prog.Code
	}

	pcb, err := s.kernel.Load(code, priority)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "pid %d loaded (%s)\n", pcb.PID, pcb.State)
	return nil
}

func parsePID(args []string, usage string) (uint32, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: %s", usage)
	}
	pid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad pid %q", args[0])
	}
	return uint32(pid), nil
}

func (s *shell) run(args []string) error {
	pid, err := parsePID(args, commands["run"].usage)
	if err != nil {
		return err
	}
	return s.kernel.Execute(pid)
}

func (s *shell) runAll(_ []string) error {
	n, err := s.kernel.RunAll()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%d process(es) started\n", n)
	return nil
}

func (s *shell) kill(args []string) error {
	pid, err := parsePID(args, commands["kill"].usage)
	if err != nil {
		return err
	}
	if err := s.kernel.Kill(pid); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "pid %d killed\n", pid)
	return nil
}

func (s *shell) ps(_ []string) error {
	resident := s.kernel.ListResident()
	if len(resident) == 0 {
		fmt.Fprintln(s.out, "no resident processes")
		return nil
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tSTATE\tPART\tPRI\tPC\tACC\tX\tY\tZ")
	for _, p := range resident {
		part := "-"
		if p.InMemory() {
			part = strconv.Itoa(p.Partition)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%02X\t%02X\t%02X\t%02X\t%t\n",
			p.PID, p.State, part, p.Priority, p.PC, p.ACC, p.X, p.Y, p.Z)
	}
	return tw.Flush()
}

func (s *shell) quantum(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["quantum"].usage)
	}
	q, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad quantum %q", args[0])
	}
	return s.kernel.SetQuantum(q)
}

func (s *shell) setSchedule(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", commands["setschedule"].usage)
	}
	a, err := sched.ParseAlgorithm(args[0])
	if err != nil {
		return err
	}
	s.kernel.SetAlgorithm(a)
	return nil
}

func (s *shell) getSchedule(_ []string) error {
	fmt.Fprintf(s.out, "%s (quantum %d)\n", s.kernel.Algorithm(), s.kernel.Quantum())
	return nil
}

func (s *shell) clearMem(_ []string) error {
	n, err := s.kernel.ClearMemory()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%d process(es) unloaded\n", n)
	return nil
}

func (s *shell) status(_ []string) error {
	st := s.kernel.Status()
	if st.Executing {
		fmt.Fprintf(s.out, "cpu: running pid %d\n", st.PID)
	} else {
		fmt.Fprintln(s.out, "cpu: idle")
	}
	fmt.Fprintf(s.out, "PC=%02X ACC=%02X X=%02X Y=%02X Z=%t\n", st.PC, st.ACC, st.X, st.Y, st.Z)

	for _, p := range s.kernel.Partitions() {
		state := "open"
		if !p.Open {
			state = "in use"
		}
		fmt.Fprintf(s.out, "partition %d [%04X-%04X] %s\n", p.Index, p.Base, p.Limit, state)
	}

	swapped, err := s.kernel.Swapped()
	if err != nil {
		return err
	}
	if len(swapped) > 0 {
		fmt.Fprintf(s.out, "swapped: %s\n", strings.Join(swapped, ", "))
	}
	return nil
}

func (s *shell) exit(_ []string) error {
	return errExit
}
