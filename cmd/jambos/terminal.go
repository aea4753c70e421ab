package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// keyboardHost reads raw stdin and hands every byte to onKey.
type keyboardHost struct {
	onKey    func(b byte)
	in       *os.File
	oldState *term.State
	stopped  sync.Once
	stopCh   chan struct{}
}

func newKeyboardHost(in *os.File, onKey func(b byte)) *keyboardHost {
	return &keyboardHost{
		onKey:  onKey,
		in:     in,
		stopCh: make(chan struct{}),
	}
}

// Start puts the terminal in raw mode and begins reading in a goroutine.
// The goroutine exits on the first read error after Stop.
func (h *keyboardHost) Start() error {
	fd := int(h.in.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("failed to set raw mode: %w", err)
		}
		h.oldState = oldState
	}

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := h.in.Read(buf)
			select {
			case <-h.stopCh:
				return
			default:
			}
			if n > 0 {
				h.onKey(translateKey(buf[0]))
			}
			if err != nil {
				if err == io.EOF {
					h.onKey(keyEOF)
				}
				return
			}
		}
	}()

	return nil
}

// Stop restores the terminal.
func (h *keyboardHost) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
		if h.oldState != nil {
			_ = term.Restore(int(h.in.Fd()), h.oldState)
		}
	})
}

const (
	keyBackspace = 0x08
	keyInterrupt = 0x03
	keyEOF       = 0x04
)

// translateKey maps raw-mode bytes onto the shell's key set.
func translateKey(b byte) byte {
	switch b {
	case '\r':
		return '\n'
	case 0x7F:
		return keyBackspace
	default:
		return b
	}
}

// crlfWriter turns LF into CRLF for a terminal in raw mode.
type crlfWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newCRLFWriter(w io.Writer) *crlfWriter {
	return &crlfWriter{w: w}
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
