package placement

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterConsole is a Console that prints each command as a line to W. It
// accepts any password and never rejects a command.
type WriterConsole struct {
	W io.Writer

	mu     sync.Mutex
	closed bool
}

// DryRunDialer returns a DialFunc yielding a WriterConsole over w.
func DryRunDialer(w io.Writer) DialFunc {
	return func(context.Context) (Console, error) {
		return &WriterConsole{W: w}, nil
	}
}

func (c *WriterConsole) Authenticate(string) error { return nil }

func (c *WriterConsole) SendCommand(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", fmt.Errorf("dry-run console closed")
	}
	if _, err := fmt.Fprintln(c.W, cmd); err != nil {
		return "", err
	}
	return "", nil
}

func (c *WriterConsole) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
