package cli

import (
	"fmt"
	"io"
	"os"
)

// DefaultEnv is the environment used by commands outside of tests.
var DefaultEnv = &Env{
	Stdin:  os.Stdin,
	Stdout: os.Stdout,
	Stderr: os.Stderr,
}

// Env carries the I/O streams for a command so tests can capture output.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func (e *Env) Printf(format string, args ...any) error {
	_, err := fmt.Fprintf(e.Stdout, format, args...)
	return err
}

func (e *Env) Println(args ...any) error {
	_, err := fmt.Fprintln(e.Stdout, args...)
	return err
}

func (e *Env) ErrPrintf(format string, args ...any) error {
	_, err := fmt.Fprintf(e.Stderr, format, args...)
	return err
}

func (e *Env) ErrPrintln(args ...any) error {
	_, err := fmt.Fprintln(e.Stderr, args...)
	return err
}
