package config

import (
	"errors"
	"fmt"
	"os"
)

// exitCoder is implemented by errors that carry a process exit status.
type exitCoder interface {
	ExitCode() int
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// Exit terminates the process for err. Errors carrying their own exit code
// exit silently with that code since the failure was already reported;
// anything else is printed and exits with code 1.
func Exit(err error) {
	os.Exit(ExitStatus(err, os.Stderr))
}

// ExitStatus reports the exit code for err, printing err to w when it does
// not carry its own code.
func ExitStatus(err error, w interface{ WriteString(string) (int, error) }) int {
	if err == nil {
		return 0
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		if code := coder.ExitCode(); code > 0 {
			return code
		}
	}
	_, _ = w.WriteString(fmt.Sprintf("Error: %v\n", err))
	return 1
}
