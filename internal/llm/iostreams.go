package llm

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// IOStreams abstracts standard I/O so commands can read piped prompts and
// tests can inject buffers instead of os.Stdin/Stdout/Stderr.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	// isTerminalFunc allows lazy evaluation and mocking of TTY detection
	isTerminalFunc func(fd int) bool
	stdinFd        int
}

// NewIOStreams creates IOStreams connected to os.Stdin/Stdout/Stderr.
func NewIOStreams() *IOStreams {
	return &IOStreams{
		In:             os.Stdin,
		Out:            os.Stdout,
		ErrOut:         os.Stderr,
		isTerminalFunc: term.IsTerminal,
		stdinFd:        int(os.Stdin.Fd()),
	}
}

// IsInteractive returns true if stdin is a TTY (terminal).
func (s *IOStreams) IsInteractive() bool {
	if s.isTerminalFunc == nil {
		return false
	}
	return s.isTerminalFunc(s.stdinFd)
}

// ResolvePrompt returns the prompt given as an argument, or reads it from
// stdin when stdin is piped. An interactive terminal without an argument is
// an error rather than a blocking read.
func (s *IOStreams) ResolvePrompt(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	if s.IsInteractive() {
		return "", fmt.Errorf("no prompt given: pass it as an argument or pipe it on stdin")
	}

	data, err := io.ReadAll(s.In)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("empty prompt on stdin")
	}
	return prompt, nil
}

// TestIOStreams creates IOStreams for testing with in-memory buffers.
// Returns the streams and the input/output buffers for assertions.
// Simulates a TTY by default (isTerminalFunc returns true).
func TestIOStreams() (*IOStreams, *bytes.Buffer, *bytes.Buffer) {
	in := &bytes.Buffer{}
	out := &bytes.Buffer{}
	return &IOStreams{
		In:             in,
		Out:            out,
		ErrOut:         out,
		isTerminalFunc: func(int) bool { return true },
		stdinFd:        0,
	}, in, out
}

// TestIOStreamsNonInteractive is TestIOStreams simulating a pipe.
func TestIOStreamsNonInteractive() (*IOStreams, *bytes.Buffer, *bytes.Buffer) {
	streams, in, out := TestIOStreams()
	streams.isTerminalFunc = func(int) bool { return false }
	return streams, in, out
}
