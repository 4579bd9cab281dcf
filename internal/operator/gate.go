// Package operator asks the human operator to approve running generated code.
package operator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Decision is the operator's answer.
type Decision int

const (
	Reject Decision = iota
	Approve
)

func (d Decision) String() string {
	if d == Approve {
		return "approve"
	}
	return "reject"
}

// Gate confirms that the action described by content may run on behalf of the
// agent at position.
type Gate interface {
	Confirm(ctx context.Context, position, content string) (Decision, error)
}

// AutoGate approves everything. Selected with --yes or operator.auto_approve.
type AutoGate struct{}

// Confirm implements Gate.
func (AutoGate) Confirm(context.Context, string, string) (Decision, error) {
	return Approve, nil
}

// TerminalGate asks on a terminal. When input is not interactive it rejects
// without asking. A read abandoned by a cancelled context is handed to the next
// Confirm or Ask, so the reader is never used by two goroutines at once.
type TerminalGate struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool

	mu      sync.Mutex
	pending chan answer
}

// NewTerminalGate creates a gate reading answers from in. If in is an *os.File it
// must be a terminal for the gate to ever approve.
func NewTerminalGate(in io.Reader, out io.Writer) *TerminalGate {
	interactive := true
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &TerminalGate{in: bufio.NewReader(in), out: out, interactive: interactive}
}

var (
	warn    = color.New(color.FgRed, color.Bold)
	options = color.New(color.FgCyan)
)

type answer struct {
	line string
	err  error
}

// readLine returns the next input line, or ctx.Err() if ctx ends first. The
// in-flight read then stays pending for the next caller.
func (g *TerminalGate) readLine(ctx context.Context) (answer, error) {
	g.mu.Lock()
	answers := g.pending
	if answers == nil {
		answers = make(chan answer, 1)
		go func() {
			line, err := g.in.ReadString('\n')
			answers <- answer{line: line, err: err}
		}()
		g.pending = answers
	}
	g.mu.Unlock()

	select {
	case <-ctx.Done():
		return answer{}, ctx.Err()
	case a := <-answers:
		g.mu.Lock()
		g.pending = nil
		g.mu.Unlock()
		return a, nil
	}
}

// Confirm implements Gate. It asks until the operator answers 1 or 2.
func (g *TerminalGate) Confirm(ctx context.Context, position, content string) (Decision, error) {
	if !g.interactive {
		warn.Fprintf(g.out, "%s wants to run generated code but stdin is not a terminal; rejecting (use --yes to approve).\n", position)
		return Reject, nil
	}

	warn.Fprintln(g.out, "WARNING: You are about to run code written entirely by AI.")
	fmt.Fprintf(g.out, "%s: %s\n", position, content)
	fmt.Fprintln(g.out, "Review your code and confirm you wish to continue.")

	for {
		options.Fprintln(g.out, "[1] All good")
		options.Fprintln(g.out, "[2] Let's stop this project")

		a, err := g.readLine(ctx)
		if err != nil {
			return Reject, err
		}

		switch strings.TrimSpace(a.line) {
		case "1":
			return Approve, nil
		case "2":
			return Reject, nil
		}

		if a.err != nil {
			if a.err == io.EOF {
				return Reject, nil
			}
			return Reject, fmt.Errorf("failed to read operator answer: %w", a.err)
		}

		fmt.Fprintln(g.out, "Invalid input, please select '1' or '2'")
	}
}

// Ask prints question and returns the next line of input, trimmed. It shares
// the gate's reader so answers typed ahead are not lost.
func (g *TerminalGate) Ask(ctx context.Context, question string) (string, error) {
	options.Fprintln(g.out, question)

	a, err := g.readLine(ctx)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(a.line)
	if a.err != nil && (a.err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read answer: %w", a.err)
	}
	return line, nil
}
