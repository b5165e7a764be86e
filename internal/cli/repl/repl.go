package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompt is printed before each line.
const Prompt = "hostgate> "

// Executor runs one shell line. quit ends the shell.
type Executor func(line string) (quit bool, err error)

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	exec      Executor
	completer *Completer
	history   *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(r *REPL) {
		r.input = in
		r.output = out
	}
}

// WithHistory sets the history store.
func WithHistory(h *History) Option {
	return func(r *REPL) {
		r.history = h
	}
}

// New creates a shell that runs lines with exec and expands prefixes of
// commands.
func New(exec Executor, commands []string, opts ...Option) *REPL {
	r := &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		exec:      exec,
		completer: NewCompleter(append(append([]string(nil), commands...), "exit", "history")...),
		history:   NewHistory(""),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until EOF, "exit" or an executor quit.
func (r *REPL) Run() error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.output, "warning: history not loaded: %v\n", err)
	}
	defer r.history.Save()

	reader := bufio.NewReader(r.input)
	for {
		fmt.Fprint(r.output, Prompt)

		line, err := reader.ReadString('\n')
		if err == io.EOF && line == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil && err != io.EOF {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		expanded, candidates := r.completer.Expand(line)
		if len(candidates) > 0 {
			fmt.Fprintf(r.output, "ambiguous command, did you mean: %s\n", strings.Join(candidates, ", "))
			continue
		}
		r.history.Add(expanded)

		switch expanded {
		case "exit":
			return nil
		case "history":
			for i, e := range r.history.Entries() {
				fmt.Fprintf(r.output, "%4d  %s\n", i+1, e)
			}
			continue
		}

		quit, err := r.exec(expanded)
		if err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}
