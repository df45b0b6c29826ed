package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Executor runs one parsed input line.
type Executor func(ctx context.Context, args []string) error

// REPL is the read-eval-print loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	prompt    string
	exec      Executor
	completer *Completer
	history   *History
}

// New creates a REPL reading in and writing out. history may be nil.
func New(in io.Reader, out io.Writer, prompt string, exec Executor, completer *Completer, history *History) *REPL {
	if history == nil {
		history = NewHistory("")
	}
	if completer == nil {
		completer = NewCompleter(nil)
	}
	return &REPL{
		input:     in,
		output:    out,
		prompt:    prompt,
		exec:      exec,
		completer: completer,
		history:   history,
	}
}

// Run reads lines until EOF, "exit" or "quit", or until ctx is done.
// Errors of individual lines are printed, not returned.
func (r *REPL) Run(ctx context.Context) error {
	reader := bufio.NewReader(r.input)
	for ctx.Err() == nil {
		fmt.Fprint(r.output, r.prompt)

		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && line == "" {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history.Add(line)

		switch line {
		case "exit", "quit":
			return nil
		case "history":
			for i, entry := range r.history.Entries() {
				fmt.Fprintf(r.output, "%4d  %s\n", i+1, entry)
			}
			continue
		}

		args, perr := Split(line)
		if perr != nil {
			fmt.Fprintf(r.output, "error: %v\n", perr)
			continue
		}
		if strings.HasSuffix(args[len(args)-1], "?") {
			prefix := strings.TrimSuffix(strings.Join(args, " "), "?")
			fmt.Fprintln(r.output, strings.Join(r.completer.Complete(prefix), "  "))
			continue
		}
		if err := r.exec(ctx, args); err != nil {
			fmt.Fprintf(r.output, "error: %v\n", err)
		}
	}
	return ctx.Err()
}

// Split breaks line into words. Single or double quotes group words; a
// backslash escapes the next character outside single quotes.
func Split(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, c := range line {
		switch {
		case escaped:
			cur.WriteRune(c)
			escaped = false
		case c == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteRune(c)
			}
		case c == '"' || c == '\'':
			quote = c
			inWord = true
		case c == ' ' || c == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(c)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inWord {
		args = append(args, cur.String())
	}
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}
	return args, nil
}
