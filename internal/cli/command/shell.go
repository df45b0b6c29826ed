package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gridmesh/internal/cli/repl"
)

// ShellCommand starts an interactive session. All lines share one command
// connection.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run commands interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history",
				Usage: "history file (empty keeps history in memory)",
				Value: repl.DefaultHistoryPath(),
			},
		},
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	s := stateFrom(c)
	history := repl.NewHistory(c.String("history"))
	if err := history.Load(); err != nil {
		fmt.Fprintf(c.App.ErrWriter, "warning: load history: %v\n", err)
	}
	defer func() {
		if err := history.Save(); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "warning: save history: %v\n", err)
		}
	}()

	var names []string
	for _, cmd := range commands(false) {
		names = append(names, cmd.Name)
	}

	fmt.Fprintf(c.App.Writer, "Connected to %s. Type \"exit\" to leave.\n", s.session.CommandAddr())
	r := repl.New(c.App.Reader, c.App.Writer, "gridmesh> ", shellExecutor(c.App, s), repl.NewCompleter(names), history)
	return r.Run(c.Context)
}

// shellExecutor runs each line as a fresh app sharing s.
func shellExecutor(parent *cli.App, s *state) repl.Executor {
	return func(ctx context.Context, args []string) error {
		app := newApp(s)
		app.Writer = parent.Writer
		app.ErrWriter = parent.ErrWriter
		app.ExitErrHandler = func(*cli.Context, error) {}
		return app.RunContext(ctx, append([]string{"gridmesh"}, args...))
	}
}
