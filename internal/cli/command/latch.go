package command

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	servercmd "github.com/yndnr/gridmesh/internal/server/command"
)

// ReplyError is a failure reply from the node.
type ReplyError struct {
	Operation string
	Message   string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// do runs one operation on the node and returns the success payload.
func do(c *cli.Context, operation string, args ...string) (string, error) {
	reply, err := stateFrom(c).session.Do(c.Context, operation, args...)
	if err != nil {
		return "", err
	}
	if !reply.OK {
		return "", &ReplyError{Operation: operation, Message: reply.Payload}
	}
	return reply.Payload, nil
}

// PingCommand checks that the command port answers.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the node answers commands",
		Action: func(c *cli.Context) error {
			payload, err := do(c, "PING")
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, payload)
			return nil
		},
	}
}

// LatchResult is the state of a named countdown latch after an operation.
type LatchResult struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// TrySetResult reports whether try-set-count changed the latch.
type TrySetResult struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
	Set   bool   `json:"set" yaml:"set"`
}

// LatchCommands returns the countdown latch commands.
func LatchCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "get-count",
			Usage:     "Show the count of a latch",
			ArgsUsage: "<name>",
			Action:    latchAction(servercmd.OpGetCount),
		},
		{
			Name:      "count-down",
			Usage:     "Decrement a latch and show the new count",
			ArgsUsage: "<name>",
			Action:    latchAction(servercmd.OpCountDown),
		},
		{
			Name:      "try-set-count",
			Usage:     "Set the count of a latch that has reached zero",
			ArgsUsage: "<name> <count>",
			Action:    trySetCountAction,
		},
	}
}

func latchAction(op string) cli.ActionFunc {
	return func(c *cli.Context) error {
		name, err := requireArg(c, 0, "name")
		if err != nil {
			return err
		}
		payload, err := do(c, op, name)
		if err != nil {
			return err
		}
		count, err := strconv.Atoi(payload)
		if err != nil {
			return fmt.Errorf("unexpected %s reply %q", op, payload)
		}
		return render(c, &LatchResult{Name: name, Count: count})
	}
}

func trySetCountAction(c *cli.Context) error {
	name, err := requireArg(c, 0, "name")
	if err != nil {
		return err
	}
	raw, err := requireArg(c, 1, "count")
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count <= 0 {
		return errors.New("count must be a positive integer")
	}

	payload, err := do(c, servercmd.OpTrySetCount, name, raw)
	if err != nil {
		return err
	}
	set, err := strconv.ParseBool(payload)
	if err != nil {
		return fmt.Errorf("unexpected %s reply %q", servercmd.OpTrySetCount, payload)
	}
	if !set {
		// The latch kept its old count.
		payload, err = do(c, servercmd.OpGetCount, name)
		if err != nil {
			return err
		}
		if count, err = strconv.Atoi(payload); err != nil {
			return fmt.Errorf("unexpected %s reply %q", servercmd.OpGetCount, payload)
		}
	}
	return render(c, &TrySetResult{Name: name, Count: count, Set: set})
}

// ExecCommand sends a raw operation and prints the reply payload.
func ExecCommand() *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "Send a raw operation to the node",
		ArgsUsage: "<operation> [args...]",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("operation is required")
			}
			args := c.Args().Slice()
			payload, err := do(c, args[0], args[1:]...)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, payload)
			return nil
		},
	}
}

func requireArg(c *cli.Context, i int, name string) (string, error) {
	v := c.Args().Get(i)
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}
