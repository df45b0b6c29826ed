package repl

import (
	"sort"
	"strings"
)

// Completer suggests commands for a typed prefix.
type Completer struct {
	commands []string
}

// builtins are handled by the REPL itself.
var builtins = []string{"exit", "help", "history", "quit"}

// NewCompleter creates a completer for commands plus the REPL builtins.
func NewCompleter(commands []string) *Completer {
	all := append(append([]string(nil), commands...), builtins...)
	sort.Strings(all)
	return &Completer{commands: all}
}

// Complete returns the commands starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	prefix = strings.TrimLeft(prefix, " ")
	var out []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			out = append(out, cmd)
		}
	}
	return out
}
