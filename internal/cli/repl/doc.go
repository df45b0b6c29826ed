// Package repl runs gridmesh-cli interactively: each input line is split
// into words and executed as if given on the command line.
package repl
