// Package command defines the gridmesh-cli command tree on urfave/cli.
//
// Latch and membership commands go to a node's command port; health and
// status come from its admin port. "shell" runs the same commands
// interactively over one command connection.
package command
