// Command gridmesh-cli talks to a running gridmesh node.
//
// Single commands:
//
//	gridmesh-cli ping
//	gridmesh-cli try-set-count orders 3
//	gridmesh-cli -o json members
//
// Interactive mode keeps one command connection open:
//
//	gridmesh-cli shell
//
// Node addresses come from the active profile in ~/.gridmesh/cli.yaml
// unless --command-addr or --admin-addr is given.
package main
