// Package sockopt applies socket options that net.ListenConfig and
// net.Dialer do not expose.
package sockopt
