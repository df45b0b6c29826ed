// Package config holds the gridmesh-cli settings file (~/.gridmesh/cli.yaml):
// named node profiles with their command and admin addresses, and the
// default output format.
package config
