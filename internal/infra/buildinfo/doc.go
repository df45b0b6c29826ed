// Package buildinfo reports the version of the gridmesh binaries.
//
// Version, Commit and BuildTime are injected with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/gridmesh/internal/infra/buildinfo.Version=v0.3.0"
//
// Values left unset fall back to the module and VCS data the Go toolchain
// embeds in the binary.
package buildinfo
