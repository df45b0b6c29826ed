// Package domain defines the core value types shared by the gridmesh
// transport layer.
//
// Types in this package carry no IO dependencies. This package contains:
//
//   - Address: the identity of a cluster member on the network
//   - Member: a registered peer with its last-seen liveness timestamp
//   - Packet / Connection: an inbound member frame and its source
//   - CommandRequest / CommandResponse: the client command frame
//   - Errors: coded domain errors
package domain
