// Package node assembles a gridmesh node: the io lane, the membership
// registry, the engine, the transport service and the servers and discovery
// mechanisms built on it.
//
// Startup binds the member listener first, because the advertised address
// is only known afterwards; everything that announces or compares against
// this node's address is created after Bind.
package node
