// Command gridmesh-server runs one gridmesh node.
//
// The node listens for member connections, discovers peers by multicast
// and/or gossip, answers client commands on the command port and exposes
// health and metrics on the admin port.
//
// Usage:
//
//	gridmesh-server [flags]
//	gridmesh-server -config /etc/gridmesh/gridmesh.yaml
//	gridmesh-server -set network.port=5710 -set discovery.multicast.enabled=true
//
// Environment variables prefixed with GRIDMESH_ override the file, with
// "__" separating sections (GRIDMESH_LOG__LEVEL=debug).
package main
