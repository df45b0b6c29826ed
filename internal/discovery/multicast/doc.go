// Package multicast announces this node on a multicast group and listens
// for the announcements of other nodes.
//
// Discovery is best effort. Send and receive failures are logged and the
// loops keep running; a peer that is missed in one cycle is found in the
// next.
package multicast
