// Package commandserver serves client command frames over TCP.
//
// Requests are RESP arrays of bulk strings, [operation, args...]. Each
// command is answered with one line: "+payload" on success or
// "-ERR payload" on failure. PING and QUIT are answered by the server
// itself; every other operation goes to the node's command dispatcher.
package commandserver
