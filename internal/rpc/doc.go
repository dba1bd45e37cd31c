// Package rpc implements the correlated JSON-RPC 2.0 request channel.
//
// A Conn pairs outgoing requests, which carry monotonically increasing
// numeric ids, with responses arriving out of band on the transport's
// record channel. Responses are matched by id, not arrival order, so
// out-of-order delivery is tolerated. Each request is governed by a fixed
// timeout; a transport failure fails every outstanding request at once.
package rpc
