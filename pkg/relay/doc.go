// Package relay implements the two ends of the envelope protocol.
//
// A Client wraps every logical request in an envelope and posts it to a
// broker (the registry). A Server unwraps envelopes, gates them on a
// handshake validator and forwards the real request to its upstream through
// its own gateway.Core.
//
//	caller -> Client.Request -> envelope -> network -> Server.Request
//	       -> handshake -> Core.Request -> upstream
//
// The handshake gate is mandatory: NewServer refuses to build a server
// without a validator, and no upstream call is made for a rejected
// handshake.
package relay
