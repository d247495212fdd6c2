// Package redigo3 is a RESP3 Redis client core: a single connection that
// multiplexes pipelined request/reply traffic and out-of-band push messages
// over one TCP (or TLS) socket, reconnecting with backoff when the run loop
// exits.
//
// The wire codec lives in the resp3 subpackage; this package owns endpoint
// resolution, the request builder, the inflight queue that matches replies
// to requests, and the reader/writer/idle-ping goroutines that drive a
// connection's lifecycle.
package redigo3
