// Package resp3 implements decoding and encoding of the RESP3 wire
// protocol used by Redis.
//
// A Parser turns a byte stream into a flat sequence of Node events,
// tolerating arbitrary fragmentation of the input and bulk payloads that
// contain the "\r\n" framing delimiter. AppendCommand encodes commands using
// the RESP2 multibulk array format, which Redis accepts regardless of
// whether the connection has negotiated RESP3 via HELLO.
//
// Node events are consumed by an Adapter, the boundary between the wire
// format and a caller's typed destination. This package ships a handful
// of general purpose adapters (IgnoreAdapter, TreeAdapter, TupleAdapter,
// StructAdapter); callers needing something more specific can implement
// Adapter directly.
//
// We've borrowed several ideas from nussjustin/resp3 and from aedis, the
// Redis client this protocol layer is modelled on.
package resp3
