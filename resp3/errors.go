package resp3

import "errors"

var (
	// ErrSimpleError is wrapped around a RESP3 simple-error ("-ERR ...")
	// reply by IgnoreAdapter and by TupleAdapter's scalar destinations.
	ErrSimpleError = errors.New("resp3: simple error reply")

	// ErrBlobError is wrapped around a RESP3 blob-error ("!N\r\n...")
	// reply the same way ErrSimpleError wraps a simple error.
	ErrBlobError = errors.New("resp3: blob error reply")

	// ErrIncompatibleSize is returned by TupleAdapter when more top-level
	// replies arrive than the number of destination slots it was built
	// with. Fewer replies than slots is not reported.
	ErrIncompatibleSize = errors.New("resp3: response has incompatible size")

	// ErrUnexpectedType is returned by a scalar destination adapter when
	// the wire type doesn't match what the destination can hold (e.g. a
	// *int64 destination fed an array).
	ErrUnexpectedType = errors.New("resp3: unexpected RESP3 type for destination")
)
