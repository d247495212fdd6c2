package resp3

import (
	"fmt"
	"strconv"
)

// AppendCommand appends one Redis command, encoded as a RESP2 multibulk
// array, to dst and returns the extended slice. Redis accepts RESP2
// framed commands on a RESP3 connection; only replies use the richer
// RESP3 type set.
//
// Each arg is converted to bytes with argBytes: strings and []byte are
// used directly, everything else is formatted with fmt.Sprint.
func AppendCommand(dst []byte, cmd string, args ...interface{}) []byte {
	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(1+len(args)), 10)
	dst = append(dst, '\r', '\n')

	dst = appendBulk(dst, []byte(cmd))
	for _, a := range args {
		dst = appendBulk(dst, argBytes(a))
	}
	return dst
}

// AppendCommandSeq is like AppendCommand but draws its variadic arguments
// from a sequence produced by calling yield repeatedly, used by
// Request.PushRange to encode one command whose argument count is only
// known once the caller's iterable has been drained.
func AppendCommandSeq(dst []byte, cmd string, key string, seq func(yield func(v interface{}) bool)) []byte {
	var args [][]byte
	if key != "" {
		args = append(args, []byte(key))
	}
	seq(func(v interface{}) bool {
		args = append(args, argBytes(v))
		return true
	})

	dst = append(dst, '*')
	dst = strconv.AppendInt(dst, int64(1+len(args)), 10)
	dst = append(dst, '\r', '\n')

	dst = appendBulk(dst, []byte(cmd))
	for _, a := range args {
		dst = appendBulk(dst, a)
	}
	return dst
}

func appendBulk(dst []byte, b []byte) []byte {
	dst = append(dst, '$')
	dst = strconv.AppendInt(dst, int64(len(b)), 10)
	dst = append(dst, '\r', '\n')
	dst = append(dst, b...)
	dst = append(dst, '\r', '\n')
	return dst
}

func argBytes(v interface{}) []byte {
	switch t := v.(type) {
	case []byte:
		return t
	case string:
		return []byte(t)
	default:
		return []byte(fmt.Sprint(t))
	}
}
