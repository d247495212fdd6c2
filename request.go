package redigo3

import (
	"strings"

	"github.com/lumalabs/redigo3/resp3"
)

// pushReplyCommands are the commands whose reply arrives as a push message
// rather than a top-level reply matched to the inflight queue, so pushing
// one of them must not claim a response slot.
var pushReplyCommands = map[string]bool{
	"SUBSCRIBE":    true,
	"UNSUBSCRIBE":  true,
	"PSUBSCRIBE":   true,
	"PUNSUBSCRIBE": true,
	"SSUBSCRIBE":   true,
	"SUNSUBSCRIBE": true,
}

func isPushReplyCommand(cmd string) bool {
	return pushReplyCommands[strings.ToUpper(cmd)]
}

// Request accumulates one or more commands into a single payload that
// Conn.Exec writes in one go, mirroring the way the wire protocol lets a
// client pipeline several commands ahead of their replies.
type Request struct {
	// Coalesce, when true, lets the writer fold every payload already
	// queued behind this request into the same net.Conn.Write call. The
	// commands pushed onto one Request always form a single payload,
	// whatever this flag says.
	Coalesce bool

	// CancelOnConnectionLost, when true, causes Exec to fail with
	// ErrOperationAborted if the connection drops before this request's
	// payload was ever written to the socket. When false (the default),
	// an unwritten request is instead retained and resent on the next
	// successful run, regardless of RetryOnDisconnect.
	CancelOnConnectionLost bool

	// RetryOnDisconnect, when true, causes the multiplexer to resend this
	// request's commands on the next run after a disconnect that happens
	// once the payload has already been written but no reply for it
	// arrived. When false (the default), such a request fails with
	// ErrConnectionLost instead. It has no effect on a request that was
	// never written in the first place; CancelOnConnectionLost governs
	// that case.
	RetryOnDisconnect bool

	payload      []byte
	commandCount int
}

// NewRequest returns an empty Request.
func NewRequest() *Request {
	return &Request{}
}

// Push appends one command, built from cmd and its arguments, to the
// request. It increments Size unless cmd's replies arrive as push
// messages (SUBSCRIBE and its siblings), in which case the command is
// still written but claims no response slot.
func (r *Request) Push(cmd string, args ...interface{}) {
	r.payload = resp3.AppendCommand(r.payload, cmd, args...)
	if !isPushReplyCommand(cmd) {
		r.commandCount++
	}
}

// PushRange appends one command whose trailing arguments come from
// iterating seq, for callers building a command like SADD or MSET from a
// slice or map without materializing a []interface{} first.
func (r *Request) PushRange(cmd string, key string, seq func(yield func(v interface{}) bool)) {
	r.payload = resp3.AppendCommandSeq(r.payload, cmd, key, seq)
	if !isPushReplyCommand(cmd) {
		r.commandCount++
	}
}

// Clear discards every command pushed so far, letting the Request be
// reused for the next pipeline.
func (r *Request) Clear() {
	r.payload = r.payload[:0]
	r.commandCount = 0
}

// Size returns the number of commands pushed onto this request.
func (r *Request) Size() int {
	return r.commandCount
}

// Empty reports whether nothing has been pushed at all. A request built
// entirely from push-reply commands (e.g. a lone SUBSCRIBE) has Size() == 0
// but is not Empty(): it still has a payload to write, just nothing to wait
// on for a reply.
func (r *Request) Empty() bool {
	return len(r.payload) == 0
}

func (r *Request) payloadBytes() []byte {
	return r.payload
}
