package resp3

// Adapter absorbs the Node events of one response into a caller-owned
// destination. It is a borrow: the Parser never retains an Adapter beyond
// the Consume call it was passed to, and a caller must not reuse an
// Adapter across two concurrent responses.
type Adapter interface {
	// OnEvent is called once per Node. Returning a non-nil error aborts
	// parsing of the current response; the error is surfaced to the Exec
	// call that owns this Adapter.
	OnEvent(n Node) error

	// MaxReadSize hints the maximum size, in bytes, of a scalar payload
	// the Adapter is willing to absorb at the given depth. Returning 0
	// means "no opinion". Neither Parser nor Conn enforces this hint.
	MaxReadSize(depth int) int
}
