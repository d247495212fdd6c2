package resp3

// Node is a single parse event produced by a Parser.
//
// Scalars (simple strings, numbers, blob strings, ...) carry their payload
// in Data. Aggregate openers (array, push, set, map, attribute) carry only
// AggregateSize, the number of elements the aggregate declares; their
// children follow as subsequent Nodes at Depth+1.
type Node struct {
	Type Type

	// AggregateSize is the declared element count of an aggregate opener.
	// It is meaningless for scalar Nodes.
	AggregateSize int64

	// Depth is the nesting depth of this Node. Top-level replies have
	// Depth 0.
	Depth int

	// Data is the scalar payload, valid only until the next call to
	// Consume. Callers that need to retain it must copy it.
	Data []byte
}

// String returns Data as a string. It is a convenience for scalar Nodes.
func (n Node) String() string {
	return string(n.Data)
}
