package resp3_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/lumalabs/redigo3/resp3"
)

var _ = Describe("AppendCommand", func() {
	It("encodes a command with no arguments as a one-element multibulk", func() {
		got := resp3.AppendCommand(nil, "PING")
		Expect(string(got)).To(Equal("*1\r\n$4\r\nPING\r\n"))
	})

	It("encodes string and byte-slice arguments without reformatting them", func() {
		got := resp3.AppendCommand(nil, "SET", "key", []byte("value"))
		Expect(string(got)).To(Equal("*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n"))
	})

	It("stringifies non-string arguments", func() {
		got := resp3.AppendCommand(nil, "EXPIRE", "key", 42)
		Expect(string(got)).To(Equal("*3\r\n$6\r\nEXPIRE\r\n$3\r\nkey\r\n$2\r\n42\r\n"))
	})

	It("appends to an existing buffer rather than replacing it", func() {
		buf := []byte("prefix")
		got := resp3.AppendCommand(buf, "PING")
		Expect(string(got)).To(Equal("prefix*1\r\n$4\r\nPING\r\n"))
	})

	It("round-trips through the parser", func() {
		encoded := resp3.AppendCommand(nil, "MSET", "a", "1", "b", "2")

		p := resp3.NewParser()
		ta := resp3.NewTreeAdapter()
		buf := encoded
		for !p.Done() {
			n, err := p.Consume(buf, ta)
			Expect(err).NotTo(HaveOccurred())
			buf = buf[n:]
		}

		Expect(ta.Nodes).To(HaveLen(6))
		Expect(ta.Nodes[0].Type).To(Equal(resp3.TypeArray))
		Expect(ta.Nodes[0].AggregateSize).To(BeEquivalentTo(5))

		var words []string
		for _, n := range ta.Nodes[1:] {
			words = append(words, string(n.Data))
		}
		Expect(words).To(Equal([]string{"MSET", "a", "1", "b", "2"}))
	})
})

var _ = Describe("AppendCommandSeq", func() {
	It("encodes one command per call regardless of how many values the sequence yields", func() {
		vals := []interface{}{"x", "y", "z"}
		seq := func(yield func(v interface{}) bool) {
			for _, v := range vals {
				if !yield(v) {
					return
				}
			}
		}

		got := resp3.AppendCommandSeq(nil, "SADD", "myset", seq)
		Expect(string(got)).To(Equal("*5\r\n$4\r\nSADD\r\n$5\r\nmyset\r\n$1\r\nx\r\n$1\r\ny\r\n$1\r\nz\r\n"))
	})
})
