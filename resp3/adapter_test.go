package resp3_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/lumalabs/redigo3/resp3"
)

// run parses the first top-level reply in frame into adapter, failing the
// spec if the parser itself errors.
func run(frame []byte, adapter resp3.Adapter) {
	p := resp3.NewParser()
	buf := frame
	for !p.Done() {
		n, err := p.Consume(buf, adapter)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		if n == 0 {
			break
		}
		buf = buf[n:]
	}
}

var _ = Describe("IgnoreAdapter", func() {
	It("discards ordinary replies without error", func() {
		Expect(func() { run([]byte("+OK\r\n"), resp3.IgnoreAdapter{}) }).NotTo(Panic())
	})

	It("surfaces a simple error", func() {
		p := resp3.NewParser()
		_, err := p.Consume([]byte("-ERR boom\r\n"), resp3.IgnoreAdapter{})
		Expect(err).To(MatchError(resp3.ErrSimpleError))
	})

	It("surfaces a blob error", func() {
		p := resp3.NewParser()
		frame := []byte("!8\r\nERR boom\r\n")
		n, err := p.Consume(frame, resp3.IgnoreAdapter{})
		Expect(err).NotTo(HaveOccurred())
		_, err = p.Consume(frame[n:], resp3.IgnoreAdapter{})
		Expect(err).To(MatchError(resp3.ErrBlobError))
	})
})

var _ = Describe("TreeAdapter", func() {
	It("records every node in order, and Reset clears them", func() {
		ta := resp3.NewTreeAdapter()
		run([]byte("*2\r\n+a\r\n+b\r\n"), ta)
		Expect(ta.Nodes).To(HaveLen(3))

		ta.Reset()
		Expect(ta.Nodes).To(BeEmpty())
	})

	It("copies Data so it outlives the next Consume call", func() {
		ta := resp3.NewTreeAdapter()
		p := resp3.NewParser()
		shared := []byte("+hello\r\n")
		_, err := p.Consume(shared, ta)
		Expect(err).NotTo(HaveOccurred())

		got := string(ta.Nodes[0].Data)
		for i := range shared {
			shared[i] = 'X'
		}
		Expect(string(ta.Nodes[0].Data)).To(Equal(got))
	})
})

var _ = Describe("TupleAdapter", func() {
	It("routes successive top-level replies to successive destinations", func() {
		var s string
		var i int64
		ta, err := resp3.NewTupleAdapter(&s, &i)
		Expect(err).NotTo(HaveOccurred())
		Expect(ta.Len()).To(Equal(2))

		run([]byte("+OK\r\n"), ta)
		run([]byte(":7\r\n"), ta)

		Expect(s).To(Equal("OK"))
		Expect(i).To(BeEquivalentTo(7))
	})

	It("routes an aggregate reply into a **TreeAdapter slot", func() {
		var inner *resp3.TreeAdapter
		ta, err := resp3.NewTupleAdapter(&inner)
		Expect(err).NotTo(HaveOccurred())

		run([]byte("*2\r\n+a\r\n+b\r\n"), ta)

		Expect(inner).NotTo(BeNil())
		Expect(inner.Nodes).To(HaveLen(3))
	})

	It("errors when more replies arrive than it has destinations", func() {
		var a, b string
		ta, err := resp3.NewTupleAdapter(&a)
		Expect(err).NotTo(HaveOccurred())
		_ = b

		p := resp3.NewParser()
		_, err = p.Consume([]byte("+OK\r\n"), ta)
		Expect(err).NotTo(HaveOccurred())

		_, err = p.Consume([]byte("+extra\r\n"), ta)
		Expect(err).To(MatchError(resp3.ErrIncompatibleSize))
	})

	It("rejects unsupported destination types", func() {
		_, err := resp3.NewTupleAdapter(42)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("StructAdapter", func() {
	type helloResult struct {
		Server  string `resp3:"server"`
		Version string `resp3:"version"`
		Proto   int64  `resp3:"proto"`
	}

	It("assigns scalar fields by matching map keys against the resp3 tag", func() {
		frame := []byte("%3\r\n" +
			"+server\r\n+redis\r\n" +
			"+version\r\n+7.4.0\r\n" +
			"+proto\r\n:3\r\n")

		var dst helloResult
		sa, err := resp3.NewStructAdapter(&dst)
		Expect(err).NotTo(HaveOccurred())

		run(frame, sa)

		Expect(dst).To(Equal(helloResult{Server: "redis", Version: "7.4.0", Proto: 3}))
	})

	It("consumes but discards an aggregate value for a tagged field", func() {
		type withModules struct {
			Server  string   `resp3:"server"`
			Modules []string `resp3:"modules"`
		}

		frame := []byte("%2\r\n" +
			"+server\r\n+redis\r\n" +
			"+modules\r\n*2\r\n+a\r\n+b\r\n")

		var dst withModules
		sa, err := resp3.NewStructAdapter(&dst)
		Expect(err).NotTo(HaveOccurred())

		run(frame, sa)

		Expect(dst.Server).To(Equal("redis"))
		Expect(dst.Modules).To(BeNil())
	})

	It("requires a pointer to a struct", func() {
		_, err := resp3.NewStructAdapter(helloResult{})
		Expect(err).To(HaveOccurred())
	})

	It("rejects a non-map top-level reply", func() {
		var dst helloResult
		sa, err := resp3.NewStructAdapter(&dst)
		Expect(err).NotTo(HaveOccurred())

		p := resp3.NewParser()
		_, err = p.Consume([]byte("+OK\r\n"), sa)
		Expect(err).To(MatchError(resp3.ErrUnexpectedType))
	})
})
